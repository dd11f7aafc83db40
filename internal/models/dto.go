package models

// QuizDTO is the public view of a quiz. It leaves out the incident and the
// owner's contact details.
type QuizDTO struct {
	ID           string          `json:"id"`
	IncidentID   uint            `json:"incident_id"`
	TemplateID   uint            `json:"template_id"`
	Title        string          `json:"title"`
	Description  string          `json:"description,omitempty"`
	IsAnswered   bool            `json:"is_answered"`
	Username     string          `json:"username,omitempty"`
	UsefulLinks  []UsefulLinkDTO `json:"useful_links"`
	BusinessLine []uint          `json:"watchlist,omitempty"`
}

type UsefulLinkDTO struct {
	Label string `json:"label"`
	URL   string `json:"url"`
}

// ToDTO flattens the quiz. withWatchlist adds the watched business lines,
// which only incident handlers may see.
func (q Quiz) ToDTO(withWatchlist bool) QuizDTO {
	links := make([]UsefulLinkDTO, len(q.Template.UsefulLinks))
	for i, l := range q.Template.UsefulLinks {
		links[i] = UsefulLinkDTO{Label: l.Label, URL: l.URL}
	}

	dto := QuizDTO{
		ID:          q.ID,
		IncidentID:  q.IncidentID,
		TemplateID:  q.TemplateID,
		Title:       q.Template.Name,
		Description: q.Template.Description,
		IsAnswered:  q.IsAnswered,
		UsefulLinks: links,
	}
	if q.User != nil {
		dto.Username = q.User.Username
	}
	if withWatchlist {
		for _, item := range q.Watchlist {
			dto.BusinessLine = append(dto.BusinessLine, item.BusinessLineID)
		}
	}
	return dto
}

// SubscribeRequest adds business lines to the watch list of a quiz.
type SubscribeRequest struct {
	BusinessLines []uint `json:"business_lines"`
	FormID        string `json:"form_id"`
}
