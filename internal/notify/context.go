package notify

import (
	"context"
	"net/url"
	"strings"

	"incident-quiz/internal/artifact"
	"incident-quiz/internal/directory"
	"incident-quiz/internal/form"
	"incident-quiz/internal/models"

	"github.com/cbroglie/mustache"
)

const defaultTranscript = `{{#answers}}<p><strong>{{group}}</strong> - {{label}}: {{display}}</p>
{{/answers}}`

// Transcript entry exposed to the "quiz answer" template as {{#answers}}.
type transcriptLine struct {
	Group   string
	Label   string
	Title   string
	Value   string
	Checked bool
}

func (l transcriptLine) values() map[string]interface{} {
	display := l.Value
	if l.Checked {
		display = "Yes"
	}
	return map[string]interface{}{
		"group":   l.Group,
		"label":   l.Label,
		"title":   l.Title,
		"value":   l.Value,
		"checked": l.Checked,
		"display": display,
	}
}

// artifactValues groups incident artifacts by type. Device names found in the
// description are added when no device artifact is stored.
func artifactValues(inc *models.Incident) map[string]interface{} {
	byType := map[string][]string{}
	var order []string
	for _, a := range inc.Artifacts {
		if _, ok := byType[a.Type]; !ok {
			order = append(order, a.Type)
		}
		byType[a.Type] = append(byType[a.Type], a.Value)
	}
	if _, ok := byType[artifact.TypeDevice]; !ok {
		if devices := artifact.Unique(artifact.Devices(inc.Description)); len(devices) > 0 {
			order = append(order, artifact.TypeDevice)
			byType[artifact.TypeDevice] = devices
		}
	}

	out := make(map[string]interface{}, len(order))
	for _, typ := range order {
		out[typ] = strings.Join(byType[typ], ", ")
	}
	return out
}

// unauthenticatedURL keeps scheme and host of raw and points it at the
// quiz's public form.
func unauthenticatedURL(raw, quizID string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}
	return (&url.URL{Scheme: u.Scheme, Host: u.Host, Path: "/form/" + quizID}).String()
}

type contextInput struct {
	action    Action
	incident  *models.Incident
	comment   *models.Comment
	quiz      *models.Quiz
	recipient directory.Recipient
	answers   []models.QuizAnswer
}

func (n *Notifier) buildContext(ctx context.Context, in contextInput) (map[string]interface{}, error) {
	inc := in.incident
	data := map[string]interface{}{
		"incident_name": inc.Subject,
		"incident_desc": inc.Description,
	}
	for k, v := range artifactValues(inc) {
		data[k] = v
	}

	switch in.action {
	case ActionUserAnswered:
		transcript, err := n.transcript(ctx, in.quiz, in.answers)
		if err != nil {
			return nil, err
		}
		data["quiz"] = transcript
		data["date"] = n.renderer.Format(in.comment.Date)
	case ActionInitial:
		if raw, ok := data["date"].(string); ok {
			data["date"] = n.renderer.NormalizeDate(raw)
		} else {
			data["date"] = n.renderer.Format(inc.Date)
		}
	default:
		data["comment"] = in.comment.Comment
		data["incident"] = map[string]interface{}{
			"id":       inc.ID,
			"subject":  inc.Subject,
			"severity": inc.Severity,
			"status":   inc.Status,
			"category": inc.Category.Name,
			"date":     n.renderer.Format(inc.Date),
		}
	}

	if in.quiz.User != nil {
		data["username"] = in.quiz.User.Username
	}
	data["ldap_egroup"] = in.recipient.Group
	if u, ok := data[artifact.TypeIncidentURL].(string); ok && !in.recipient.Enabled {
		data[artifact.TypeIncidentURL] = unauthenticatedURL(u, in.quiz.ID)
	}
	return data, nil
}

// transcript renders the answers with the global "quiz answer" template, or
// a built-in layout when that template does not exist.
func (n *Notifier) transcript(ctx context.Context, q *models.Quiz, answers []models.QuizAnswer) (string, error) {
	body := defaultTranscript
	tpl, found, err := n.templates.Global(ctx, models.TemplateTypeQuizAnswer)
	if err != nil {
		return "", err
	}
	if found {
		body = tpl.Body
	}

	groupTitles := map[uint]string{}
	for _, tg := range q.Template.Groups {
		groupTitles[tg.GroupID] = tg.Group.Title
	}

	lines := make([]map[string]interface{}, 0, len(answers))
	for _, a := range answers {
		lines = append(lines, transcriptLine{
			Group:   groupTitles[a.QuestionGroupID],
			Label:   a.Question.Label,
			Title:   a.Question.Title,
			Value:   a.AnswerValue,
			Checked: a.AnswerValue == form.CheckedValue,
		}.values())
	}
	return mustache.Render(body, map[string]interface{}{"answers": lines})
}
