package catalog

import (
	"errors"
	"net/http"

	"incident-quiz/internal/models"
	"incident-quiz/pkg/httpx"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

type Handler struct {
	service *Service
	log     *zap.Logger
}

func NewHandler(service *Service, log *zap.Logger) *Handler {
	return &Handler{service: service, log: log}
}

// Register mounts the catalog routes on r.
func (h *Handler) Register(r *mux.Router) {
	r.HandleFunc("/questions", h.ListQuestions).Methods(http.MethodGet)
	r.HandleFunc("/questions", h.CreateQuestion).Methods(http.MethodPost)
	r.HandleFunc("/questions/{id:[0-9]+}", h.GetQuestion).Methods(http.MethodGet)
	r.HandleFunc("/questions/{id:[0-9]+}", h.UpdateQuestion).Methods(http.MethodPut)

	r.HandleFunc("/question-groups", h.ListGroups).Methods(http.MethodGet)
	r.HandleFunc("/question-groups", h.CreateGroup).Methods(http.MethodPost)
	r.HandleFunc("/question-groups/{id:[0-9]+}", h.GetGroup).Methods(http.MethodGet)

	r.HandleFunc("/quiz-templates", h.ListTemplates).Methods(http.MethodGet)
	r.HandleFunc("/quiz-templates", h.CreateTemplate).Methods(http.MethodPost)
	r.HandleFunc("/quiz-templates/{id:[0-9]+}", h.GetTemplate).Methods(http.MethodGet)
	r.HandleFunc("/quiz-templates/{id:[0-9]+}", h.UpdateTemplate).Methods(http.MethodPut)
	r.HandleFunc("/quiz-templates/{id:[0-9]+}", h.DeleteTemplate).Methods(http.MethodDelete)
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrCategoryNotFound):
		httpx.WriteError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrInvalidOrder), errors.Is(err, ErrInvalidQuestion):
		httpx.WriteError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, ErrTemplateExists), errors.Is(err, ErrTemplateInUse), errors.Is(err, ErrQuestionInUse):
		httpx.WriteError(w, http.StatusConflict, err.Error())
	default:
		h.log.Error("Catalog request failed", zap.Error(err))
		httpx.WriteError(w, http.StatusInternalServerError, "internal error")
	}
}

type questionRequest struct {
	FieldKind  string `json:"field_kind"`
	WidgetKind string `json:"widget_kind"`
	Label      string `json:"label"`
	Title      string `json:"title"`
}

func (req questionRequest) model() models.Question {
	return models.Question{
		FieldKind:  req.FieldKind,
		WidgetKind: req.WidgetKind,
		Label:      req.Label,
		Title:      req.Title,
	}
}

func (h *Handler) CreateQuestion(w http.ResponseWriter, r *http.Request) {
	var req questionRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Label == "" {
		httpx.WriteError(w, http.StatusBadRequest, "label is required")
		return
	}
	q := req.model()
	if err := h.service.CreateQuestion(r.Context(), &q); err != nil {
		h.fail(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, q)
}

func (h *Handler) UpdateQuestion(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.UintVar(r, "id")
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req questionRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	q := req.model()
	q.ID = id
	if err := h.service.UpdateQuestion(r.Context(), &q); err != nil {
		h.fail(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, q)
}

func (h *Handler) GetQuestion(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.UintVar(r, "id")
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	q, err := h.service.GetQuestion(r.Context(), id)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, q)
}

func (h *Handler) ListQuestions(w http.ResponseWriter, r *http.Request) {
	questions, err := h.service.ListQuestions(r.Context())
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, questions)
}

type groupRequest struct {
	Title       string            `json:"title"`
	Label       string            `json:"label"`
	Description string            `json:"description"`
	Required    bool              `json:"required"`
	Questions   []OrderedQuestion `json:"questions"`
}

func (h *Handler) CreateGroup(w http.ResponseWriter, r *http.Request) {
	var req groupRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Title == "" {
		httpx.WriteError(w, http.StatusBadRequest, "title is required")
		return
	}
	g := models.QuestionGroup{
		Title:       req.Title,
		Label:       req.Label,
		Description: req.Description,
		Required:    req.Required,
	}
	if err := h.service.CreateGroup(r.Context(), &g, req.Questions); err != nil {
		h.fail(w, err)
		return
	}
	created, err := h.service.GetGroup(r.Context(), g.ID)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, created)
}

func (h *Handler) GetGroup(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.UintVar(r, "id")
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	g, err := h.service.GetGroup(r.Context(), id)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, g)
}

func (h *Handler) ListGroups(w http.ResponseWriter, r *http.Request) {
	groups, err := h.service.ListGroups(r.Context())
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, groups)
}

type linkRequest struct {
	Label      string `json:"label"`
	URL        string `json:"url"`
	OrderIndex int    `json:"order_index"`
}

type templateRequest struct {
	CategoryID  uint           `json:"category_id"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Groups      []OrderedGroup `json:"groups"`
	UsefulLinks []linkRequest  `json:"useful_links"`
}

func (h *Handler) CreateTemplate(w http.ResponseWriter, r *http.Request) {
	var req templateRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Name == "" || req.CategoryID == 0 {
		httpx.WriteError(w, http.StatusBadRequest, "name and category_id are required")
		return
	}
	links := make([]models.UsefulLink, len(req.UsefulLinks))
	for i, l := range req.UsefulLinks {
		links[i] = models.UsefulLink{Label: l.Label, URL: l.URL, OrderIndex: l.OrderIndex}
	}
	tpl := models.QuizTemplate{
		CategoryID:  req.CategoryID,
		Name:        req.Name,
		Description: req.Description,
	}
	created, err := h.service.CreateTemplate(r.Context(), &tpl, req.Groups, links)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, created)
}

func (h *Handler) GetTemplate(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.UintVar(r, "id")
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	tpl, err := h.service.GetTemplate(r.Context(), id)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, tpl)
}

func (h *Handler) ListTemplates(w http.ResponseWriter, r *http.Request) {
	templates, err := h.service.ListTemplates(r.Context())
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, templates)
}

func (h *Handler) UpdateTemplate(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.UintVar(r, "id")
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	if err := httpx.Decode(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Name == "" {
		httpx.WriteError(w, http.StatusBadRequest, "name is required")
		return
	}
	tpl, err := h.service.UpdateTemplate(r.Context(), id, req.Name, req.Description)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, tpl)
}

func (h *Handler) DeleteTemplate(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.UintVar(r, "id")
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.service.DeleteTemplate(r.Context(), id); err != nil {
		h.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
