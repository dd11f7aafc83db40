package quiz

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"incident-quiz/internal/auth"
	"incident-quiz/internal/form"
	"incident-quiz/internal/incident"
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

// RegisterPublic mounts the capability routes answered through the quiz link.
func (h *Handler) RegisterPublic(r *mux.Router) {
	r.HandleFunc("/form/{id}", h.GetForm).Methods(http.MethodGet)
	r.HandleFunc("/form/{id}", h.SubmitForm).Methods(http.MethodPost)
}

// Register mounts the incident-handler routes.
func (h *Handler) Register(r *mux.Router) {
	r.HandleFunc("/incidents/{incident_id:[0-9]+}/quiz", h.GetIncidentForm).Methods(http.MethodGet)
	r.HandleFunc("/incidents/{incident_id:[0-9]+}/quiz", h.SubmitIncidentForm).Methods(http.MethodPost)

	r.HandleFunc("/quizzes", h.ListQuizzes).Methods(http.MethodGet)
	r.HandleFunc("/quizzes", h.CreateQuiz).Methods(http.MethodPost)
	r.HandleFunc("/quizzes/{id}", h.GetQuiz).Methods(http.MethodGet)
	r.HandleFunc("/quizzes/{id}", h.UpdateQuiz).Methods(http.MethodPatch)
	r.HandleFunc("/quizzes/{id}", h.DeleteQuiz).Methods(http.MethodDelete)
}

type formResponse struct {
	State  State           `json:"state"`
	Quiz   models.QuizDTO  `json:"quiz"`
	Schema *form.Schema    `json:"schema"`
	Errors map[uint]string `json:"errors,omitempty"`
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, incident.ErrNotFound), errors.Is(err, ErrNoTemplate):
		httpx.WriteError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrAlreadyAnswered), errors.Is(err, ErrQuizExists):
		httpx.WriteError(w, http.StatusConflict, err.Error())
	case errors.Is(err, form.ErrUnknownFieldKind), errors.Is(err, form.ErrUnknownWidgetKind):
		h.log.Error("Quiz template holds an unknown question kind", zap.Error(err))
		httpx.WriteError(w, http.StatusInternalServerError, "quiz cannot be rendered")
	default:
		h.log.Error("Quiz request failed", zap.Error(err))
		httpx.WriteError(w, http.StatusInternalServerError, "internal error")
	}
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, q *models.Quiz, withWatchlist bool) {
	schema, err := h.service.Form(r.Context(), q)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, formResponse{
		State:  StateOf(q),
		Quiz:   q.ToDTO(withWatchlist),
		Schema: schema,
	})
}

// readSubmission accepts url-encoded forms and JSON objects keyed
// "<group id>-<question id>". JSON values may be strings, booleans or
// numbers.
func readSubmission(r *http.Request) (form.Submission, error) {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		var raw map[string]interface{}
		if err := httpx.Decode(r, &raw); err != nil {
			return nil, err
		}
		values := url.Values{}
		for k, v := range raw {
			switch val := v.(type) {
			case nil:
			case string:
				values.Set(k, val)
			case bool:
				if val {
					values.Set(k, form.CheckedValue)
				} else {
					values.Set(k, "")
				}
			case float64:
				values.Set(k, strconv.FormatFloat(val, 'f', -1, 64))
			default:
				return nil, fmt.Errorf("unsupported value for %s", k)
			}
		}
		return form.ParseValues(values), nil
	}
	if err := r.ParseForm(); err != nil {
		return nil, err
	}
	return form.ParseValues(r.PostForm), nil
}

func requestContext(r *http.Request) RequestContext {
	return RequestContext{
		RemoteAddr: r.RemoteAddr,
		UserAgent:  r.UserAgent(),
		UserID:     auth.UserID(r.Context()),
	}
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request, quizID string, withWatchlist bool) {
	sub, err := readSubmission(r)
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := h.service.Submit(r.Context(), quizID, sub, requestContext(r))
	if err != nil {
		h.fail(w, err)
		return
	}

	status := http.StatusOK
	if res.State == StateSubmittedInvalid {
		status = http.StatusUnprocessableEntity
	}
	httpx.WriteJSON(w, status, formResponse{
		State:  res.State,
		Quiz:   res.Quiz.ToDTO(withWatchlist),
		Schema: res.Schema,
		Errors: res.Errors,
	})
}

func (h *Handler) GetForm(w http.ResponseWriter, r *http.Request) {
	q, err := h.service.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.fail(w, err)
		return
	}
	h.render(w, r, q, false)
}

func (h *Handler) SubmitForm(w http.ResponseWriter, r *http.Request) {
	h.submit(w, r, mux.Vars(r)["id"], false)
}

func (h *Handler) GetIncidentForm(w http.ResponseWriter, r *http.Request) {
	incidentID, err := httpx.UintVar(r, "incident_id")
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	q, err := h.service.GetOrCreateForIncident(r.Context(), incidentID)
	if err != nil {
		h.fail(w, err)
		return
	}
	h.render(w, r, q, true)
}

func (h *Handler) SubmitIncidentForm(w http.ResponseWriter, r *http.Request) {
	incidentID, err := httpx.UintVar(r, "incident_id")
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	q, err := h.service.GetOrCreateForIncident(r.Context(), incidentID)
	if err != nil {
		h.fail(w, err)
		return
	}
	h.submit(w, r, q.ID, true)
}

func (h *Handler) ListQuizzes(w http.ResponseWriter, r *http.Request) {
	quizzes, err := h.service.List(r.Context())
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, quizzes)
}

type createRequest struct {
	IncidentID uint  `json:"incident_id"`
	UserID     *uint `json:"user_id"`
}

func (h *Handler) CreateQuiz(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.IncidentID == 0 {
		httpx.WriteError(w, http.StatusBadRequest, "incident_id is required")
		return
	}
	q, err := h.service.Create(r.Context(), req.IncidentID, req.UserID)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, q)
}

func (h *Handler) GetQuiz(w http.ResponseWriter, r *http.Request) {
	q, err := h.service.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, q)
}

func (h *Handler) UpdateQuiz(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID *uint `json:"user_id"`
	}
	if err := httpx.Decode(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	q, err := h.service.UpdateOwner(r.Context(), mux.Vars(r)["id"], req.UserID)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, q)
}

func (h *Handler) DeleteQuiz(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), mux.Vars(r)["id"]); err != nil {
		h.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
