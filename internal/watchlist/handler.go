package watchlist

import (
	"errors"
	"net/http"

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

func (h *Handler) Register(r *mux.Router) {
	r.HandleFunc("/watchlist", h.List).Methods(http.MethodGet)
	r.HandleFunc("/watchlist", h.Create).Methods(http.MethodPost)
	r.HandleFunc("/watchlist/subscribe", h.Subscribe).Methods(http.MethodPost)
	r.HandleFunc("/watchlist/{id:[0-9]+}", h.Get).Methods(http.MethodGet)
	r.HandleFunc("/watchlist/{id:[0-9]+}", h.Delete).Methods(http.MethodDelete)
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrUnknownQuiz), errors.Is(err, incident.ErrNotFound):
		httpx.WriteError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrUnknownBusinessLine):
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
	default:
		h.log.Error("Watchlist request failed", zap.Error(err))
		httpx.WriteError(w, http.StatusInternalServerError, "internal error")
	}
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.List(r.Context())
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, items)
}

type createRequest struct {
	QuizID         string `json:"quiz_id"`
	BusinessLineID uint   `json:"business_line_id"`
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.QuizID == "" || req.BusinessLineID == 0 {
		httpx.WriteError(w, http.StatusBadRequest, "quiz_id and business_line_id are required")
		return
	}
	item, err := h.service.Create(r.Context(), req.QuizID, req.BusinessLineID)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, item)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.UintVar(r, "id")
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	item, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, item)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.UintVar(r, "id")
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		h.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// baseURL is scheme://host of the request.
func baseURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}
	return scheme + "://" + r.Host
}

func (h *Handler) Subscribe(w http.ResponseWriter, r *http.Request) {
	var req models.SubscribeRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.FormID == "" {
		httpx.WriteError(w, http.StatusBadRequest, "form_id is required")
		return
	}
	q, err := h.service.Subscribe(r.Context(), req, baseURL(r))
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, q.ToDTO(true))
}
