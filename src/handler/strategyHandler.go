package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	logger "github.com/sirupsen/logrus"

	"signalrelay/src/model"
	"signalrelay/src/repository"
	"signalrelay/src/strategy"
	"signalrelay/src/stream"
)

type strategyService interface {
	List(ctx context.Context) ([]model.Strategy, error)
	Get(ctx context.Context, id uint) (*model.Strategy, error)
	Create(ctx context.Context, in strategy.Input) (*model.Strategy, error)
	Update(ctx context.Context, id uint, in strategy.Input) (*model.Strategy, error)
	Delete(ctx context.Context, id uint) error
	Run(ctx context.Context, id uint) (*model.Strategy, error)
	Stop(ctx context.Context, id uint) (*model.Strategy, error)
	Trades(ctx context.Context, id uint, limit int) ([]model.Trade, error)
}

type exceptionLister interface {
	ListByStrategy(ctx context.Context, strategyID uint, limit int) ([]model.Exception, error)
}

// StateFunc reports the stream state of running clients, keyed by strategy id.
type StateFunc func() map[uint]stream.State

type strategyView struct {
	model.Strategy
	Connection string `json:"connection,omitempty"`
}

// StrategyHandler serves the strategy management API.
type StrategyHandler struct {
	svc        strategyService
	exceptions exceptionLister
	states     StateFunc
}

func NewStrategyHandler(svc strategyService, exceptions exceptionLister, states StateFunc) *StrategyHandler {
	return &StrategyHandler{svc: svc, exceptions: exceptions, states: states}
}

// Mount registers the routes on r.
func (h *StrategyHandler) Mount(r chi.Router) {
	r.Get("/strategies", h.List)
	r.Post("/strategies", h.Create)
	r.Route("/strategies/{id}", func(r chi.Router) {
		r.Get("/", h.Get)
		r.Put("/", h.Update)
		r.Delete("/", h.Delete)
		r.Post("/run", h.Run)
		r.Post("/stop", h.Stop)
		r.Get("/trades", h.Trades)
		r.Get("/exceptions", h.Exceptions)
	})
}

func (h *StrategyHandler) view(s model.Strategy, states map[uint]stream.State) strategyView {
	v := strategyView{Strategy: s}
	if st, ok := states[s.ID]; ok {
		v.Connection = st.String()
	}
	return v
}

func (h *StrategyHandler) currentStates() map[uint]stream.State {
	if h.states == nil {
		return nil
	}
	return h.states()
}

func (h *StrategyHandler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	states := h.currentStates()
	out := make([]strategyView, 0, len(list))
	for _, s := range list {
		out = append(out, h.view(s, states))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *StrategyHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := strategyID(w, r)
	if !ok {
		return
	}
	s, err := h.svc.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.view(*s, h.currentStates()))
}

func (h *StrategyHandler) Create(w http.ResponseWriter, r *http.Request) {
	in, ok := decodeInput(w, r)
	if !ok {
		return
	}
	s, err := h.svc.Create(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, h.view(*s, nil))
}

func (h *StrategyHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := strategyID(w, r)
	if !ok {
		return
	}
	in, ok := decodeInput(w, r)
	if !ok {
		return
	}
	s, err := h.svc.Update(r.Context(), id, in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.view(*s, h.currentStates()))
}

func (h *StrategyHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := strategyID(w, r)
	if !ok {
		return
	}
	if err := h.svc.Delete(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *StrategyHandler) Run(w http.ResponseWriter, r *http.Request) {
	id, ok := strategyID(w, r)
	if !ok {
		return
	}
	s, err := h.svc.Run(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.view(*s, h.currentStates()))
}

func (h *StrategyHandler) Stop(w http.ResponseWriter, r *http.Request) {
	id, ok := strategyID(w, r)
	if !ok {
		return
	}
	s, err := h.svc.Stop(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.view(*s, nil))
}

func (h *StrategyHandler) Trades(w http.ResponseWriter, r *http.Request) {
	id, ok := strategyID(w, r)
	if !ok {
		return
	}
	limit, ok := limitParam(w, r)
	if !ok {
		return
	}
	trades, err := h.svc.Trades(r.Context(), id, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, trades)
}

func (h *StrategyHandler) Exceptions(w http.ResponseWriter, r *http.Request) {
	id, ok := strategyID(w, r)
	if !ok {
		return
	}
	limit, ok := limitParam(w, r)
	if !ok {
		return
	}
	if _, err := h.svc.Get(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	list, err := h.exceptions.ListByStrategy(r.Context(), id, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func strategyID(w http.ResponseWriter, r *http.Request) (uint, bool) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id == 0 {
		http.Error(w, "invalid strategy id", http.StatusBadRequest)
		return 0, false
	}
	return uint(id), true
}

func limitParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, true
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		http.Error(w, "invalid limit", http.StatusBadRequest)
		return 0, false
	}
	return limit, true
}

func decodeInput(w http.ResponseWriter, r *http.Request) (strategy.Input, bool) {
	var in strategy.Input
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&in); err != nil {
		logger.WithError(err).Warn("invalid strategy payload")
		http.Error(w, "Invalid payload", http.StatusBadRequest)
		return in, false
	}
	return in, true
}

type errorBody struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

func writeError(w http.ResponseWriter, err error) {
	var verr *strategy.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "validation failed", Fields: verr.Fields})
	case errors.Is(err, repository.ErrStrategyNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Error: "strategy not found"})
	case errors.Is(err, repository.ErrStrategyNameConflict):
		writeJSON(w, http.StatusConflict, errorBody{Error: "strategy name already exists"})
	case errors.Is(err, strategy.ErrAlreadyRunning):
		writeJSON(w, http.StatusConflict, errorBody{Error: "strategy is already running"})
	case errors.Is(err, strategy.ErrAlreadyStopped):
		writeJSON(w, http.StatusConflict, errorBody{Error: "strategy is already stopped"})
	default:
		logger.WithError(err).Error("strategy request failed")
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.WithError(err).Error("failed to encode response")
	}
}
