// Package api provides the HTTP handlers and the per-user WebSocket feed
// over the ledger service.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/atmx/wager-ledger/internal/ledger"
	"github.com/atmx/wager-ledger/internal/lock"
	"github.com/atmx/wager-ledger/internal/service"
	"github.com/atmx/wager-ledger/internal/store"
)

// Handler serves the ledger API.
type Handler struct {
	svc    *service.Service
	hub    *Hub // optional
	logger *zap.Logger
}

// NewHandler creates the HTTP handler set. Pass nil for hub if live
// updates are not needed.
func NewHandler(svc *service.Service, hub *Hub, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, hub: hub, logger: logger}
}

// Routes mounts every user-scoped route on r.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/users/{userID}", func(r chi.Router) {
		r.Put("/", h.SyncUser)
		r.Get("/", h.GetUser)

		r.Get("/accounts", h.ListAccounts)
		r.Post("/accounts", h.CreateAccount)
		r.Put("/accounts/{accountID}", h.UpdateAccount)
		r.Delete("/accounts/{accountID}", h.DeleteAccount)
		r.Post("/accounts/{accountID}/balance", h.AdjustBalance)

		r.Post("/wagers", h.PlaceWager)
		r.Get("/matches", h.ListMatches)
		r.Post("/matches/settle", h.SettleMatch)
		r.Post("/bookkeeping/reset", h.ResetBookkeeping)

		r.Get("/history", h.ListHistory)
		r.Delete("/history", h.PurgeHistory)

		if h.hub != nil {
			r.Get("/ws", h.hub.HandleWS)
		}
	})
}

// SyncUser handles PUT /api/v1/users/{userID}
func (h *Handler) SyncUser(w http.ResponseWriter, r *http.Request) {
	var req SyncUserRequest
	if !decode(w, r, &req) {
		return
	}

	agg, created, err := h.svc.SyncUser(r.Context(), chi.URLParam(r, "userID"), service.Profile{
		Name:  req.Name,
		Email: req.Email,
		Image: req.Image,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, agg)
}

// GetUser handles GET /api/v1/users/{userID}
func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	agg, err := h.svc.GetAggregate(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, agg)
}

// ListAccounts handles GET /api/v1/users/{userID}/accounts
func (h *Handler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.svc.ListAccounts(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, accounts)
}

// CreateAccount handles POST /api/v1/users/{userID}/accounts
func (h *Handler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var req AccountRequest
	if !decode(w, r, &req) {
		return
	}

	acc, err := h.svc.CreateAccount(r.Context(), chi.URLParam(r, "userID"), req.input())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, acc)
}

// UpdateAccount handles PUT /api/v1/users/{userID}/accounts/{accountID}
func (h *Handler) UpdateAccount(w http.ResponseWriter, r *http.Request) {
	var req AccountRequest
	if !decode(w, r, &req) {
		return
	}

	acc, err := h.svc.UpdateAccount(r.Context(),
		chi.URLParam(r, "userID"), chi.URLParam(r, "accountID"), req.input())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, acc)
}

// DeleteAccount handles DELETE /api/v1/users/{userID}/accounts/{accountID}
func (h *Handler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	discarded, err := h.svc.DeleteAccount(r.Context(),
		chi.URLParam(r, "userID"), chi.URLParam(r, "accountID"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"discarded_wagers": discarded})
}

// AdjustBalance handles POST /api/v1/users/{userID}/accounts/{accountID}/balance
func (h *Handler) AdjustBalance(w http.ResponseWriter, r *http.Request) {
	var req BalanceRequest
	if !decode(w, r, &req) {
		return
	}

	acc, err := h.svc.AdjustBalance(r.Context(),
		chi.URLParam(r, "userID"), chi.URLParam(r, "accountID"),
		req.Amount, ledger.Direction(req.Direction))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, acc)
}

// PlaceWager handles POST /api/v1/users/{userID}/wagers
func (h *Handler) PlaceWager(w http.ResponseWriter, r *http.Request) {
	var req PlaceWagerRequest
	if !decode(w, r, &req) {
		return
	}

	wagers, err := h.svc.PlaceWager(r.Context(), chi.URLParam(r, "userID"), req.input())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"wagers": wagers})
}

// ListMatches handles GET /api/v1/users/{userID}/matches
func (h *Handler) ListMatches(w http.ResponseWriter, r *http.Request) {
	matches, err := h.svc.ListOpenMatches(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, matches)
}

// SettleMatch handles POST /api/v1/users/{userID}/matches/settle
func (h *Handler) SettleMatch(w http.ResponseWriter, r *http.Request) {
	var req SettleRequest
	if !decode(w, r, &req) {
		return
	}

	result, err := h.svc.SettleMatch(r.Context(), chi.URLParam(r, "userID"), req.input())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// ResetBookkeeping handles POST /api/v1/users/{userID}/bookkeeping/reset
func (h *Handler) ResetBookkeeping(w http.ResponseWriter, r *http.Request) {
	agg, err := h.svc.ResetCycleBookkeeping(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, agg)
}

// ListHistory handles GET /api/v1/users/{userID}/history?limit=&cursor=
func (h *Handler) ListHistory(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, "limit must be an integer", http.StatusBadRequest)
			return
		}
		limit = n
	}

	page, err := h.svc.ListHistory(r.Context(), chi.URLParam(r, "userID"), limit, r.URL.Query().Get("cursor"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// PurgeHistory handles DELETE /api/v1/users/{userID}/history
func (h *Handler) PurgeHistory(w http.ResponseWriter, r *http.Request) {
	n, err := h.svc.PurgeHistory(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"deleted": n})
}

// --- Helpers ---

type validatable interface {
	Validate() error
}

// decode reads and validates a JSON body, writing a 400 on failure.
func decode(w http.ResponseWriter, r *http.Request, req validatable) bool {
	// An empty body decodes to the zero request and is left to Validate.
	if err := json.NewDecoder(r.Body).Decode(req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return false
	}
	if err := req.Validate(); err != nil {
		writeError(w, validationMessage(err), http.StatusBadRequest)
		return false
	}
	return true
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		if fe.Param() != "" {
			return fe.Namespace() + " failed " + fe.Tag() + "=" + fe.Param()
		}
		return fe.Namespace() + " failed " + fe.Tag()
	}
	return err.Error()
}

// statusFor maps service errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, ledger.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ledger.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, ledger.ErrInsufficientFunds), errors.Is(err, store.ErrAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, lock.ErrNotAcquired):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", status),
			zap.Error(err),
		)
	}
	writeError(w, err.Error(), status)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
