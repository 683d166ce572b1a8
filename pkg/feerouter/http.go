package feerouter

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	apperrors "github.com/nexchain-labs/asset-gateway/pkg/app/errors"
	apphttp "github.com/nexchain-labs/asset-gateway/pkg/app/http"
	"github.com/nexchain-labs/asset-gateway/pkg/auth"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// HTTP wraps the Router to provide HTTP endpoints
type HTTP struct {
	router *Router
	logger *zap.Logger
}

// RegisterRoutes registers fee routing endpoints on the given chi router.
// The auth middleware, when non-nil, protects the treasury mutation endpoint.
func RegisterRoutes(r chi.Router, router *Router, authMiddleware func(http.Handler) http.Handler, logger *zap.Logger) {
	h := &HTTP{
		router: router,
		logger: logger,
	}

	r.Post("/transfer", apphttp.HandleError(h.transfer))
	r.Get("/fees/quote", apphttp.HandleError(h.quote))
	r.Get("/fees/treasury", apphttp.HandleError(h.treasury))
	r.Get("/fees/treasury/stats", apphttp.HandleError(h.treasuryStats))

	if authMiddleware != nil {
		r.With(authMiddleware).Put("/fees/treasury", apphttp.HandleError(h.setTreasury))
	} else {
		r.Put("/fees/treasury", apphttp.HandleError(h.setTreasury))
	}
}

type transferRequest struct {
	From       string          `json:"from" validate:"required"`
	To         string          `json:"to" validate:"required"`
	Amount     decimal.Decimal `json:"amount" validate:"required"`
	SigningKey string          `json:"signingKey" validate:"required"`
	Memo       string          `json:"memo"`
}

func (h *HTTP) transfer(w http.ResponseWriter, r *http.Request) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20)) // 1MB limit
	if err != nil {
		return apperrors.BadRequestError(err, "failed to read request")
	}

	var req transferRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return apperrors.BadRequestError(err, "invalid JSON")
	}
	if err := validate.Struct(&req); err != nil {
		return apperrors.BadRequestError(err, "missing or invalid fields")
	}

	result, err := h.router.SendWithFee(r.Context(), &SendRequest{
		From:       req.From,
		To:         req.To,
		Amount:     req.Amount,
		SigningKey: req.SigningKey,
		Memo:       req.Memo,
	})
	if err != nil {
		return transferError(err)
	}

	h.writeJSON(w, http.StatusOK, result)
	return nil
}

func (h *HTTP) quote(w http.ResponseWriter, r *http.Request) error {
	raw := r.URL.Query().Get("amount")
	if raw == "" {
		return apperrors.BadRequestError(nil, "amount query parameter required")
	}
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return apperrors.BadRequestError(err, "invalid amount")
	}

	quote := h.router.QuoteTransactionFee(amount)
	h.writeJSON(w, http.StatusOK, quote)
	return nil
}

func (h *HTTP) treasury(w http.ResponseWriter, r *http.Request) error {
	h.writeJSON(w, http.StatusOK, map[string]string{
		"treasuryAddress": h.router.TreasuryAddress(r.Context()),
	})
	return nil
}

func (h *HTTP) treasuryStats(w http.ResponseWriter, r *http.Request) error {
	stats, err := h.router.TreasuryStats(r.Context(), r.URL.Query().Get("address"))
	if err != nil {
		return apperrors.DependencyError(err, "failed to fetch treasury stats")
	}

	h.writeJSON(w, http.StatusOK, stats)
	return nil
}

type setTreasuryRequest struct {
	Address string `json:"address" validate:"required"`
}

func (h *HTTP) setTreasury(w http.ResponseWriter, r *http.Request) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20)) // 1MB limit
	if err != nil {
		return apperrors.BadRequestError(err, "failed to read request")
	}

	var req setTreasuryRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return apperrors.BadRequestError(err, "invalid JSON")
	}
	if err := validate.Struct(&req); err != nil {
		return apperrors.BadRequestError(err, "address required")
	}

	if err := h.router.SetTreasuryAddress(r.Context(), req.Address); err != nil {
		if errors.Is(err, ErrEmptyTreasury) {
			return apperrors.BadRequestError(err, err.Error())
		}
		return apperrors.GeneralError(err)
	}

	subject, _ := auth.SubjectFromContext(r.Context())
	h.logger.Info("Treasury address updated",
		zap.String("address", req.Address),
		zap.String("subject", subject))

	h.writeJSON(w, http.StatusOK, map[string]string{
		"treasuryAddress": req.Address,
	})
	return nil
}

func transferError(err error) error {
	switch {
	case errors.Is(err, ErrInvalidAmount),
		errors.Is(err, ErrAmountBelowFee),
		errors.Is(err, ErrInsufficientFunds):
		return apperrors.BadRequestError(err, err.Error())
	default:
		return apperrors.DependencyError(err, "transfer failed")
	}
}

func (h *HTTP) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
