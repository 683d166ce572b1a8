package swap

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
	"github.com/nexchain-labs/asset-gateway/pkg/dex"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// HTTP wraps the Engine to provide HTTP endpoints
type HTTP struct {
	engine *Engine
	logger *zap.Logger
}

// RegisterRoutes registers swap endpoints on the given chi router
func RegisterRoutes(r chi.Router, engine *Engine, logger *zap.Logger) {
	h := &HTTP{
		engine: engine,
		logger: logger,
	}

	r.Post("/swap", apphttp.HandleError(h.swap))
	r.Post("/swap/dex", apphttp.HandleError(h.swapViaDEX))
	r.Post("/swap/crosschain", apphttp.HandleError(h.swapCrossChain))
	r.Get("/swap/rates", apphttp.HandleError(h.rates))
	r.Get("/swap/pending", apphttp.HandleError(h.pending))
	r.Get("/swap/history", apphttp.HandleError(h.history))
}

type swapRequest struct {
	Amount     decimal.Decimal `json:"amount" validate:"required"`
	FromToken  string          `json:"fromToken" validate:"required"`
	ToToken    string          `json:"toToken" validate:"required"`
	Address    string          `json:"address" validate:"required"`
	SigningKey string          `json:"signingKey" validate:"required"`
}

func (h *HTTP) swap(w http.ResponseWriter, r *http.Request) error {
	var req swapRequest
	if err := h.decode(r, &req); err != nil {
		return err
	}

	result, err := h.engine.Execute(r.Context(), &Request{
		Amount:     req.Amount,
		FromToken:  req.FromToken,
		ToToken:    req.ToToken,
		Address:    req.Address,
		SigningKey: req.SigningKey,
	})
	if err != nil {
		return swapError(err)
	}

	h.writeJSON(w, http.StatusOK, result)
	return nil
}

type dexSwapRequest struct {
	TokenIn  string          `json:"tokenIn" validate:"required"`
	TokenOut string          `json:"tokenOut" validate:"required"`
	AmountIn decimal.Decimal `json:"amountIn" validate:"required"`
	Address  string          `json:"address" validate:"required"`
}

func (h *HTTP) swapViaDEX(w http.ResponseWriter, r *http.Request) error {
	var req dexSwapRequest
	if err := h.decode(r, &req); err != nil {
		return err
	}

	result, err := h.engine.ExecuteViaDEX(r.Context(), &DEXRequest{
		TokenIn:  req.TokenIn,
		TokenOut: req.TokenOut,
		AmountIn: req.AmountIn,
		Address:  req.Address,
	})
	if err != nil {
		return swapError(err)
	}

	h.writeJSON(w, http.StatusOK, result)
	return nil
}

type crossChainSwapRequest struct {
	Amount     decimal.Decimal `json:"amount" validate:"required"`
	Address    string          `json:"address" validate:"required"`
	SigningKey string          `json:"signingKey" validate:"required"`
}

func (h *HTTP) swapCrossChain(w http.ResponseWriter, r *http.Request) error {
	var req crossChainSwapRequest
	if err := h.decode(r, &req); err != nil {
		return err
	}

	result, err := h.engine.ExecuteCrossChainToBSC(r.Context(), &CrossChainRequest{
		Amount:     req.Amount,
		Address:    req.Address,
		SigningKey: req.SigningKey,
	})
	if err != nil {
		return swapError(err)
	}

	h.writeJSON(w, http.StatusOK, result)
	return nil
}

func (h *HTTP) rates(w http.ResponseWriter, r *http.Request) error {
	h.writeJSON(w, http.StatusOK, map[string]any{
		"rates": h.engine.Rates(),
	})
	return nil
}

func (h *HTTP) pending(w http.ResponseWriter, r *http.Request) error {
	address := r.URL.Query().Get("address")
	if address == "" {
		return apperrors.BadRequestError(nil, "address query parameter required")
	}

	swaps, err := h.engine.PendingSwaps(r.Context(), address)
	if err != nil {
		return apperrors.GeneralError(err)
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"swaps": swaps,
	})
	return nil
}

func (h *HTTP) history(w http.ResponseWriter, r *http.Request) error {
	address := r.URL.Query().Get("address")
	if address == "" {
		return apperrors.BadRequestError(nil, "address query parameter required")
	}

	entries, err := h.engine.History(r.Context(), address)
	if err != nil {
		return apperrors.DependencyError(err, "failed to fetch swap history")
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"history": entries,
	})
	return nil
}

func (h *HTTP) decode(r *http.Request, dst any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20)) // 1MB limit
	if err != nil {
		return apperrors.BadRequestError(err, "failed to read request")
	}

	if err := json.Unmarshal(body, dst); err != nil {
		return apperrors.BadRequestError(err, "invalid JSON")
	}
	if err := validate.Struct(dst); err != nil {
		return apperrors.BadRequestError(err, "missing or invalid fields")
	}
	return nil
}

func swapError(err error) error {
	switch {
	case errors.Is(err, ErrInvalidAmount),
		errors.Is(err, ErrUnsupportedPair),
		errors.Is(err, ErrInsufficientFunds):
		return apperrors.BadRequestError(err, err.Error())
	case errors.Is(err, dex.ErrNotConfigured):
		return apperrors.DependencyError(err, "market maker not configured")
	default:
		return apperrors.DependencyError(err, "swap failed")
	}
}

func (h *HTTP) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
