package bridge

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
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// HTTP wraps the Engine to provide HTTP endpoints
type HTTP struct {
	engine *Engine
	logger *zap.Logger
}

// RegisterRoutes registers bridge endpoints on the given chi router
func RegisterRoutes(r chi.Router, engine *Engine, logger *zap.Logger) {
	h := &HTTP{
		engine: engine,
		logger: logger,
	}

	r.Post("/bridge/out", apphttp.HandleError(h.bridgeOut))
	r.Post("/bridge/in", apphttp.HandleError(h.bridgeIn))
	r.Get("/bridge/status/{txHash}", apphttp.HandleError(h.status))
	r.Get("/bridge/history", apphttp.HandleError(h.history))
	r.Get("/bridge/stats", apphttp.HandleError(h.stats))
}

type bridgeOutRequest struct {
	Amount      decimal.Decimal `json:"amount" validate:"required"`
	ToChain     string          `json:"toChain" validate:"required"`
	Recipient   string          `json:"recipient" validate:"required"`
	FromAddress string          `json:"fromAddress" validate:"required"`
	SigningKey  string          `json:"signingKey" validate:"required"`
}

func (h *HTTP) bridgeOut(w http.ResponseWriter, r *http.Request) error {
	var req bridgeOutRequest
	if err := h.decode(r, &req); err != nil {
		return err
	}

	result, err := h.engine.BridgeOut(r.Context(), &OutRequest{
		Amount:      req.Amount,
		ToChain:     req.ToChain,
		Recipient:   req.Recipient,
		FromAddress: req.FromAddress,
		SigningKey:  req.SigningKey,
	})
	if err != nil {
		return bridgeError(err)
	}

	h.writeJSON(w, http.StatusOK, result)
	return nil
}

type bridgeInRequest struct {
	Amount       decimal.Decimal `json:"amount" validate:"required"`
	FromChain    string          `json:"fromChain" validate:"required"`
	SourceTxHash string          `json:"sourceTransactionHash" validate:"required"`
	Recipient    string          `json:"recipient" validate:"required"`
}

func (h *HTTP) bridgeIn(w http.ResponseWriter, r *http.Request) error {
	var req bridgeInRequest
	if err := h.decode(r, &req); err != nil {
		return err
	}

	result, err := h.engine.BridgeIn(r.Context(), &InRequest{
		Amount:       req.Amount,
		FromChain:    req.FromChain,
		SourceTxHash: req.SourceTxHash,
		Recipient:    req.Recipient,
	})
	if err != nil {
		return bridgeError(err)
	}

	h.writeJSON(w, http.StatusOK, result)
	return nil
}

func (h *HTTP) status(w http.ResponseWriter, r *http.Request) error {
	txHash := chi.URLParam(r, "txHash")
	if txHash == "" {
		return apperrors.BadRequestError(nil, "transaction hash required")
	}

	result, err := h.engine.Status(r.Context(), txHash)
	if err != nil {
		return apperrors.DependencyError(err, "failed to resolve bridge status")
	}

	h.writeJSON(w, http.StatusOK, result)
	return nil
}

func (h *HTTP) history(w http.ResponseWriter, r *http.Request) error {
	history, err := h.engine.History(r.Context())
	if err != nil {
		return apperrors.GeneralError(err)
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"history": history,
	})
	return nil
}

func (h *HTTP) stats(w http.ResponseWriter, r *http.Request) error {
	stats, err := h.engine.Stats(r.Context())
	if err != nil {
		return apperrors.GeneralError(err)
	}

	h.writeJSON(w, http.StatusOK, stats)
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

func bridgeError(err error) error {
	switch {
	case errors.Is(err, ErrInvalidAmount),
		errors.Is(err, ErrAmountBelowMinimum),
		errors.Is(err, ErrUnsupportedChain),
		errors.Is(err, ErrInvalidRecipient),
		errors.Is(err, ErrInsufficientFunds):
		return apperrors.BadRequestError(err, err.Error())
	case errors.Is(err, ErrVerificationFailed):
		return apperrors.UnprocessableError(err, err.Error())
	case errors.Is(err, ErrAlreadyProcessed),
		errors.Is(err, ErrBridgeInFlight):
		return apperrors.ConflictError(err, err.Error())
	default:
		return apperrors.DependencyError(err, "bridge operation failed")
	}
}

func (h *HTTP) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
