package ledger

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/tradepost-erp/tradepost/internal/platform/httpx"
)

// Handler wires HTTP endpoints for the product ledger.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs the ledger handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers ledger routes under the products subtree.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Put("/update-inventory", h.handleUpdateInventory)
	r.Get("/{id}/cost", h.handleUnitCost)
}

type updateInventoryRequest struct {
	ProductID       int64           `json:"productId" validate:"required"`
	QuantityChange  int64           `json:"quantityChange"`
	TotalCostChange decimal.Decimal `json:"totalCostChange"`
}

type updateInventoryResponse struct {
	Success bool    `json:"success"`
	Product Product `json:"product"`
	Changes Change  `json:"changes"`
}

func (h *Handler) handleUpdateInventory(w http.ResponseWriter, r *http.Request) {
	var req updateInventoryRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Error(w, http.StatusBadRequest, "productId is required")
		return
	}
	product, changes, err := h.service.Adjust(r.Context(), AdjustInput{
		ProductID:       req.ProductID,
		QuantityChange:  req.QuantityChange,
		TotalCostChange: req.TotalCostChange,
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, updateInventoryResponse{Success: true, Product: product, Changes: changes})
}

type unitCostResponse struct {
	Success   bool   `json:"success"`
	ProductID int64  `json:"productId"`
	UnitCost  string `json:"unitCost"`
}

func (h *Handler) handleUnitCost(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Error(w, http.StatusBadRequest, "invalid product id")
		return
	}
	cost, err := h.service.ProductUnitCost(r.Context(), id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, unitCostResponse{Success: true, ProductID: id, UnitCost: cost.StringFixed(2)})
}

func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrProductNotFound):
		httpx.Error(w, http.StatusNotFound, "product not found")
	case errors.Is(err, ErrProductRequired):
		httpx.Error(w, http.StatusBadRequest, err.Error())
	default:
		httpx.Internal(w, h.logger, "ledger request failed", err, slog.String("path", r.URL.Path))
	}
}
