package grn

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/tradepost-erp/tradepost/internal/ledger"
	"github.com/tradepost-erp/tradepost/internal/platform/httpx"
	"github.com/tradepost-erp/tradepost/internal/shared"
)

// IdempotencyKeyHeader lets callers make GRN creation retry-safe.
const IdempotencyKeyHeader = "Idempotency-Key"

// Handler wires HTTP endpoints for GRN operations.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs the GRN handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers GRN routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.handleCreate)
	r.Get("/", h.handleList)
	r.Post("/add-item", h.handleAddItem)
	r.Delete("/remove-item", h.handleRemoveItem)
	r.Get("/{id}", h.handleGet)
	r.Put("/{id}", h.handleUpdate)
	r.Delete("/{id}", h.handleDelete)
}

type itemPayload struct {
	ProductID int64           `json:"productId" validate:"required"`
	Quantity  int64           `json:"quantity" validate:"required,gt=0"`
	CostPrice decimal.Decimal `json:"costPrice"`
}

type grnPayload struct {
	GRNDate       string        `json:"grnDate"`
	SupplierID    int64         `json:"supplierId" validate:"required"`
	InvoiceNumber string        `json:"invoiceNumber"`
	PONumber      string        `json:"poNumber"`
	PaymentType   string        `json:"paymentType"`
	Items         []itemPayload `json:"items" validate:"required,min=1,dive"`
}

func (p grnPayload) items() []ItemInput {
	items := make([]ItemInput, 0, len(p.Items))
	for _, item := range p.Items {
		items = append(items, ItemInput{ProductID: item.ProductID, Quantity: item.Quantity, CostPrice: item.CostPrice})
	}
	return items
}

func parseDate(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, raw)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var payload grnPayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(payload); err != nil {
		httpx.Error(w, http.StatusBadRequest, "supplierId and a non-empty items list are required")
		return
	}
	grnDate, err := parseDate(payload.GRNDate)
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, "grnDate must be YYYY-MM-DD")
		return
	}
	header, items, err := h.service.Create(r.Context(), CreateInput{
		GRNDate:        grnDate,
		SupplierID:     payload.SupplierID,
		InvoiceNumber:  payload.InvoiceNumber,
		PONumber:       payload.PONumber,
		PaymentType:    payload.PaymentType,
		Items:          payload.items(),
		IdempotencyKey: r.Header.Get(IdempotencyKeyHeader),
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"success": true, "grn": header, "items": items})
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var payload grnPayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(payload); err != nil {
		httpx.Error(w, http.StatusBadRequest, "supplierId and a non-empty items list are required")
		return
	}
	grnDate, err := parseDate(payload.GRNDate)
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, "grnDate must be YYYY-MM-DD")
		return
	}
	updated, err := h.service.Update(r.Context(), UpdateInput{
		ID:            id,
		GRNDate:       grnDate,
		SupplierID:    payload.SupplierID,
		InvoiceNumber: payload.InvoiceNumber,
		PONumber:      payload.PONumber,
		PaymentType:   payload.PaymentType,
		Items:         payload.items(),
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"success": true, "grn": updated})
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"success": true, "message": "GRN deleted and inventory reversed"})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	detail, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"success": true, "grn": detail})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	supplierID, _ := strconv.ParseInt(q.Get("supplier_id"), 10, 64)
	from, err := parseDate(q.Get("from"))
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, "from must be YYYY-MM-DD")
		return
	}
	to, err := parseDate(q.Get("to"))
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, "to must be YYYY-MM-DD")
		return
	}
	page, perPage := shared.PageParams(r, 100)
	grns, total, err := h.service.List(r.Context(), ListFilter{
		SupplierID: supplierID,
		From:       from,
		To:         to,
		Page:       page,
		PerPage:    perPage,
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"grns":       grns,
		"pagination": shared.NewPagination(page, perPage, total),
	})
}

type addItemPayload struct {
	GRNID     int64           `json:"grnId" validate:"required"`
	ProductID int64           `json:"productId" validate:"required"`
	Quantity  int64           `json:"quantity" validate:"required,gt=0"`
	CostPrice decimal.Decimal `json:"costPrice"`
}

func (h *Handler) handleAddItem(w http.ResponseWriter, r *http.Request) {
	var payload addItemPayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(payload); err != nil {
		httpx.Error(w, http.StatusBadRequest, "grnId, productId and a positive quantity are required")
		return
	}
	result, err := h.service.AddItem(r.Context(), AddItemInput{
		GRNID:     payload.GRNID,
		ProductID: payload.ProductID,
		Quantity:  payload.Quantity,
		CostPrice: payload.CostPrice,
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"success": true, "result": result})
}

func (h *Handler) handleRemoveItem(w http.ResponseWriter, r *http.Request) {
	grnID, _ := strconv.ParseInt(r.URL.Query().Get("grnId"), 10, 64)
	productID, _ := strconv.ParseInt(r.URL.Query().Get("productId"), 10, 64)
	if grnID <= 0 || productID <= 0 {
		httpx.Error(w, http.StatusBadRequest, "grnId and productId query parameters are required")
		return
	}
	result, err := h.service.RemoveItem(r.Context(), grnID, productID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"success": true, "result": result})
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Error(w, http.StatusBadRequest, "invalid GRN id")
		return 0, false
	}
	return id, true
}

func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	var insufficient *InsufficientStockError
	switch {
	case errors.As(err, &insufficient):
		httpx.Error(w, http.StatusBadRequest, insufficient.Error())
	case errors.Is(err, ErrNotFound):
		httpx.Error(w, http.StatusNotFound, "GRN not found")
	case errors.Is(err, ErrItemNotFound):
		httpx.Error(w, http.StatusNotFound, "GRN item not found")
	case errors.Is(err, ledger.ErrProductNotFound):
		httpx.Error(w, http.StatusNotFound, "product not found")
	case errors.Is(err, ErrDuplicateItem):
		httpx.Error(w, http.StatusBadRequest, "product already exists in this GRN")
	case errors.Is(err, ErrNoItems), errors.Is(err, ErrInvalidItem), errors.Is(err, ErrSupplierRequired):
		httpx.Error(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, shared.ErrIdempotencyConflict):
		httpx.Error(w, http.StatusConflict, err.Error())
	default:
		httpx.Internal(w, h.logger, "grn request failed", err, slog.String("path", r.URL.Path))
	}
}
