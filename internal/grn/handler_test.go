package grn

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T) (*chi.Mux, *memoryRepo) {
	t.Helper()
	repo := newMemoryRepo(testProducts()...)
	svc := NewService(repo, nil, nil, nil)
	handler := NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), svc)
	router := chi.NewRouter()
	router.Route("/grns", handler.MountRoutes)
	return router, repo
}

func doJSON(t *testing.T, router http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func createPayload() map[string]any {
	return map[string]any{
		"grnDate":    "2026-08-01",
		"supplierId": 1,
		"items": []map[string]any{
			{"productId": 1, "quantity": 10, "costPrice": "5"},
		},
	}
}

func TestHandlerCreate(t *testing.T) {
	router, repo := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/grns", createPayload())
	require.Equal(t, http.StatusCreated, rec.Code)

	body := decodeBody(t, rec)
	require.Equal(t, true, body["success"])
	grn := body["grn"].(map[string]any)
	require.Equal(t, "50", grn["totalAmount"])
	require.NotEmpty(t, grn["grnNumber"])

	require.EqualValues(t, 10, repo.state.products[1].AvailableQty)
}

func TestHandlerCreateRejectsBadPayloads(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/grns", map[string]any{"supplierId": 1})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, false, decodeBody(t, rec)["success"])

	rec = doJSON(t, router, http.MethodPost, "/grns", map[string]any{
		"items": []map[string]any{{"productId": 1, "quantity": 1, "costPrice": "1"}},
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	payload := createPayload()
	payload["grnDate"] = "01/08/2026"
	rec = doJSON(t, router, http.MethodPost, "/grns", payload)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	// Unknown product rolls the whole request back.
	payload = createPayload()
	payload["items"] = []map[string]any{{"productId": 99, "quantity": 1, "costPrice": "1"}}
	rec = doJSON(t, router, http.MethodPost, "/grns", payload)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandlerGetAndList(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/grns", createPayload())
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/grns/1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	grn := body["grn"].(map[string]any)
	require.Equal(t, "Acme Supplies", grn["supplier"].(map[string]any)["name"])
	require.Len(t, grn["items"].([]any), 1)

	rec = doJSON(t, router, http.MethodGet, "/grns/999", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/grns?supplier_id=1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body = decodeBody(t, rec)
	require.Len(t, body["grns"].([]any), 1)

	rec = doJSON(t, router, http.MethodGet, "/grns?supplier_id=42", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body = decodeBody(t, rec)
	require.Empty(t, body["grns"])
}

func TestHandlerUpdateAndDelete(t *testing.T) {
	router, repo := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/grns", createPayload())
	require.Equal(t, http.StatusCreated, rec.Code)

	update := createPayload()
	update["items"] = []map[string]any{{"productId": 2, "quantity": 4, "costPrice": "2.50"}}
	rec = doJSON(t, router, http.MethodPut, "/grns/1", update)
	require.Equal(t, http.StatusOK, rec.Code)
	grn := decodeBody(t, rec)["grn"].(map[string]any)
	require.Equal(t, "10", grn["totalAmount"])

	require.EqualValues(t, 0, repo.state.products[1].AvailableQty)
	require.EqualValues(t, 4, repo.state.products[2].AvailableQty)

	rec = doJSON(t, router, http.MethodDelete, "/grns/1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.EqualValues(t, 0, repo.state.products[2].AvailableQty)

	rec = doJSON(t, router, http.MethodDelete, "/grns/1", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandlerAddAndRemoveItem(t *testing.T) {
	router, repo := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/grns", createPayload())
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/grns/add-item", map[string]any{
		"grnId": 1, "productId": 1, "quantity": 2, "costPrice": "6",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "product already exists in this GRN", decodeBody(t, rec)["error"])

	rec = doJSON(t, router, http.MethodPost, "/grns/add-item", map[string]any{
		"grnId": 1, "productId": 2, "quantity": 4, "costPrice": "2.50",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	result := decodeBody(t, rec)["result"].(map[string]any)
	require.Equal(t, "60", result["newTotalAmount"])
	require.EqualValues(t, 2, result["totalItemsCount"])

	rec = doJSON(t, router, http.MethodDelete, "/grns/remove-item?grnId=1&productId=2", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	result = decodeBody(t, rec)["result"].(map[string]any)
	require.Equal(t, "50", result["newTotalAmount"])
	require.EqualValues(t, 1, result["remainingItemsCount"])
	require.EqualValues(t, 0, repo.state.products[2].AvailableQty)

	rec = doJSON(t, router, http.MethodDelete, "/grns/remove-item?grnId=1&productId=2", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, router, http.MethodDelete, "/grns/remove-item", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlerRemoveItemInsufficientStock(t *testing.T) {
	router, repo := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/grns", createPayload())
	require.Equal(t, http.StatusCreated, rec.Code)

	p := repo.state.products[1]
	p.AvailableQty = 3
	repo.state.products[1] = p

	rec = doJSON(t, router, http.MethodDelete, "/grns/remove-item?grnId=1&productId=1", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t,
		fmt.Sprintf("Cannot remove item from GRN. Available quantity (%d) is less than GRN quantity (%d) for product: %s", 3, 10, "Widget"),
		decodeBody(t, rec)["error"])
}
