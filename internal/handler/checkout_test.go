package handler

import (
	"net/http"
	"testing"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func checkoutBody(items []map[string]any, couponCode string) map[string]any {
	return map[string]any{
		"items":      items,
		"couponCode": couponCode,
		"address": map[string]any{
			"name":       "Jordan Lee",
			"line":       "1 Main St",
			"city":       "Portland",
			"state":      "OR",
			"postalCode": "97201",
			"country":    "US",
		},
		"email": "jordan@example.com",
	}
}

func TestCheckout(t *testing.T) {
	e := newTestEnv(t)

	w := e.do(t, http.MethodPost, "/checkout", checkoutBody([]map[string]any{
		{"productId": "p1", "quantity": 2},
	}, ""), asUser("u1"))

	require.Equal(t, http.StatusCreated, w.Code)
	var out orderResponse
	decodeJSON(t, w, &out)
	assert.NotEmpty(t, out.ID)
	assert.True(t, out.Subtotal.Equal(dec(t, "20.00")))
	assert.True(t, out.Total.Equal(dec(t, "20.00")))
	assert.Equal(t, "pending", out.Status)
	require.Len(t, out.Items, 1)
	assert.Equal(t, "Classic Tee", out.Items[0].Name)

	require.Equal(t, 1, e.finalizer.calls)
	assert.Equal(t, "u1", e.finalizer.lastOpts.ClearCartUserID)
	assert.Empty(t, e.finalizer.lastOpts.CouponCode)
}

func TestCheckout_GuestKeepsNoCart(t *testing.T) {
	e := newTestEnv(t)

	w := e.do(t, http.MethodPost, "/checkout", checkoutBody([]map[string]any{
		{"productId": "p1", "quantity": 1},
	}, ""), nil)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Empty(t, e.finalizer.lastOpts.ClearCartUserID)
}

func TestCheckout_CouponApplied(t *testing.T) {
	e := newTestEnv(t)

	// 5 x 10.00 clears the 50.00 minimum for SAVE10.
	w := e.do(t, http.MethodPost, "/checkout", checkoutBody([]map[string]any{
		{"productId": "p1", "quantity": 5},
	}, "save10"), asUser("u1"))

	require.Equal(t, http.StatusCreated, w.Code)
	var out orderResponse
	decodeJSON(t, w, &out)
	assert.True(t, out.Subtotal.Equal(dec(t, "50.00")))
	assert.True(t, out.Discount.Equal(dec(t, "5.00")))
	assert.True(t, out.Total.Equal(dec(t, "45.00")))
	assert.Equal(t, "SAVE10", out.CouponCode)
	assert.Equal(t, "SAVE10", e.finalizer.lastOpts.CouponCode)
}

func TestCheckout_CouponRejected(t *testing.T) {
	e := newTestEnv(t)

	w := e.do(t, http.MethodPost, "/checkout", checkoutBody([]map[string]any{
		{"productId": "p1", "quantity": 2},
	}, "SAVE10"), asUser("u1"))

	body := requireErrorBody(t, w, http.StatusUnprocessableEntity)
	assert.Equal(t, "BelowMinimum", body.Reason)
	assert.Equal(t, 0, e.finalizer.calls)
}

func TestCheckout_InsufficientStock(t *testing.T) {
	e := newTestEnv(t)

	w := e.do(t, http.MethodPost, "/checkout", checkoutBody([]map[string]any{
		{"productId": "p2", "quantity": 3},
	}, ""), asUser("u1"))

	body := requireErrorBody(t, w, http.StatusConflict)
	assert.Equal(t, "insufficient_stock", body.Reason)
	assert.Equal(t, 0, e.finalizer.calls)
}

func TestCheckout_UnknownProduct(t *testing.T) {
	e := newTestEnv(t)

	w := e.do(t, http.MethodPost, "/checkout", checkoutBody([]map[string]any{
		{"productId": "ghost", "quantity": 1},
	}, ""), asUser("u1"))

	requireErrorBody(t, w, http.StatusNotFound)
}

func TestCheckout_EmptyItems(t *testing.T) {
	e := newTestEnv(t)

	w := e.do(t, http.MethodPost, "/checkout", checkoutBody(nil, ""), asUser("u1"))

	requireErrorBody(t, w, http.StatusBadRequest)
}

func TestCheckout_IncompleteAddress(t *testing.T) {
	e := newTestEnv(t)

	body := checkoutBody([]map[string]any{{"productId": "p1", "quantity": 1}}, "")
	body["address"] = map[string]any{"line": "1 Main St"}

	w := e.do(t, http.MethodPost, "/checkout", body, asUser("u1"))

	resp := requireErrorBody(t, w, http.StatusBadRequest)
	assert.Equal(t, "shipping address incomplete", resp.Message)
	assert.Equal(t, 0, e.finalizer.calls)
}

func TestCheckout_FinalizerFailure(t *testing.T) {
	e := newTestEnv(t)
	e.finalizer.err = errors.New("connection reset")

	w := e.do(t, http.MethodPost, "/checkout", checkoutBody([]map[string]any{
		{"productId": "p1", "quantity": 1},
	}, ""), asUser("u1"))

	body := requireErrorBody(t, w, http.StatusInternalServerError)
	assert.Equal(t, "internal error", body.Message)
}
