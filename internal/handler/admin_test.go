package handler

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/velvetlane/storefront/internal/domain/coupon"
	"github.com/velvetlane/storefront/internal/domain/order"
)

func TestAdminCreateProduct(t *testing.T) {
	e := newTestEnv(t)

	w := e.do(t, http.MethodPost, "/admin/products", map[string]any{
		"name":     "Canvas Tote",
		"price":    "24.00",
		"category": "accessories",
		"stock":    7,
	}, asAdmin())

	require.Equal(t, http.StatusCreated, w.Code)
	var out productResponse
	decodeJSON(t, w, &out)
	assert.NotEmpty(t, out.ID)
	assert.True(t, out.InStock)

	stored, ok := e.products.byID[out.ID]
	require.True(t, ok)
	assert.Equal(t, "Canvas Tote", stored.Name)
}

func TestAdminCreateProduct_Invalid(t *testing.T) {
	e := newTestEnv(t)

	for name, body := range map[string]map[string]any{
		"missing name":   {"price": "10.00", "stock": 1},
		"negative price": {"name": "X", "price": "-1", "stock": 1},
		"negative stock": {"name": "X", "price": "1", "stock": -1},
	} {
		w := e.do(t, http.MethodPost, "/admin/products", body, asAdmin())
		assert.Equal(t, http.StatusBadRequest, w.Code, name)
	}
}

func TestAdminUpdateProduct_RecomputesInStock(t *testing.T) {
	e := newTestEnv(t)

	w := e.do(t, http.MethodPut, "/admin/products/p1", map[string]any{
		"name":     "Classic Tee",
		"price":    "10.00",
		"category": "apparel",
		"stock":    0,
	}, asAdmin())

	require.Equal(t, http.StatusOK, w.Code)
	var out productResponse
	decodeJSON(t, w, &out)
	assert.False(t, out.InStock)
	assert.False(t, e.products.byID["p1"].InStock)
}

func TestAdminDeleteProduct(t *testing.T) {
	e := newTestEnv(t)

	w := e.do(t, http.MethodDelete, "/admin/products/p1", nil, asAdmin())

	require.Equal(t, http.StatusNoContent, w.Code)
	_, ok := e.products.byID["p1"]
	assert.False(t, ok)
}

func TestAdminCreateCoupon(t *testing.T) {
	e := newTestEnv(t)

	w := e.do(t, http.MethodPost, "/admin/coupons", map[string]any{
		"code":   "spring20",
		"type":   "percentage",
		"value":  "20",
		"active": true,
	}, asAdmin())

	require.Equal(t, http.StatusCreated, w.Code)
	stored, ok := e.coupons.byCode["SPRING20"]
	require.True(t, ok, "code is normalized before storage")
	assert.Equal(t, coupon.DiscountPercentage, stored.Type)
}

func TestAdminCreateCoupon_InvalidRule(t *testing.T) {
	e := newTestEnv(t)

	w := e.do(t, http.MethodPost, "/admin/coupons", map[string]any{
		"code":   "TOOMUCH",
		"type":   "percentage",
		"value":  "150",
		"active": true,
	}, asAdmin())

	requireErrorBody(t, w, http.StatusBadRequest)
	_, ok := e.coupons.byCode["TOOMUCH"]
	assert.False(t, ok)
}

func TestAdminCreateCoupon_UnknownProductRef(t *testing.T) {
	e := newTestEnv(t)

	w := e.do(t, http.MethodPost, "/admin/coupons", map[string]any{
		"code":               "BUNDLE",
		"type":               "fixed",
		"value":              "5",
		"active":             true,
		"applicableProducts": []string{"p1", "ghost"},
	}, asAdmin())

	body := requireErrorBody(t, w, http.StatusBadRequest)
	assert.Contains(t, body.Message, "ghost")
}

func TestAdminCreateCoupon_UnknownCategoryRef(t *testing.T) {
	e := newTestEnv(t)

	w := e.do(t, http.MethodPost, "/admin/coupons", map[string]any{
		"code":               "HOMEONLY",
		"type":               "fixed",
		"value":              "5",
		"active":             true,
		"excludedCategories": []string{"furniture"},
	}, asAdmin())

	body := requireErrorBody(t, w, http.StatusBadRequest)
	assert.Contains(t, body.Message, "furniture")
}

func TestAdminUpdateCoupon_CodeFromPath(t *testing.T) {
	e := newTestEnv(t)

	w := e.do(t, http.MethodPut, "/admin/coupons/SAVE10", map[string]any{
		"type":   "percentage",
		"value":  "15",
		"active": false,
	}, asAdmin())

	require.Equal(t, http.StatusOK, w.Code)
	stored := e.coupons.byCode["SAVE10"]
	assert.True(t, stored.Value.Equal(dec(t, "15")))
	assert.False(t, stored.Active)
}

func TestAdminDeleteCoupon(t *testing.T) {
	e := newTestEnv(t)

	w := e.do(t, http.MethodDelete, "/admin/coupons/save10", nil, asAdmin())

	require.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, e.coupons.byCode)
}

func TestAdminCreateBanner(t *testing.T) {
	e := newTestEnv(t)

	w := e.do(t, http.MethodPost, "/admin/banners", map[string]any{
		"title":    "Summer Sale",
		"surface":  "hero",
		"priority": 8,
		"active":   true,
		"startsAt": handlerNow.Format(time.RFC3339),
		"endsAt":   handlerNow.Add(72 * time.Hour).Format(time.RFC3339),
	}, asAdmin())

	require.Equal(t, http.StatusCreated, w.Code)
	require.Len(t, e.banners.active, 1)
	assert.Equal(t, "Summer Sale", e.banners.active[0].Title)
}

func TestAdminCreateBanner_Invalid(t *testing.T) {
	e := newTestEnv(t)

	for name, body := range map[string]map[string]any{
		"priority out of range": {
			"title": "X", "surface": "hero", "priority": 11,
			"startsAt": handlerNow.Format(time.RFC3339),
			"endsAt":   handlerNow.Add(time.Hour).Format(time.RFC3339),
		},
		"inverted window": {
			"title": "X", "surface": "hero", "priority": 5,
			"startsAt": handlerNow.Format(time.RFC3339),
			"endsAt":   handlerNow.Add(-time.Hour).Format(time.RFC3339),
		},
		"unknown surface": {
			"title": "X", "surface": "marquee", "priority": 5,
			"startsAt": handlerNow.Format(time.RFC3339),
			"endsAt":   handlerNow.Add(time.Hour).Format(time.RFC3339),
		},
	} {
		w := e.do(t, http.MethodPost, "/admin/banners", body, asAdmin())
		assert.Equal(t, http.StatusBadRequest, w.Code, name)
		assert.Empty(t, e.banners.active, name)
	}
}

func TestAdminUpdateOrderStatus(t *testing.T) {
	e := newTestEnv(t)
	e.orders.byID["o1"] = orderFixture("o1", "u1")

	w := e.do(t, http.MethodPut, "/admin/orders/o1/status", map[string]any{
		"status":      "shipped",
		"trackingUrl": "https://track.example.com/123",
	}, asAdmin())

	require.Equal(t, http.StatusNoContent, w.Code)
	stored := e.orders.byID["o1"]
	assert.Equal(t, order.StatusShipped, stored.Status)
	assert.Equal(t, "https://track.example.com/123", stored.TrackingURL)
}

func TestAdminUpdateOrderStatus_UnknownStatus(t *testing.T) {
	e := newTestEnv(t)
	e.orders.byID["o1"] = orderFixture("o1", "u1")

	w := e.do(t, http.MethodPut, "/admin/orders/o1/status", map[string]any{
		"status": "teleported",
	}, asAdmin())

	requireErrorBody(t, w, http.StatusBadRequest)
	assert.Equal(t, order.StatusPending, e.orders.byID["o1"].Status)
}

func TestAdminGetOrder(t *testing.T) {
	e := newTestEnv(t)
	e.orders.byID["o1"] = orderFixture("o1", "u1")

	w := e.do(t, http.MethodGet, "/admin/orders/o1", nil, asAdmin())

	require.Equal(t, http.StatusOK, w.Code)

	w = e.do(t, http.MethodGet, "/admin/orders/ghost", nil, asAdmin())
	requireErrorBody(t, w, http.StatusNotFound)
}

func TestAdminUpsertPage(t *testing.T) {
	e := newTestEnv(t)

	w := e.do(t, http.MethodPut, "/admin/pages/faq", map[string]any{
		"title":     "FAQ",
		"body":      "Q and A.",
		"published": true,
	}, asAdmin())

	require.Equal(t, http.StatusOK, w.Code)
	stored, ok := e.pages.bySlug["faq"]
	require.True(t, ok)
	assert.Equal(t, "FAQ", stored.Title)
	assert.True(t, stored.Published)
}

func TestAdminUpsertPage_BadSlug(t *testing.T) {
	e := newTestEnv(t)

	w := e.do(t, http.MethodPut, "/admin/pages/Not%20A%20Slug", map[string]any{
		"title": "X",
	}, asAdmin())

	requireErrorBody(t, w, http.StatusBadRequest)
}

func TestAdminDeletePage(t *testing.T) {
	e := newTestEnv(t)

	w := e.do(t, http.MethodDelete, "/admin/pages/about", nil, asAdmin())

	require.Equal(t, http.StatusNoContent, w.Code)
	_, ok := e.pages.bySlug["about"]
	assert.False(t, ok)
}
