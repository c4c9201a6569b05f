package handler

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequireAdmin_MissingKey(t *testing.T) {
	e := newTestEnv(t)

	w := e.do(t, http.MethodGet, "/admin/coupons", nil, nil)

	body := requireErrorBody(t, w, http.StatusUnauthorized)
	assert.Equal(t, "api key required", body.Message)
}

func TestRequireAdmin_UnknownKey(t *testing.T) {
	e := newTestEnv(t)

	w := e.do(t, http.MethodGet, "/admin/coupons", nil, map[string]string{
		apiKeyHeader: "sk_never_issued",
	})

	requireErrorBody(t, w, http.StatusUnauthorized)
}

func TestRequireAdmin_NonAdminRole(t *testing.T) {
	e := newTestEnv(t)

	w := e.do(t, http.MethodGet, "/admin/coupons", nil, map[string]string{
		apiKeyHeader: testViewerKey,
	})

	body := requireErrorBody(t, w, http.StatusForbidden)
	assert.Equal(t, "admin role required", body.Message)
}

func TestRequireAdmin_AdminKeyPasses(t *testing.T) {
	e := newTestEnv(t)

	w := e.do(t, http.MethodGet, "/admin/coupons", nil, asAdmin())

	require.Equal(t, http.StatusOK, w.Code)
}

func TestRequireAdmin_GuardsEveryAdminRoute(t *testing.T) {
	e := newTestEnv(t)

	for _, tt := range []struct {
		method, path string
	}{
		{http.MethodPost, "/admin/products"},
		{http.MethodDelete, "/admin/products/p1"},
		{http.MethodPost, "/admin/coupons"},
		{http.MethodGet, "/admin/banners"},
		{http.MethodGet, "/admin/orders"},
		{http.MethodPut, "/admin/pages/about"},
	} {
		w := e.do(t, tt.method, tt.path, nil, nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code, "%s %s", tt.method, tt.path)
	}
}

func TestHashKey(t *testing.T) {
	e := newTestEnv(t)
	sec := NewSecurity(e.keys, []byte(testPepper))

	h1 := sec.HashKey("sk_example")
	h2 := sec.HashKey("sk_example")
	assert.Equal(t, h1, h2)
	assert.Len(t, h1, 64)

	other := NewSecurity(e.keys, []byte("different pepper"))
	assert.NotEqual(t, h1, other.HashKey("sk_example"))
}
