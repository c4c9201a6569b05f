package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/velvetlane/storefront/internal/domain/auth"
	"github.com/velvetlane/storefront/internal/domain/banner"
	"github.com/velvetlane/storefront/internal/domain/cart"
	"github.com/velvetlane/storefront/internal/domain/content"
	"github.com/velvetlane/storefront/internal/domain/coupon"
	"github.com/velvetlane/storefront/internal/domain/order"
	"github.com/velvetlane/storefront/internal/domain/product"
	"github.com/velvetlane/storefront/internal/payment"
)

// handlerNow pins the handler clock for banner selection.
var handlerNow = time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)

const (
	testWebhookSecret = "whsec_test"
	testPepper        = "pepper_test"
	testAdminKey      = "sk_admin_test"
	testViewerKey     = "sk_viewer_test"
)

// --- Mocks ---

type stubProducts struct {
	byID map[string]product.Product
	err  error
}

func (s *stubProducts) List(context.Context) ([]product.Product, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := make([]product.Product, 0, len(s.byID))
	for _, p := range s.byID {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *stubProducts) GetByID(_ context.Context, id string) (*product.Product, error) {
	if s.err != nil {
		return nil, s.err
	}
	p, ok := s.byID[id]
	if !ok {
		return nil, product.ErrNotFound
	}
	return &p, nil
}

func (s *stubProducts) GetByIDs(_ context.Context, ids []string) ([]product.Product, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := make([]product.Product, 0, len(ids))
	for _, id := range ids {
		if p, ok := s.byID[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *stubProducts) Create(_ context.Context, p *product.Product) error {
	if s.err != nil {
		return s.err
	}
	p.Normalize()
	s.byID[p.ID] = *p
	return nil
}

func (s *stubProducts) Update(_ context.Context, p *product.Product) error {
	if s.err != nil {
		return s.err
	}
	if _, ok := s.byID[p.ID]; !ok {
		return product.ErrNotFound
	}
	p.Normalize()
	s.byID[p.ID] = *p
	return nil
}

func (s *stubProducts) Delete(_ context.Context, id string) error {
	if _, ok := s.byID[id]; !ok {
		return product.ErrNotFound
	}
	delete(s.byID, id)
	return nil
}

func (s *stubProducts) MissingIDs(_ context.Context, ids []string) ([]string, error) {
	var missing []string
	for _, id := range ids {
		if _, ok := s.byID[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing, nil
}

func (s *stubProducts) MissingCategories(_ context.Context, categories []string) ([]string, error) {
	known := make(map[string]bool, len(s.byID))
	for _, p := range s.byID {
		known[p.Category] = true
	}
	var missing []string
	for _, c := range categories {
		if !known[c] {
			missing = append(missing, c)
		}
	}
	return missing, nil
}

type stubCarts struct {
	items map[string]cart.Item
	seq   int
	err   error
}

func (s *stubCarts) ListByUser(_ context.Context, userID string) ([]cart.Item, error) {
	if s.err != nil {
		return nil, s.err
	}
	var out []cart.Item
	for _, it := range s.items {
		if it.UserID == userID {
			out = append(out, it)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *stubCarts) Upsert(_ context.Context, item *cart.Item) error {
	if s.err != nil {
		return s.err
	}
	if item.ID == "" {
		s.seq++
		item.ID = "ci_" + strconv.Itoa(s.seq)
	}
	s.items[item.ID] = *item
	return nil
}

func (s *stubCarts) UpdateQuantity(_ context.Context, userID, itemID string, quantity int) error {
	it, ok := s.items[itemID]
	if !ok || it.UserID != userID {
		return cart.ErrNotFound
	}
	it.Quantity = quantity
	s.items[itemID] = it
	return nil
}

func (s *stubCarts) Delete(_ context.Context, userID, itemID string) error {
	it, ok := s.items[itemID]
	if !ok || it.UserID != userID {
		return cart.ErrNotFound
	}
	delete(s.items, itemID)
	return nil
}

func (s *stubCarts) DeleteByUser(_ context.Context, userID string) error {
	for id, it := range s.items {
		if it.UserID == userID {
			delete(s.items, id)
		}
	}
	return nil
}

type stubCouponRepo struct {
	byCode map[string]coupon.Coupon
	uses   map[string]int // "code/userID"
	err    error
}

func (s *stubCouponRepo) FindByCode(_ context.Context, code string) (*coupon.Coupon, error) {
	if s.err != nil {
		return nil, s.err
	}
	c, ok := s.byCode[code]
	if !ok {
		return nil, coupon.ErrNotFound
	}
	return &c, nil
}

func (s *stubCouponRepo) List(context.Context) ([]coupon.Coupon, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := make([]coupon.Coupon, 0, len(s.byCode))
	for _, c := range s.byCode {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (s *stubCouponRepo) Create(_ context.Context, c *coupon.Coupon) error {
	if s.err != nil {
		return s.err
	}
	s.byCode[c.Code] = *c
	return nil
}

func (s *stubCouponRepo) Update(_ context.Context, c *coupon.Coupon) error {
	if _, ok := s.byCode[c.Code]; !ok {
		return coupon.ErrNotFound
	}
	s.byCode[c.Code] = *c
	return nil
}

func (s *stubCouponRepo) Delete(_ context.Context, code string) error {
	if _, ok := s.byCode[code]; !ok {
		return coupon.ErrNotFound
	}
	delete(s.byCode, code)
	return nil
}

func (s *stubCouponRepo) UserUses(_ context.Context, code, userID string) (int, error) {
	return s.uses[code+"/"+userID], nil
}

type stubBanners struct {
	active []banner.Banner
	events []string // "id/kind"
	err    error
}

func (s *stubBanners) ListActive(_ context.Context, _ time.Time) ([]banner.Banner, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.active, nil
}

func (s *stubBanners) List(ctx context.Context) ([]banner.Banner, error) {
	return s.ListActive(ctx, time.Time{})
}

func (s *stubBanners) GetByID(_ context.Context, id string) (*banner.Banner, error) {
	for i := range s.active {
		if s.active[i].ID == id {
			return &s.active[i], nil
		}
	}
	return nil, banner.ErrNotFound
}

func (s *stubBanners) Create(_ context.Context, b *banner.Banner) error {
	if s.err != nil {
		return s.err
	}
	s.active = append(s.active, *b)
	return nil
}

func (s *stubBanners) Update(_ context.Context, b *banner.Banner) error {
	for i := range s.active {
		if s.active[i].ID == b.ID {
			s.active[i] = *b
			return nil
		}
	}
	return banner.ErrNotFound
}

func (s *stubBanners) Delete(_ context.Context, id string) error {
	for i := range s.active {
		if s.active[i].ID == id {
			s.active = append(s.active[:i], s.active[i+1:]...)
			return nil
		}
	}
	return banner.ErrNotFound
}

func (s *stubBanners) IncrementCounter(ctx context.Context, id string, kind banner.EventKind) error {
	if _, err := s.GetByID(ctx, id); err != nil {
		return err
	}
	s.events = append(s.events, id+"/"+string(kind))
	return nil
}

type stubOrders struct {
	byID  map[string]order.Order
	prior map[string]int
	err   error
}

func (s *stubOrders) GetByID(_ context.Context, id string) (*order.Order, error) {
	if s.err != nil {
		return nil, s.err
	}
	o, ok := s.byID[id]
	if !ok {
		return nil, order.ErrNotFound
	}
	return &o, nil
}

func (s *stubOrders) List(context.Context) ([]order.Order, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := make([]order.Order, 0, len(s.byID))
	for _, o := range s.byID {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *stubOrders) ListByUser(_ context.Context, userID string) ([]order.Order, error) {
	all, err := s.List(context.Background())
	if err != nil {
		return nil, err
	}
	var out []order.Order
	for _, o := range all {
		if o.UserID == userID {
			out = append(out, o)
		}
	}
	return out, nil
}

func (s *stubOrders) UpdateStatus(_ context.Context, id string, status order.Status, trackingURL string) error {
	o, ok := s.byID[id]
	if !ok {
		return order.ErrNotFound
	}
	o.Status = status
	o.TrackingURL = trackingURL
	s.byID[id] = o
	return nil
}

func (s *stubOrders) PriorOrders(_ context.Context, userID string) (int, error) {
	return s.prior[userID], nil
}

type stubFinalizer struct {
	lastOrder *order.Order
	lastOpts  order.FinalizeOptions
	calls     int
	err       error
}

func (s *stubFinalizer) Finalize(_ context.Context, o *order.Order, opts order.FinalizeOptions) error {
	s.calls++
	s.lastOrder = o
	s.lastOpts = opts
	return s.err
}

type stubPages struct {
	bySlug map[string]content.Page
	err    error
}

func (s *stubPages) GetPublished(_ context.Context, slug string) (*content.Page, error) {
	if s.err != nil {
		return nil, s.err
	}
	p, ok := s.bySlug[slug]
	if !ok || !p.Published {
		return nil, content.ErrNotFound
	}
	return &p, nil
}

func (s *stubPages) GetBySlug(_ context.Context, slug string) (*content.Page, error) {
	p, ok := s.bySlug[slug]
	if !ok {
		return nil, content.ErrNotFound
	}
	return &p, nil
}

func (s *stubPages) List(context.Context) ([]content.Page, error) {
	out := make([]content.Page, 0, len(s.bySlug))
	for _, p := range s.bySlug {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Slug < out[j].Slug })
	return out, nil
}

func (s *stubPages) Upsert(_ context.Context, p *content.Page) error {
	if s.err != nil {
		return s.err
	}
	s.bySlug[p.Slug] = *p
	return nil
}

func (s *stubPages) Delete(_ context.Context, slug string) error {
	if _, ok := s.bySlug[slug]; !ok {
		return content.ErrNotFound
	}
	delete(s.bySlug, slug)
	return nil
}

type stubAPIKeys struct {
	byHash map[string]auth.APIKeyInfo
}

func (s *stubAPIKeys) FindByHash(_ context.Context, hash string) (*auth.APIKeyInfo, error) {
	info, ok := s.byHash[hash]
	if !ok {
		return nil, errors.New("api key not found")
	}
	return &info, nil
}

// --- Helpers ---

type env struct {
	products  *stubProducts
	carts     *stubCarts
	coupons   *stubCouponRepo
	banners   *stubBanners
	orders    *stubOrders
	finalizer *stubFinalizer
	pages     *stubPages
	keys      *stubAPIKeys
	verifier  *payment.Verifier
	handler   *Handler
	router    chi.Router
}

func dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return d
}

func orderFixture(id, userID string) order.Order {
	subtotal := decimal.RequireFromString("20.00")
	return order.Order{
		ID:     id,
		UserID: userID,
		Items: []order.Item{
			{ProductID: "p1", Name: "Classic Tee", Price: decimal.RequireFromString("10.00"), Quantity: 2},
		},
		Subtotal:  subtotal,
		Discount:  decimal.Zero,
		Total:     subtotal,
		Status:    order.StatusPending,
		CreatedAt: handlerNow,
	}
}

func newTestEnv(t *testing.T) *env {
	t.Helper()

	products := &stubProducts{byID: map[string]product.Product{
		"p1": {
			ID: "p1", Name: "Classic Tee", Price: dec(t, "10.00"),
			Category: "apparel", Images: []string{"tee.jpg"}, Stock: 10, InStock: true,
		},
		"p2": {
			ID: "p2", Name: "Enamel Mug", Price: dec(t, "14.50"),
			Category: "home", Images: []string{"mug.jpg"}, Stock: 2, InStock: true,
		},
	}}
	carts := &stubCarts{items: map[string]cart.Item{}}
	coupons := &stubCouponRepo{
		byCode: map[string]coupon.Coupon{
			"SAVE10": {
				Code: "SAVE10", Type: coupon.DiscountPercentage,
				Value: dec(t, "10"), MinAmount: dec(t, "50"), Active: true,
			},
		},
		uses: map[string]int{},
	}
	banners := &stubBanners{}
	orders := &stubOrders{byID: map[string]order.Order{}, prior: map[string]int{}}
	fin := &stubFinalizer{}
	pages := &stubPages{bySlug: map[string]content.Page{
		"about":   {Slug: "about", Title: "About Us", Body: "Hello.", Published: true},
		"privacy": {Slug: "privacy", Title: "Privacy", Body: "Draft.", Published: false},
	}}

	couponSvc := coupon.NewService(coupons, orders)
	orderSvc := order.NewService(products, couponSvc, fin)
	verifier := payment.NewVerifier([]byte(testWebhookSecret), 5*time.Minute)

	h := New(Config{}, products, carts, couponSvc, coupons, banners, orders, orderSvc, pages, verifier)
	h.now = func() time.Time { return handlerNow }

	keys := &stubAPIKeys{byHash: map[string]auth.APIKeyInfo{}}
	sec := NewSecurity(keys, []byte(testPepper))
	keys.byHash[sec.HashKey(testAdminKey)] = auth.APIKeyInfo{
		ID: "k_admin", KeyHash: sec.HashKey(testAdminKey), Name: "admin", Role: auth.RoleAdmin,
	}
	keys.byHash[sec.HashKey(testViewerKey)] = auth.APIKeyInfo{
		ID: "k_viewer", KeyHash: sec.HashKey(testViewerKey), Name: "viewer", Role: "viewer",
	}

	return &env{
		products:  products,
		carts:     carts,
		coupons:   coupons,
		banners:   banners,
		orders:    orders,
		finalizer: fin,
		pages:     pages,
		keys:      keys,
		verifier:  verifier,
		handler:   h,
		router:    h.Routes(sec),
	}
}

// do performs a request against the full router. A string body is sent as-is;
// anything else is JSON-encoded.
func (e *env) do(t *testing.T, method, path string, body any, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var rd io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		rd = strings.NewReader(b)
	case []byte:
		rd = bytes.NewReader(b)
	default:
		buf, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(buf)
	}

	req := httptest.NewRequest(method, path, rd)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func asUser(userID string) map[string]string {
	return map[string]string{userIDHeader: userID}
}

func asAdmin() map[string]string {
	return map[string]string{apiKeyHeader: testAdminKey}
}

func decodeJSON(t *testing.T, w *httptest.ResponseRecorder, dst any) {
	t.Helper()
	require.Equal(t, "application/json", w.Header().Get("Content-Type"))
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), dst))
}

func requireErrorBody(t *testing.T, w *httptest.ResponseRecorder, status int) errorResponse {
	t.Helper()
	require.Equal(t, status, w.Code)
	var body errorResponse
	decodeJSON(t, w, &body)
	require.Equal(t, status, body.Code)
	return body
}
