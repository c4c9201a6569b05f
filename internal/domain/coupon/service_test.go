package coupon

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Mock implementations ---

type mockRepo struct {
	byCode  map[string]*Coupon
	uses    map[string]int // "code/user" -> uses
	findErr error
	usesErr error
}

func (m *mockRepo) FindByCode(_ context.Context, code string) (*Coupon, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	c, ok := m.byCode[code]
	if !ok {
		return nil, ErrNotFound
	}
	return c, nil
}

func (m *mockRepo) List(_ context.Context) ([]Coupon, error)  { return nil, nil }
func (m *mockRepo) Create(_ context.Context, _ *Coupon) error { return nil }
func (m *mockRepo) Update(_ context.Context, _ *Coupon) error { return nil }
func (m *mockRepo) Delete(_ context.Context, _ string) error  { return nil }

func (m *mockRepo) UserUses(_ context.Context, code, userID string) (int, error) {
	if m.usesErr != nil {
		return 0, m.usesErr
	}
	return m.uses[code+"/"+userID], nil
}

type mockHistory struct {
	priorOrders map[string]int
	err         error
}

func (m *mockHistory) PriorOrders(_ context.Context, userID string) (int, error) {
	if m.err != nil {
		return 0, m.err
	}
	return m.priorOrders[userID], nil
}

// --- Helpers ---

func newTestService(repo *mockRepo, history *mockHistory) *Service {
	svc := NewService(repo, history)
	svc.now = func() time.Time { return evalNow }
	return svc
}

// --- Tests ---

func TestServiceEvaluate_HappyPath(t *testing.T) {
	c := percentCoupon("SAVE10", "10")
	c.MinAmount = dec("50")
	repo := &mockRepo{byCode: map[string]*Coupon{"SAVE10": c}}
	svc := newTestService(repo, &mockHistory{})

	res, err := svc.Evaluate(context.Background(), "save10", dec("100"), nil, "")

	require.NoError(t, err)
	assert.True(t, res.Valid)
	assert.True(t, res.Discount.Equal(dec("10.00")))
}

func TestServiceEvaluate_UnknownCodeIsResultNotError(t *testing.T) {
	svc := newTestService(&mockRepo{byCode: map[string]*Coupon{}}, &mockHistory{})

	res, err := svc.Evaluate(context.Background(), "NOPE", dec("100"), nil, "")

	require.NoError(t, err)
	assert.False(t, res.Valid)
	assert.Equal(t, ReasonNotFound, res.Reason)
}

func TestServiceEvaluate_StoreFailureIsError(t *testing.T) {
	svc := newTestService(&mockRepo{findErr: errors.New("connection reset")}, &mockHistory{})

	_, err := svc.Evaluate(context.Background(), "SAVE10", dec("100"), nil, "")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "lookup coupon")
}

func TestServiceEvaluate_LoadsUserUsesOnlyWhenLimited(t *testing.T) {
	c := percentCoupon("ONCEEACH", "10")
	c.UserLimit = 1
	repo := &mockRepo{
		byCode: map[string]*Coupon{"ONCEEACH": c},
		uses:   map[string]int{"ONCEEACH/u1": 1},
	}
	svc := newTestService(repo, &mockHistory{})

	res, err := svc.Evaluate(context.Background(), "ONCEEACH", dec("100"), nil, "u1")
	require.NoError(t, err)
	assert.Equal(t, ReasonUsageExhausted, res.Reason)

	// A different user still qualifies.
	res, err = svc.Evaluate(context.Background(), "ONCEEACH", dec("100"), nil, "u2")
	require.NoError(t, err)
	assert.True(t, res.Valid)

	// With no user limit on the coupon, a failing ledger is never consulted.
	open := percentCoupon("OPEN", "10")
	repo2 := &mockRepo{
		byCode:  map[string]*Coupon{"OPEN": open},
		usesErr: errors.New("ledger down"),
	}
	svc2 := newTestService(repo2, &mockHistory{})
	res, err = svc2.Evaluate(context.Background(), "OPEN", dec("100"), nil, "u1")
	require.NoError(t, err)
	assert.True(t, res.Valid)
}

func TestServiceEvaluate_FirstTimeBuyerHistory(t *testing.T) {
	c := percentCoupon("WELCOME15", "15")
	c.FirstTimeBuyerOnly = true
	repo := &mockRepo{byCode: map[string]*Coupon{"WELCOME15": c}}
	history := &mockHistory{priorOrders: map[string]int{"veteran": 4}}
	svc := newTestService(repo, history)

	res, err := svc.Evaluate(context.Background(), "WELCOME15", dec("100"), nil, "veteran")
	require.NoError(t, err)
	assert.Equal(t, ReasonNotApplicable, res.Reason)

	res, err = svc.Evaluate(context.Background(), "WELCOME15", dec("100"), nil, "newbie")
	require.NoError(t, err)
	assert.True(t, res.Valid)
}

func TestServiceEvaluate_GuestSkipsBuyerChecks(t *testing.T) {
	c := percentCoupon("ONCEEACH", "10")
	c.UserLimit = 1
	repo := &mockRepo{
		byCode:  map[string]*Coupon{"ONCEEACH": c},
		usesErr: errors.New("should not be called"),
	}
	svc := newTestService(repo, &mockHistory{err: errors.New("should not be called")})

	res, err := svc.Evaluate(context.Background(), "ONCEEACH", dec("100"), nil, "")

	require.NoError(t, err)
	assert.True(t, res.Valid)
}
