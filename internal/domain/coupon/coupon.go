package coupon

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// DiscountType enumerates the supported coupon discount strategies.
type DiscountType string

const (
	// DiscountPercentage applies a percentage-based discount to the order amount.
	DiscountPercentage DiscountType = "percentage"
	// DiscountFixed applies a fixed monetary discount capped at the order amount.
	DiscountFixed DiscountType = "fixed"
	// DiscountFreeShipping waives shipping. The discount against the order
	// amount is zero; shipping is handled by a separate mechanism.
	DiscountFreeShipping DiscountType = "free_shipping"
	// DiscountBuyXGetY grants bundled items. Like free_shipping it contributes
	// zero against the order amount here.
	DiscountBuyXGetY DiscountType = "buy_x_get_y"
)

// ErrNotFound is returned when no coupon exists for a code.
var ErrNotFound = errors.New("coupon not found")

var codePattern = regexp.MustCompile(`^[A-Z0-9]{4,16}$`)

// Coupon defines a discount rule and its eligibility constraints.
// Zero values mean "unset" for the optional numeric constraints.
type Coupon struct {
	Code        string
	Type        DiscountType
	Value       decimal.Decimal
	MinAmount   decimal.Decimal
	MaxDiscount decimal.Decimal
	UsageLimit  int
	UsageCount  int
	UserLimit   int
	ValidFrom   *time.Time
	ValidUntil  *time.Time
	Active      bool

	ApplicableProducts   []string
	ExcludedProducts     []string
	ApplicableCategories []string
	ExcludedCategories   []string

	FirstTimeBuyerOnly bool
	MinQuantity        int
	MaxQuantity        int

	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NormalizeCode uppercases and trims a user-supplied coupon code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// CheckInvariants validates the rule's internal consistency. It is called on
// admin writes, not during evaluation.
func (c *Coupon) CheckInvariants() error {
	c.Code = NormalizeCode(c.Code)
	if !codePattern.MatchString(c.Code) {
		return errors.Errorf("code %q must match %s", c.Code, codePattern)
	}
	switch c.Type {
	case DiscountPercentage:
		if c.Value.IsNegative() || c.Value.GreaterThan(decimal.NewFromInt(100)) {
			return errors.New("percentage value must be between 0 and 100")
		}
	case DiscountFixed:
		if c.Value.IsNegative() {
			return errors.New("fixed value must not be negative")
		}
	case DiscountFreeShipping, DiscountBuyXGetY:
	default:
		return errors.Errorf("unsupported discount type %q", c.Type)
	}
	if c.ValidFrom != nil && c.ValidUntil != nil && !c.ValidUntil.After(*c.ValidFrom) {
		return errors.New("valid_until must be after valid_from")
	}
	if c.UsageLimit > 0 && c.UsageCount > c.UsageLimit {
		return errors.New("usage_count exceeds usage_limit")
	}
	if c.MinQuantity > 0 && c.MaxQuantity > 0 && c.MaxQuantity < c.MinQuantity {
		return errors.New("max_quantity must not be below min_quantity")
	}
	return nil
}

// Item is a line item of the order under evaluation.
type Item struct {
	ProductID string
	Category  string
	Quantity  int
}

// Buyer carries the per-buyer facts evaluation depends on. A nil Buyer means
// a guest checkout: user-scoped checks are skipped.
type Buyer struct {
	UserID string
	// PriorOrders is the buyer's completed order count, used by
	// first-time-buyer-only coupons.
	PriorOrders int
	// Uses is how many times this buyer has already redeemed this coupon,
	// read from the per-user usage ledger.
	Uses int
}

// Reason tells the storefront why a coupon did not apply.
type Reason string

const (
	ReasonNotFound       Reason = "NotFound"
	ReasonExpired        Reason = "Expired"
	ReasonUsageExhausted Reason = "UsageExhausted"
	ReasonBelowMinimum   Reason = "BelowMinimum"
	ReasonNotApplicable  Reason = "NotApplicable"
)

// Result is the outcome of evaluating a coupon against an order context.
// Invalid coupons are an expected first-class output, not an error.
type Result struct {
	Valid    bool
	Reason   Reason
	Discount decimal.Decimal
}

// Invalid builds a failed Result for the given reason.
func Invalid(reason Reason) Result {
	return Result{Reason: reason, Discount: decimal.Zero}
}

// Repository provides lookup and mutation of coupons.
type Repository interface {
	FindByCode(ctx context.Context, code string) (*Coupon, error)
	List(ctx context.Context) ([]Coupon, error)
	Create(ctx context.Context, c *Coupon) error
	Update(ctx context.Context, c *Coupon) error
	Delete(ctx context.Context, code string) error
	// UserUses reads the per-user usage ledger for (code, userID).
	UserUses(ctx context.Context, code, userID string) (int, error)
}

// BuyerHistory reports a buyer's completed order count. Implemented by the
// order repository; injected here to keep this package free of an order
// dependency.
type BuyerHistory interface {
	PriorOrders(ctx context.Context, userID string) (int, error)
}
