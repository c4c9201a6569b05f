package coupon

import (
	"slices"
	"time"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Evaluate applies a coupon rule to an order context and returns the computed
// discount, or the first failing check. It is pure: no lookups, no side
// effects, deterministic for a fixed now.
//
// Checks run in a fixed order so the storefront always reports the same
// reason for the same cart: active/window, usage limits, minimum amount,
// buyer conditions, product/category eligibility.
func Evaluate(c *Coupon, now time.Time, orderAmount decimal.Decimal, items []Item, buyer *Buyer) Result {
	if c == nil || !c.Active {
		return Invalid(ReasonNotFound)
	}

	if c.ValidFrom != nil && now.Before(*c.ValidFrom) {
		return Invalid(ReasonExpired)
	}
	if c.ValidUntil != nil && now.After(*c.ValidUntil) {
		return Invalid(ReasonExpired)
	}

	if c.UsageLimit > 0 && c.UsageCount >= c.UsageLimit {
		return Invalid(ReasonUsageExhausted)
	}
	if c.UserLimit > 0 && buyer != nil && buyer.Uses >= c.UserLimit {
		return Invalid(ReasonUsageExhausted)
	}

	if c.MinAmount.IsPositive() && orderAmount.LessThan(c.MinAmount) {
		return Invalid(ReasonBelowMinimum)
	}

	if c.FirstTimeBuyerOnly && (buyer == nil || buyer.PriorOrders > 0) {
		return Invalid(ReasonNotApplicable)
	}

	qty := totalQuantity(items)
	if c.MinQuantity > 0 && qty < c.MinQuantity {
		return Invalid(ReasonNotApplicable)
	}
	if c.MaxQuantity > 0 && qty > c.MaxQuantity {
		return Invalid(ReasonNotApplicable)
	}

	if !eligible(c, items) {
		return Invalid(ReasonNotApplicable)
	}

	return Result{Valid: true, Discount: computeDiscount(c, orderAmount)}
}

// eligible applies the product/category inclusion and exclusion lists.
// Exclusions are checked first and win over any inclusion.
func eligible(c *Coupon, items []Item) bool {
	for _, item := range items {
		if slices.Contains(c.ExcludedProducts, item.ProductID) {
			return false
		}
	}
	for _, item := range items {
		if slices.Contains(c.ExcludedCategories, item.Category) {
			return false
		}
	}
	if len(c.ApplicableProducts) > 0 {
		found := false
		for _, item := range items {
			if slices.Contains(c.ApplicableProducts, item.ProductID) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if len(c.ApplicableCategories) > 0 {
		found := false
		for _, item := range items {
			if slices.Contains(c.ApplicableCategories, item.Category) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func computeDiscount(c *Coupon, orderAmount decimal.Decimal) decimal.Decimal {
	var amount decimal.Decimal
	switch c.Type {
	case DiscountPercentage:
		amount = orderAmount.Mul(c.Value).Div(hundred)
		if c.MaxDiscount.IsPositive() && amount.GreaterThan(c.MaxDiscount) {
			amount = c.MaxDiscount
		}
	case DiscountFixed:
		amount = c.Value
	case DiscountFreeShipping, DiscountBuyXGetY:
		// Both grant value outside the order amount (shipping waiver,
		// bundled items) and contribute nothing here.
		amount = decimal.Zero
	default:
		amount = decimal.Zero
	}

	// A discount never exceeds the order total and never goes negative.
	amount = decimal.Min(amount, orderAmount)
	if amount.IsNegative() {
		amount = decimal.Zero
	}
	return amount.Round(2)
}

func totalQuantity(items []Item) int {
	total := 0
	for _, item := range items {
		total += item.Quantity
	}
	return total
}
