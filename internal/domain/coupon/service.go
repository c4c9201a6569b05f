package coupon

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Service resolves a coupon code and the buyer's usage facts, then runs the
// pure Evaluate function. Validation performs no side effects: usage counters
// are incremented only when an order is finalized, so re-checking a code on
// every cart change never burns a use.
type Service struct {
	repo    Repository
	history BuyerHistory
	now     func() time.Time
}

// NewService creates a coupon Service.
func NewService(repo Repository, history BuyerHistory) *Service {
	return &Service{repo: repo, history: history, now: time.Now}
}

// Evaluate looks up the code and evaluates it against the order context.
// An unknown code is reported as a Result with ReasonNotFound; only store
// failures surface as errors.
func (s *Service) Evaluate(ctx context.Context, code string, orderAmount decimal.Decimal, items []Item, userID string) (Result, error) {
	c, err := s.repo.FindByCode(ctx, NormalizeCode(code))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Invalid(ReasonNotFound), nil
		}
		return Result{}, errors.Wrap(err, "lookup coupon")
	}

	var buyer *Buyer
	if userID != "" {
		buyer = &Buyer{UserID: userID}
		if c.UserLimit > 0 {
			uses, err := s.repo.UserUses(ctx, c.Code, userID)
			if err != nil {
				return Result{}, errors.Wrap(err, "read coupon usage ledger")
			}
			buyer.Uses = uses
		}
		if c.FirstTimeBuyerOnly {
			prior, err := s.history.PriorOrders(ctx, userID)
			if err != nil {
				return Result{}, errors.Wrap(err, "count prior orders")
			}
			buyer.PriorOrders = prior
		}
	}

	return Evaluate(c, s.now(), orderAmount, items, buyer), nil
}
