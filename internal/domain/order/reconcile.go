package order

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentCompletion is a verified payment-provider checkout event, already
// parsed and converted to canonical currency units. The webhook handler
// builds it from the raw provider payload.
type PaymentCompletion struct {
	EventID   string
	SessionID string
	// AmountTotal is the captured amount.
	AmountTotal   decimal.Decimal
	CustomerName  string
	CustomerEmail string
	CustomerPhone string
	Address       Address
	Items         []Item
	UserID        string
}

// Reconcile turns a payment-completion event into a persisted order with
// status processing and decrements stock for its items. Delivery is
// at-least-once: the event ID is recorded in an idempotency ledger inside
// the same transaction, and a redelivered event returns ErrAlreadyProcessed
// without touching anything.
//
// The provider's address data is best-effort. A missing address line becomes
// a marked placeholder; an otherwise-valid order is never dropped over it.
func (s *Service) Reconcile(ctx context.Context, ev PaymentCompletion) (*Order, error) {
	if ev.EventID == "" {
		return nil, errors.New("event id required")
	}
	if ev.SessionID == "" {
		return nil, errors.New("session id required")
	}
	if len(ev.Items) == 0 {
		return nil, ErrEmptyItems
	}

	subtotal := decimal.Zero
	for _, item := range ev.Items {
		if item.Quantity <= 0 {
			return nil, &InvalidQuantityError{ProductID: item.ProductID}
		}
		if item.Price.IsNegative() {
			return nil, errors.Errorf("negative price for product %s", item.ProductID)
		}
		subtotal = subtotal.Add(item.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}

	addr := ev.Address
	addr.Name = firstNonEmpty(addr.Name, ev.CustomerName)
	if addr.Line == "" {
		addr.Line = PlaceholderAddressLine
	}

	total := ev.AmountTotal
	if !total.IsPositive() {
		total = subtotal
	}

	o := &Order{
		ID:                uuid.New().String(),
		UserID:            ev.UserID,
		Items:             ev.Items,
		Subtotal:          subtotal.Round(2),
		Discount:          decimal.Zero,
		Total:             total.Round(2),
		Status:            StatusProcessing,
		Address:           addr,
		ProviderSessionID: ev.SessionID,
		CustomerEmail:     ev.CustomerEmail,
		CustomerPhone:     ev.CustomerPhone,
		CreatedAt:         s.now(),
	}

	opts := FinalizeOptions{EventID: ev.EventID}
	if ev.UserID != "" {
		opts.ClearCartUserID = ev.UserID
	}
	if err := s.finalizer.Finalize(ctx, o, opts); err != nil {
		if errors.Is(err, ErrAlreadyProcessed) {
			return nil, ErrAlreadyProcessed
		}
		return nil, errors.Wrap(err, "finalize order")
	}
	return o, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
