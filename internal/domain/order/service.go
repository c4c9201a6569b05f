package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/velvetlane/storefront/internal/domain/coupon"
	"github.com/velvetlane/storefront/internal/domain/product"
)

// CouponEvaluator is the slice of the coupon service checkout depends on.
type CouponEvaluator interface {
	Evaluate(ctx context.Context, code string, orderAmount decimal.Decimal, items []coupon.Item, userID string) (coupon.Result, error)
}

// CheckoutItem is one requested line of a direct checkout.
type CheckoutItem struct {
	ProductID string
	Quantity  int
}

// CheckoutRequest is the input for the direct checkout path.
type CheckoutRequest struct {
	UserID       string
	Items        []CheckoutItem
	CouponCode   string
	Address      Address
	Email        string
	Phone        string
	Instructions string
}

// Service turns checkout requests and payment events into persisted orders.
type Service struct {
	products  product.Repository
	coupons   CouponEvaluator
	finalizer Finalizer
	now       func() time.Time
}

// NewService creates an order Service with the required domain dependencies.
func NewService(products product.Repository, coupons CouponEvaluator, finalizer Finalizer) *Service {
	return &Service{
		products:  products,
		coupons:   coupons,
		finalizer: finalizer,
		now:       time.Now,
	}
}

// Checkout validates the requested items against the catalog, applies an
// optional coupon, and finalizes a pending order: the insert, stock
// decrement, coupon usage increment, and cart clearing run in one
// transaction. Insufficient stock rejects the whole request before anything
// is persisted.
func (s *Service) Checkout(ctx context.Context, req CheckoutRequest) (*Order, error) {
	if len(req.Items) == 0 {
		return nil, ErrEmptyItems
	}

	ids := make([]string, len(req.Items))
	for i, item := range req.Items {
		if item.Quantity <= 0 {
			return nil, &InvalidQuantityError{ProductID: item.ProductID}
		}
		ids[i] = item.ProductID
	}

	fetched, err := s.products.GetByIDs(ctx, ids)
	if err != nil {
		return nil, errors.Wrap(err, "get products")
	}
	byID := make(map[string]product.Product, len(fetched))
	for _, p := range fetched {
		byID[p.ID] = p
	}

	items := make([]Item, 0, len(req.Items))
	couponItems := make([]coupon.Item, 0, len(req.Items))
	subtotal := decimal.Zero
	for _, reqItem := range req.Items {
		p, ok := byID[reqItem.ProductID]
		if !ok {
			return nil, &ProductNotFoundError{ProductID: reqItem.ProductID}
		}
		if p.Stock < reqItem.Quantity {
			return nil, &InsufficientStockError{
				ProductID: p.ID,
				Requested: reqItem.Quantity,
				Available: p.Stock,
			}
		}

		item := Item{
			ProductID: p.ID,
			Name:      p.Name,
			Price:     p.Price,
			Quantity:  reqItem.Quantity,
		}
		if len(p.Images) > 0 {
			item.Image = p.Images[0]
		}
		items = append(items, item)
		couponItems = append(couponItems, coupon.Item{
			ProductID: p.ID,
			Category:  p.Category,
			Quantity:  reqItem.Quantity,
		})
		subtotal = subtotal.Add(p.Price.Mul(decimal.NewFromInt(int64(reqItem.Quantity))))
	}

	discount := decimal.Zero
	couponCode := ""
	if req.CouponCode != "" {
		result, err := s.coupons.Evaluate(ctx, req.CouponCode, subtotal, couponItems, req.UserID)
		if err != nil {
			return nil, errors.Wrap(err, "evaluate coupon")
		}
		if !result.Valid {
			return nil, &CouponRejectedError{Reason: string(result.Reason)}
		}
		discount = result.Discount
		couponCode = coupon.NormalizeCode(req.CouponCode)
	}

	total := subtotal.Sub(discount)
	if total.IsNegative() {
		total = decimal.Zero
	}

	o := &Order{
		ID:            uuid.New().String(),
		UserID:        req.UserID,
		Items:         items,
		Subtotal:      subtotal.Round(2),
		Discount:      discount.Round(2),
		CouponCode:    couponCode,
		Total:         total.Round(2),
		Status:        StatusPending,
		Address:       req.Address,
		CustomerEmail: req.Email,
		CustomerPhone: req.Phone,
		Instructions:  req.Instructions,
		CreatedAt:     s.now(),
	}

	opts := FinalizeOptions{
		CouponCode:      couponCode,
		ClearCartUserID: req.UserID,
	}
	if err := s.finalizer.Finalize(ctx, o, opts); err != nil {
		return nil, errors.Wrap(err, "finalize order")
	}
	return o, nil
}
