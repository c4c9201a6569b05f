package payment

import (
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/velvetlane/storefront/internal/domain/order"
)

// EventCheckoutCompleted is the only event type this service consumes.
const EventCheckoutCompleted = "checkout.session.completed"

// Event is a parsed payment-provider webhook event. Amounts arrive as
// integer minor currency units and are converted exactly once here.
type Event struct {
	ID            string
	Type          string
	SessionID     string
	AmountTotal   int64
	CustomerName  string
	CustomerEmail string
	CustomerPhone string
	AddressLine   string
	City          string
	State         string
	PostalCode    string
	Country       string
	UserID        string
	Items         []MetaItem
}

// MetaItem is one cart line carried in the provider session's metadata.
type MetaItem struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Quantity int             `json:"quantity"`
	Image    string          `json:"image"`
}

// ParseEvent decodes a provider event payload. The payload stays untrusted
// even after signature verification: the metadata blob is whatever checkout
// put there, so fields are read individually and unknown keys are skipped.
func ParseEvent(data []byte) (*Event, error) {
	var ev Event
	d := jx.DecodeBytes(data)
	err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "id":
			return readStr(d, &ev.ID)
		case "type":
			return readStr(d, &ev.Type)
		case "data":
			return d.Obj(func(d *jx.Decoder, key string) error {
				if key != "object" {
					return d.Skip()
				}
				return parseSession(d, &ev)
			})
		default:
			return d.Skip()
		}
	})
	if err != nil {
		return nil, errors.Wrap(err, "decode event")
	}
	if ev.ID == "" {
		return nil, errors.New("event id missing")
	}
	if ev.Type != EventCheckoutCompleted {
		return nil, errors.Errorf("unsupported event type %q", ev.Type)
	}
	if ev.SessionID == "" {
		return nil, errors.New("session id missing")
	}
	return &ev, nil
}

func parseSession(d *jx.Decoder, ev *Event) error {
	return d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "id":
			return readStr(d, &ev.SessionID)
		case "amount_total":
			n, err := d.Int64()
			if err != nil {
				return errors.Wrap(err, "amount_total")
			}
			ev.AmountTotal = n
			return nil
		case "customer_details":
			return parseCustomer(d, ev)
		case "metadata":
			return parseMetadata(d, ev)
		default:
			return d.Skip()
		}
	})
}

func parseCustomer(d *jx.Decoder, ev *Event) error {
	if d.Next() == jx.Null {
		return d.Null()
	}
	return d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "name":
			return readStr(d, &ev.CustomerName)
		case "email":
			return readStr(d, &ev.CustomerEmail)
		case "phone":
			return readStr(d, &ev.CustomerPhone)
		case "address":
			if d.Next() == jx.Null {
				return d.Null()
			}
			return d.Obj(func(d *jx.Decoder, key string) error {
				switch key {
				case "line1":
					return readStr(d, &ev.AddressLine)
				case "city":
					return readStr(d, &ev.City)
				case "state":
					return readStr(d, &ev.State)
				case "postal_code":
					return readStr(d, &ev.PostalCode)
				case "country":
					return readStr(d, &ev.Country)
				default:
					return d.Skip()
				}
			})
		default:
			return d.Skip()
		}
	})
}

// parseMetadata reads the session metadata. Provider metadata values are
// strings; the cart item list is itself JSON serialized into the "items"
// value at checkout-session creation time.
func parseMetadata(d *jx.Decoder, ev *Event) error {
	if d.Next() == jx.Null {
		return d.Null()
	}
	return d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "user_id":
			return readStr(d, &ev.UserID)
		case "items":
			var raw string
			if err := readStr(d, &raw); err != nil {
				return err
			}
			if raw == "" {
				return nil
			}
			items, err := parseMetaItems([]byte(raw))
			if err != nil {
				return errors.Wrap(err, "metadata items")
			}
			ev.Items = items
			return nil
		default:
			return d.Skip()
		}
	})
}

func parseMetaItems(data []byte) ([]MetaItem, error) {
	var items []MetaItem
	d := jx.DecodeBytes(data)
	err := d.Arr(func(d *jx.Decoder) error {
		var it MetaItem
		err := d.Obj(func(d *jx.Decoder, key string) error {
			switch key {
			case "id":
				return readStr(d, &it.ID)
			case "name":
				return readStr(d, &it.Name)
			case "price":
				n, err := d.Num()
				if err != nil {
					return errors.Wrap(err, "price")
				}
				p, err := decimal.NewFromString(n.String())
				if err != nil {
					return errors.Wrap(err, "price")
				}
				it.Price = p
				return nil
			case "quantity":
				n, err := d.Int()
				if err != nil {
					return errors.Wrap(err, "quantity")
				}
				it.Quantity = n
				return nil
			case "image":
				return readStr(d, &it.Image)
			default:
				return d.Skip()
			}
		})
		if err != nil {
			return err
		}
		items = append(items, it)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return items, nil
}

func readStr(d *jx.Decoder, dst *string) error {
	if d.Next() == jx.Null {
		return d.Null()
	}
	s, err := d.Str()
	if err != nil {
		return err
	}
	*dst = s
	return nil
}

// Completion converts a parsed event into the order domain's reconciliation
// input, translating amount_total from minor units to canonical decimal
// currency units.
func (ev *Event) Completion() order.PaymentCompletion {
	items := make([]order.Item, 0, len(ev.Items))
	for _, it := range ev.Items {
		items = append(items, order.Item{
			ProductID: it.ID,
			Name:      it.Name,
			Price:     it.Price,
			Quantity:  it.Quantity,
			Image:     it.Image,
		})
	}
	return order.PaymentCompletion{
		EventID:       ev.ID,
		SessionID:     ev.SessionID,
		AmountTotal:   decimal.New(ev.AmountTotal, -2),
		CustomerName:  ev.CustomerName,
		CustomerEmail: ev.CustomerEmail,
		CustomerPhone: ev.CustomerPhone,
		Address: order.Address{
			Name:       ev.CustomerName,
			Line:       ev.AddressLine,
			City:       ev.City,
			State:      ev.State,
			PostalCode: ev.PostalCode,
			Country:    ev.Country,
		},
		Items:  items,
		UserID: ev.UserID,
	}
}
