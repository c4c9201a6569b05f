// Package banner implements the promotional banner targeting engine: which
// banners a given visitor should see on a given page, and in what order.
package banner

import (
	"context"
	"time"

	"github.com/go-faster/errors"
)

// ErrNotFound is returned when a banner does not exist.
var ErrNotFound = errors.New("banner not found")

// Surface identifies where on the page a banner renders.
type Surface string

const (
	SurfaceHero         Surface = "hero"
	SurfaceTopBar       Surface = "top_bar"
	SurfaceSidebar      Surface = "sidebar"
	SurfacePopup        Surface = "popup"
	SurfaceBanner       Surface = "banner"
	SurfaceNotification Surface = "notification"
)

// Audience restricts who a banner targets. An empty list means no
// restriction for that dimension.
type Audience struct {
	UserTypes []string // "logged_in", "guest"
	Segments  []string
	Locations []string
	Devices   []string
	Browsers  []string
}

// DisplayRules control where and how often a banner may appear.
type DisplayRules struct {
	ShowOnPages []string // path prefixes; "*" matches everything
	HideOnPages []string // same matching; wins over ShowOnPages
	// DelaySeconds is how long the client waits before showing the banner.
	// Passed through to the payload; not evaluated server-side.
	DelaySeconds int
	// MaxDisplays caps the total number of times one visitor sees the banner.
	MaxDisplays int
	// MinHoursBetween is the minimum gap between two displays to the same
	// visitor.
	MinHoursBetween int
}

// Content is the render payload delivered to the storefront.
type Content struct {
	Text        string
	ButtonLabel string
	ButtonURL   string
	ImageURL    string
	Background  string
	Foreground  string
}

// Banner is a promotional banner with targeting, display rules, and counters.
type Banner struct {
	ID          string
	Title       string
	Subtitle    string
	Description string
	Surface     Surface
	Position    string
	Priority    int // 1..10, higher wins
	Active      bool
	StartsAt    time.Time
	EndsAt      time.Time
	Audience    Audience
	Rules       DisplayRules
	Content     Content

	Impressions int64
	Clicks      int64
	Conversions int64
	UniqueViews int64

	CreatedAt time.Time
	UpdatedAt time.Time
}

// CheckInvariants validates a banner on admin writes.
func (b *Banner) CheckInvariants() error {
	if b.Priority < 1 || b.Priority > 10 {
		return errors.New("priority must be between 1 and 10")
	}
	if !b.EndsAt.After(b.StartsAt) {
		return errors.New("ends_at must be after starts_at")
	}
	switch b.Surface {
	case SurfaceHero, SurfaceTopBar, SurfaceSidebar, SurfacePopup, SurfaceBanner, SurfaceNotification:
	default:
		return errors.Errorf("unsupported surface %q", b.Surface)
	}
	return nil
}

// EventKind names a trackable banner interaction.
type EventKind string

const (
	EventImpression EventKind = "impression"
	EventClick      EventKind = "click"
	EventConversion EventKind = "conversion"
	EventUniqueView EventKind = "unique_view"
)

// ParseEventKind validates a client-reported event kind.
func ParseEventKind(s string) (EventKind, error) {
	switch k := EventKind(s); k {
	case EventImpression, EventClick, EventConversion, EventUniqueView:
		return k, nil
	default:
		return "", errors.Errorf("unknown banner event kind %q", s)
	}
}

// Repository defines persistence operations for banners.
type Repository interface {
	ListActive(ctx context.Context, now time.Time) ([]Banner, error)
	List(ctx context.Context) ([]Banner, error)
	GetByID(ctx context.Context, id string) (*Banner, error)
	Create(ctx context.Context, b *Banner) error
	Update(ctx context.Context, b *Banner) error
	Delete(ctx context.Context, id string) error
	// IncrementCounter atomically bumps the counter for kind. Safe under
	// concurrent increments from many visitors.
	IncrementCounter(ctx context.Context, id string, kind EventKind) error
}
