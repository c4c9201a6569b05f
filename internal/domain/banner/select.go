package banner

import (
	"slices"
	"strings"
	"time"
)

// Visitor is the request-time context banners are matched against.
type Visitor struct {
	LoggedIn bool
	Segment  string
	Location string
	Device   string
	Browser  string
}

// UserType derives the audience user type for this visitor.
func (v Visitor) UserType() string {
	if v.LoggedIn {
		return "logged_in"
	}
	return "guest"
}

// History is this visitor's prior display record for one banner. The store
// behind it (cookie, session, account) is the caller's concern; the engine
// only consumes it.
type History struct {
	Displays  int
	LastShown time.Time
}

// HistoryByBanner maps banner ID to the visitor's display history.
type HistoryByBanner map[string]History

// Select returns the banners to render for a visitor on a page, ordered by
// priority (descending), then creation time (newest first), then ID. The
// result is deterministic: the same inputs always produce the same ordering.
func Select(banners []Banner, visitor Visitor, pagePath string, now time.Time, history HistoryByBanner) []Banner {
	selected := make([]Banner, 0, len(banners))
	for _, b := range banners {
		if !b.Active || now.Before(b.StartsAt) || now.After(b.EndsAt) {
			continue
		}
		if !matchesAudience(b.Audience, visitor) {
			continue
		}
		if !matchesPage(b.Rules, pagePath) {
			continue
		}
		if capReached(b, history[b.ID], now) {
			continue
		}
		selected = append(selected, b)
	}

	slices.SortStableFunc(selected, func(a, b Banner) int {
		if a.Priority != b.Priority {
			return b.Priority - a.Priority
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			if a.CreatedAt.After(b.CreatedAt) {
				return -1
			}
			return 1
		}
		return strings.Compare(a.ID, b.ID)
	})
	return selected
}

// matchesAudience checks every targeting dimension. An empty filter list
// leaves that dimension unrestricted.
func matchesAudience(a Audience, v Visitor) bool {
	if len(a.UserTypes) > 0 && !slices.Contains(a.UserTypes, v.UserType()) {
		return false
	}
	if len(a.Segments) > 0 && !slices.Contains(a.Segments, v.Segment) {
		return false
	}
	if len(a.Locations) > 0 && !slices.Contains(a.Locations, v.Location) {
		return false
	}
	if len(a.Devices) > 0 && !slices.Contains(a.Devices, v.Device) {
		return false
	}
	if len(a.Browsers) > 0 && !slices.Contains(a.Browsers, v.Browser) {
		return false
	}
	return true
}

// matchesPage applies the show/hide page lists. A hide match excludes the
// banner regardless of the show list.
func matchesPage(r DisplayRules, pagePath string) bool {
	if matchesAny(r.HideOnPages, pagePath) {
		return false
	}
	if len(r.ShowOnPages) > 0 && !matchesAny(r.ShowOnPages, pagePath) {
		return false
	}
	return true
}

// matchesAny reports whether pagePath matches one pattern by prefix, or the
// wildcard "*" which matches every page.
func matchesAny(patterns []string, pagePath string) bool {
	for _, p := range patterns {
		if p == "*" {
			return true
		}
		if p != "" && strings.HasPrefix(pagePath, p) {
			return true
		}
	}
	return false
}

// capReached applies the per-visitor frequency rules against the supplied
// display history.
func capReached(b Banner, h History, now time.Time) bool {
	if b.Rules.MaxDisplays > 0 && h.Displays >= b.Rules.MaxDisplays {
		return true
	}
	if b.Rules.MinHoursBetween > 0 && h.Displays > 0 {
		gap := time.Duration(b.Rules.MinHoursBetween) * time.Hour
		if now.Sub(h.LastShown) < gap {
			return true
		}
	}
	return false
}
