// Package content stores CMS-style page content edited from the back office
// (about, FAQ, policies). Rendering happens in the storefront.
package content

import (
	"context"
	"regexp"
	"time"

	"github.com/go-faster/errors"
)

// ErrNotFound is returned when no page exists for a slug.
var ErrNotFound = errors.New("page not found")

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)

// Page is one editable content page addressed by slug.
type Page struct {
	Slug      string
	Title     string
	Body      string
	Published bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CheckInvariants validates a page on admin writes.
func (p *Page) CheckInvariants() error {
	if !slugPattern.MatchString(p.Slug) {
		return errors.Errorf("slug %q must match %s", p.Slug, slugPattern)
	}
	if p.Title == "" {
		return errors.New("title required")
	}
	return nil
}

// Repository defines persistence operations for pages.
type Repository interface {
	// GetPublished returns a page only when it is published; drafts are
	// invisible to the storefront.
	GetPublished(ctx context.Context, slug string) (*Page, error)
	GetBySlug(ctx context.Context, slug string) (*Page, error)
	List(ctx context.Context) ([]Page, error)
	Upsert(ctx context.Context, p *Page) error
	Delete(ctx context.Context, slug string) error
}
