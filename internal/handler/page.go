package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/velvetlane/storefront/internal/domain/content"
)

type pageResponse struct {
	Slug      string    `json:"slug"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	Published bool      `json:"published"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// GetPage returns a published CMS page by slug. Drafts are invisible here.
func (h *Handler) GetPage(w http.ResponseWriter, r *http.Request) {
	p, err := h.pages.GetPublished(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toPageResponse(p))
}

func toPageResponse(p *content.Page) pageResponse {
	return pageResponse{
		Slug:      p.Slug,
		Title:     p.Title,
		Body:      p.Body,
		Published: p.Published,
		UpdatedAt: p.UpdatedAt,
	}
}
