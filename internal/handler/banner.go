package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/velvetlane/storefront/internal/domain/banner"
)

type selectBannersRequest struct {
	PagePath string `json:"pagePath"`
	Visitor  struct {
		LoggedIn bool   `json:"loggedIn"`
		Segment  string `json:"segment"`
		Location string `json:"location"`
		Device   string `json:"device"`
		Browser  string `json:"browser"`
	} `json:"visitor"`
	// History is the visitor's prior display record per banner ID, kept
	// client-side (cookie or session).
	History map[string]struct {
		Displays  int       `json:"displays"`
		LastShown time.Time `json:"lastShown"`
	} `json:"history"`
}

type bannerPayload struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	Subtitle     string `json:"subtitle,omitempty"`
	Description  string `json:"description,omitempty"`
	Surface      string `json:"surface"`
	Position     string `json:"position,omitempty"`
	Priority     int    `json:"priority"`
	DelaySeconds int    `json:"delaySeconds,omitempty"`
	Content      struct {
		Text        string `json:"text,omitempty"`
		ButtonLabel string `json:"buttonLabel,omitempty"`
		ButtonURL   string `json:"buttonUrl,omitempty"`
		ImageURL    string `json:"imageUrl,omitempty"`
		Background  string `json:"background,omitempty"`
		Foreground  string `json:"foreground,omitempty"`
	} `json:"content"`
}

// SelectBanners returns the banners to render for a visitor on a page,
// highest priority first.
func (h *Handler) SelectBanners(w http.ResponseWriter, r *http.Request) {
	var req selectBannersRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.PagePath == "" {
		respondMessage(w, http.StatusBadRequest, "pagePath required")
		return
	}

	now := h.now()
	active, err := h.banners.ListActive(r.Context(), now)
	if err != nil {
		respondError(w, r, err)
		return
	}

	visitor := banner.Visitor{
		LoggedIn: req.Visitor.LoggedIn,
		Segment:  req.Visitor.Segment,
		Location: req.Visitor.Location,
		Device:   req.Visitor.Device,
		Browser:  req.Visitor.Browser,
	}
	history := make(banner.HistoryByBanner, len(req.History))
	for id, hist := range req.History {
		history[id] = banner.History{Displays: hist.Displays, LastShown: hist.LastShown}
	}

	selected := banner.Select(active, visitor, req.PagePath, now, history)

	out := make([]bannerPayload, 0, len(selected))
	for _, b := range selected {
		out = append(out, toBannerPayload(b))
	}
	respondJSON(w, http.StatusOK, out)
}

type bannerEventRequest struct {
	Action string `json:"action"`
}

// RecordBannerEvent increments a tracking counter for client-reported
// impressions, clicks, conversions, and unique views.
func (h *Handler) RecordBannerEvent(w http.ResponseWriter, r *http.Request) {
	var req bannerEventRequest
	if !decodeBody(w, r, &req) {
		return
	}
	kind, err := banner.ParseEventKind(req.Action)
	if err != nil {
		respondMessage(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.banners.IncrementCounter(r.Context(), chi.URLParam(r, "id"), kind); err != nil {
		respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func toBannerPayload(b banner.Banner) bannerPayload {
	p := bannerPayload{
		ID:           b.ID,
		Title:        b.Title,
		Subtitle:     b.Subtitle,
		Description:  b.Description,
		Surface:      string(b.Surface),
		Position:     b.Position,
		Priority:     b.Priority,
		DelaySeconds: b.Rules.DelaySeconds,
	}
	p.Content.Text = b.Content.Text
	p.Content.ButtonLabel = b.Content.ButtonLabel
	p.Content.ButtonURL = b.Content.ButtonURL
	p.Content.ImageURL = b.Content.ImageURL
	p.Content.Background = b.Content.Background
	p.Content.Foreground = b.Content.Foreground
	return p
}
