package handler

import (
	"context"
	"net/http"

	"github.com/Adithya-Monish-Kumar-K/website-analytics/internal/api/middleware"
	"github.com/Adithya-Monish-Kumar-K/website-analytics/internal/request"
	"github.com/Adithya-Monish-Kumar-K/website-analytics/internal/stats"
	"github.com/Adithya-Monish-Kumar-K/website-analytics/internal/website"
	apperrors "github.com/Adithya-Monish-Kumar-K/website-analytics/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/website-analytics/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/website-analytics/pkg/tracing"
)

// WebsitePageviews is one entry of the pageviews response.
type WebsitePageviews struct {
	ID        string            `json:"id"`
	Name      string            `json:"name"`
	Pageviews []stats.StatPoint `json:"pageviews"`
}

// WebsitePageviewsResponse is the body of a successful pageviews request.
type WebsitePageviewsResponse struct {
	Websites []WebsitePageviews `json:"websites"`
}

// WebsitePageviews returns the pageview series of every website on the
// requested page of the admin's websites, in page order. The query has
// already been validated by the route's schema.
//
// pageSize is capped at the stats.maxPageSize config value by the website
// store, so a larger request returns at most that many entries.
func (h *Handler) WebsitePageviews(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.methodNotAllowed(w, r, http.MethodGet)
		return
	}

	user := middleware.UserFromContext(r.Context())
	if user == nil || !user.IsAdmin {
		h.fail(w, r, apperrors.ErrUnauthorized, "admin check")
		return
	}

	ctx, span := tracing.StartSpan(r.Context(), "websites.pageviews", logger.RequestID(r.Context()))
	log := logger.FromContext(ctx)
	defer func() {
		span.End()
		span.Log(ctx, log)
	}()

	q := r.URL.Query()
	page, err := h.websites.UserWebsites(ctx, user.ID, website.Pagination{
		Page:     request.Int(q, "page"),
		PageSize: request.Int(q, "pageSize"),
	})
	if err != nil {
		h.fail(w, r, err, "listing websites")
		return
	}

	rg, err := request.DateRange(r)
	if err != nil {
		h.fail(w, r, err, "resolving date range")
		return
	}
	filters := stats.PageviewFilters{
		Filters:   request.Filters(r),
		StartDate: rg.StartDate,
		EndDate:   rg.EndDate,
		Timezone:  request.Timezone(r),
		Unit:      rg.Unit,
	}
	span.SetAttr("websites", len(page.Data))
	span.SetAttr("range", rg.String())

	ids := make([]string, len(page.Data))
	for i, site := range page.Data {
		ids[i] = site.ID
	}
	series, err := stats.Collect(ctx, ids, h.cfg.MaxConcurrentQueries, func(ctx context.Context, id string) ([]stats.StatPoint, error) {
		_, child := tracing.StartChildSpan(ctx, "pageview-stats")
		defer child.End()
		child.SetAttr("website_id", id)
		return h.stats.PageviewStats(ctx, id, filters)
	})
	if err != nil {
		h.fail(w, r, err, "fetching pageview stats")
		return
	}

	out := WebsitePageviewsResponse{Websites: make([]WebsitePageviews, len(page.Data))}
	for i, site := range page.Data {
		out.Websites[i] = WebsitePageviews{ID: site.ID, Name: site.Name, Pageviews: series[i]}
	}
	if h.metrics != nil {
		h.metrics.WebsitesPerRequest.Observe(float64(len(out.Websites)))
	}

	h.writeJSON(w, http.StatusOK, out)
}
