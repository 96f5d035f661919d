// internal/app/features/profile/activity.go
package profile

import (
	"context"
	"net/http"
	"strconv"
	"time"

	activitystore "github.com/dalemusser/teamhub/internal/app/store/activity"
	"github.com/dalemusser/teamhub/internal/app/system/apperr"
	"github.com/dalemusser/teamhub/internal/app/system/authz"
	"github.com/dalemusser/teamhub/internal/app/system/inputval"
	"github.com/dalemusser/teamhub/internal/app/system/normalize"
	"github.com/dalemusser/teamhub/internal/app/system/respond"
	"github.com/dalemusser/teamhub/internal/app/system/timeouts"
	"github.com/dalemusser/waffle/pantry/query"
	"golang.org/x/sync/errgroup"
)

const (
	defaultActivityLimit = 50
	maxActivityLimit     = 100
)

var (
	errBadLimit = apperr.Validation("Limit must be between 1 and 100", map[string]string{"limit": "Limit must be between 1 and 100"})
	errBadPage  = apperr.Validation("Page must be greater than 0", map[string]string{"page": "Page must be greater than 0"})
)

// intParam parses an optional positive integer query value.
func intParam(r *http.Request, key string, def int64) (int64, bool) {
	raw := normalize.QueryParam(query.Get(r, key))
	if raw == "" {
		return def, true
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

func parseTime(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil
	}
	return &t
}

// ServeActivity handles GET /activity.
func (h *Handler) ServeActivity(w http.ResponseWriter, r *http.Request) {
	_, uid, ok := authz.UserCtx(r)
	if !ok {
		respond.Message(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	limit, ok := intParam(r, "limit", defaultActivityLimit)
	if !ok || limit < 1 || limit > maxActivityLimit {
		h.fail(w, r, errBadLimit)
		return
	}
	page, ok := intParam(r, "page", 1)
	if !ok || page < 1 {
		h.fail(w, r, errBadPage)
		return
	}

	q := activityQuery{
		Type:      normalize.QueryParam(query.Get(r, "type")),
		StartDate: normalize.QueryParam(query.Get(r, "startDate")),
		EndDate:   normalize.QueryParam(query.Get(r, "endDate")),
	}
	if err := inputval.Validate(q).Err(); err != nil {
		h.fail(w, r, err)
		return
	}
	f := activitystore.Filter{
		UserID:       uid,
		ResourceType: normalize.ActivityType(q.Type),
		Start:        parseTime(q.StartDate),
		End:          parseTime(q.EndDate),
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	resp := activityResponse{Message: "Activity logs fetched successfully"}
	var total int64
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		rows, err := h.Activity.List(gctx, f, (page-1)*limit, limit)
		resp.Activities = rows
		return err
	})
	g.Go(func() error {
		n, err := h.Activity.Count(gctx, f)
		total = n
		return err
	})
	g.Go(func() error {
		sum, err := h.Activity.SummaryByResource(gctx, uid)
		resp.Summary = sum
		return err
	})
	if err := g.Wait(); err != nil {
		h.fail(w, r, err)
		return
	}

	resp.Pagination = pagination{
		CurrentPage:  page,
		TotalPages:   (total + limit - 1) / limit,
		TotalItems:   total,
		ItemsPerPage: limit,
		HasNextPage:  page*limit < total,
		HasPrevPage:  page > 1,
	}
	respond.JSON(w, http.StatusOK, resp)
}
