package http

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"finboard/internal/core"
	"finboard/internal/sources"
)

// HeaderUserID carries the authenticated user. Authentication itself happens
// upstream of this service.
const HeaderUserID = "X-User-ID"

const dateLayout = "2006-01-02"

// badRequestError marks a client mistake in the request parameters.
type badRequestError struct {
	msg string
}

func (e *badRequestError) Error() string { return e.msg }

func badRequest(format string, args ...any) error {
	return &badRequestError{msg: fmt.Sprintf(format, args...)}
}

func isBadRequest(err error) bool {
	var br *badRequestError
	return errors.As(err, &br)
}

// parsePeriod reads start and end (YYYY-MM-DD) from the query. Both absent
// selects the calendar month of now; end covers its whole day.
func parsePeriod(r *http.Request, now time.Time, loc *time.Location) (core.Period, error) {
	q := r.URL.Query()
	startStr := strings.TrimSpace(q.Get("start"))
	endStr := strings.TrimSpace(q.Get("end"))

	if startStr == "" && endStr == "" {
		now = now.In(loc)
		return core.MonthPeriod(now.Year(), now.Month(), loc), nil
	}
	if startStr == "" || endStr == "" {
		return core.Period{}, badRequest("start and end must be given together")
	}

	start, err := time.ParseInLocation(dateLayout, startStr, loc)
	if err != nil {
		return core.Period{}, badRequest("invalid start date %q", startStr)
	}
	end, err := time.ParseInLocation(dateLayout, endStr, loc)
	if err != nil {
		return core.Period{}, badRequest("invalid end date %q", endStr)
	}

	p, err := core.NewPeriod(start, end.AddDate(0, 0, 1).Add(-time.Nanosecond))
	if err != nil {
		return core.Period{}, badRequest("end date is before start date")
	}
	return p, nil
}

// parseRefresh reports whether the caller asked to bypass the caches.
func parseRefresh(r *http.Request) bool {
	switch strings.ToLower(strings.TrimSpace(r.URL.Query().Get("refresh"))) {
	case "1", "true", "yes":
		return true
	}
	return false
}

func parseEntity(s string) (sources.Entity, error) {
	e, err := sources.ParseEntity(strings.TrimSpace(s))
	if err != nil {
		return "", badRequest("%v", err)
	}
	return e, nil
}

func userID(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(HeaderUserID))
}
