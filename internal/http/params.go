package http

import (
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/example/roombook/internal/application"
)

var reservedQueryKeys = map[string]struct{}{
	"page":           {},
	"items":          {},
	"include_past":   {},
	"available_from": {},
	"available_to":   {},
}

// buildListParams turns query parameters into zero-based paging plus equality
// filters. Every key that is not a paging or mode switch becomes a filter; the
// service rejects keys it does not know.
func buildListParams(values url.Values) (application.ListParams, *application.ValidationError) {
	params := application.ListParams{}
	vErr := &application.ValidationError{}

	if raw := strings.TrimSpace(values.Get("page")); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil || page < 0 {
			addFieldError(vErr, "page", "page must be a non-negative integer")
		}
		params.Page = page
	}
	if raw := strings.TrimSpace(values.Get("items")); raw != "" {
		items, err := strconv.Atoi(raw)
		if err != nil || items < 0 {
			addFieldError(vErr, "items", "items must be a non-negative integer")
		}
		params.Items = items
	}

	for key, vals := range values {
		if _, reserved := reservedQueryKeys[key]; reserved || len(vals) == 0 {
			continue
		}
		if params.Filter == nil {
			params.Filter = make(map[string]string)
		}
		params.Filter[key] = vals[0]
	}

	if vErr.HasErrors() {
		return application.ListParams{}, vErr
	}
	return params, nil
}

func buildListMeetingsParams(values url.Values) (application.ListMeetingsParams, *application.ValidationError) {
	list, vErr := buildListParams(values)
	if vErr != nil {
		return application.ListMeetingsParams{}, vErr
	}
	params := application.ListMeetingsParams{ListParams: list}
	if raw := strings.TrimSpace(values.Get("include_past")); raw != "" {
		includePast, err := strconv.ParseBool(raw)
		if err != nil {
			vErr := &application.ValidationError{}
			addFieldError(vErr, "include_past", "include_past must be a boolean")
			return application.ListMeetingsParams{}, vErr
		}
		params.IncludePast = includePast
	}
	return params, nil
}

// parseTimestamp accepts RFC 3339 with any offset. An empty value yields the
// zero time so that the service reports the field as required.
func parseTimestamp(vErr *application.ValidationError, field, value string) time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}
	}
	parsed, err := time.Parse(time.RFC3339, value)
	if err != nil {
		addFieldError(vErr, field, field+" must be an RFC 3339 timestamp")
		return time.Time{}
	}
	return parsed.UTC()
}

func addFieldError(vErr *application.ValidationError, field, message string) {
	if vErr.FieldErrors == nil {
		vErr.FieldErrors = make(map[string]string)
	}
	vErr.FieldErrors[field] = message
}

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
