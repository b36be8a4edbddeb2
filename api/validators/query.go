package validators

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	pkgerrors "github.com/wavecrate/wavecrate-backend/pkg/errors"
)

// ParseQueryInt reads an integer query parameter, falling back to defaultVal
// when the parameter is absent and clamping input errors to validation errors.
func ParseQueryInt(r *http.Request, key string, defaultVal, min, max int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return defaultVal, nil
	}

	val, err := strconv.Atoi(raw)
	if err != nil {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("query parameter %q must be an integer", key)).
			WithDetails(map[string]any{key: "must be an integer"})
	}
	if val < min || val > max {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("query parameter %q is out of range", key)).
			WithDetails(map[string]any{key: fmt.Sprintf("must be between %d and %d", min, max)})
	}
	return val, nil
}

// ParseQueryString reads a trimmed string query parameter with an optional
// length cap. Empty values fall back to defaultVal.
func ParseQueryString(r *http.Request, key, defaultVal string, maxLen int) string {
	raw := SanitizeString(r.URL.Query().Get(key), maxLen)
	if raw == "" {
		return defaultVal
	}
	return raw
}

// ParsePathUUID parses a URL path segment as a UUID.
func ParsePathUUID(raw, field string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("%s must be a valid UUID", field)).
			WithDetails(map[string]any{field: "must be a valid UUID"})
	}
	return id, nil
}
