package middleware

import (
	"context"
	"net/http"
	"strconv"
	"time"
)

const seasonContextKey contextKey = "season"

// SeasonContext resolves the season for the request from the `season`
// query parameter, defaulting to the current calendar year. Semantic range
// validation belongs to the season registry; this only rejects non-numeric
// input.
func SeasonContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		season := time.Now().Year()
		if raw := r.URL.Query().Get("season"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil {
				http.Error(w, "season must be an integer year", http.StatusBadRequest)
				return
			}
			season = parsed
		}
		ctx := context.WithValue(r.Context(), seasonContextKey, season)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// SeasonFromContext returns the request's season year.
func SeasonFromContext(ctx context.Context) int {
	if season, ok := ctx.Value(seasonContextKey).(int); ok {
		return season
	}
	return time.Now().Year()
}
