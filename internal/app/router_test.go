package app

import (
	"io"
	"log/slog"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/conformia/conformia/jobs"
)

func routePatterns(t *testing.T, h http.Handler) []string {
	t.Helper()
	routes, ok := h.(chi.Routes)
	require.True(t, ok)

	var patterns []string
	err := chi.Walk(routes, func(method, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		patterns = append(patterns, method+" "+route)
		return nil
	})
	require.NoError(t, err)
	return patterns
}

func TestRouterMountsJobsUnderAPIPrefix(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := NewRouter(RouterParams{
		Logger:     logger,
		JobHandler: jobs.NewHandler(nil, logger),
	})

	patterns := routePatterns(t, h)
	require.Contains(t, patterns, "GET /api/v1/jobs/health")
	require.NotContains(t, patterns, "GET /jobs/health")
}

func TestRouterKeepsOperationalEndpointsAtRoot(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := NewRouter(RouterParams{Logger: logger})

	patterns := routePatterns(t, h)
	require.Contains(t, patterns, "GET /healthz")
}
