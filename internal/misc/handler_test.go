package misc

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2beens/runcoach/internal/auth"
	"github.com/2beens/runcoach/internal/middleware"
	"github.com/2beens/runcoach/internal/telemetry/metrics"
)

func setupRouterForTests(t *testing.T, resolver auth.Resolver) *mux.Router {
	t.Helper()

	r := mux.NewRouter()
	NewHandler("v1.2.3").SetupRoutes(r)

	// the same setup as in Server.routerSetup() ... these are not so much of a "unit" tests
	metricsManager := metrics.NewTestManager()
	r.Use(middleware.PanicRecovery(metricsManager))
	r.Use(middleware.LogRequest())
	r.Use(middleware.RequestMetrics(metricsManager))
	r.Use(middleware.Cors(nil))
	r.Use(middleware.NewAuthMiddlewareHandler(resolver).AuthCheck())
	r.Use(middleware.DrainAndCloseRequest())

	return r
}

func TestNewMiscHandler(t *testing.T) {
	mainRouter := mux.NewRouter()
	NewHandler("dummy").SetupRoutes(mainRouter)

	for caseName, route := range map[string]struct {
		name   string
		path   string
		method string
	}{
		"route-get":  {name: "root", path: "/", method: "GET"},
		"route-post": {name: "root", path: "/", method: "POST"},
		"version":    {name: "version", path: "/version", method: "GET"},
		"whoami":     {name: "whoami", path: "/whoami", method: "GET"},
	} {
		t.Run(caseName, func(t *testing.T) {
			req, err := http.NewRequest(route.method, route.path, nil)
			require.NoError(t, err)

			routeMatch := &mux.RouteMatch{}
			require.True(t, mainRouter.Match(req, routeMatch))
			assert.Equal(t, route.name, routeMatch.Route.GetName())
		})
	}
}

func TestHandler_Public(t *testing.T) {
	r := setupRouterForTests(t, auth.NewTestResolver())

	req := httptest.NewRequest("GET", "/version", nil)
	req.Header.Set("User-Agent", "test-agent")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "v1.2.3", rr.Body.String())

	req = httptest.NewRequest("GET", "/", nil)
	req.Header.Set("User-Agent", "test-agent")
	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestHandler_WhoAmI(t *testing.T) {
	userID := uuid.New()
	resolver := auth.NewTestResolver()
	resolver.Sessions["tkn"] = userID
	r := setupRouterForTests(t, resolver)

	req := httptest.NewRequest("GET", "/whoami", nil)
	req.Header.Set("User-Agent", "test-agent")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	req = httptest.NewRequest("GET", "/whoami", nil)
	req.Header.Set("User-Agent", "test-agent")
	req.Header.Set("Authorization", "Bearer tkn")
	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"userId":"`+userID.String()+`"}`, rr.Body.String())
}
