package mcp

import (
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	log "github.com/sirupsen/logrus"

	"github.com/2beens/runcoach/pkg"
)

const SecretHeader = "X-MCP-Secret"

// NewServer builds an MCP server with runcoach tools: schema, fitness profile, recent activities,
// health readings and the pace calculator.
// Mounted by the main backend at /mcp, and served over stdio by cmd/fitness_mcp.
func NewServer(pool *pgxpool.Pool, profiles profileGetter, activities activityLister, health healthLister) *mcp.Server {
	return newServer(NewContextService(NewPoolSchemaRepo(pool), profiles, activities, health))
}

func newServer(svc contextService) *mcp.Server {
	h := NewHandler(svc)
	s := mcp.NewServer(&mcp.Implementation{
		Name:    "runcoach-context",
		Version: "1.0.0",
	}, nil)

	mcp.AddTool(s, &mcp.Tool{
		Name:        "get_runcoach_schema",
		Description: "Returns the DB schema for the fitness tables (activity, daily_health_reading, running_fitness_profile, workout): columns, types, nullable, default.",
	}, h.GetSchemaTool())

	mcp.AddTool(s, &mcp.Tool{
		Name:        "get_fitness_profile",
		Description: "Returns the user's running fitness profile: race predictions, training paces (seconds per km) and weekly volume. Arg: user_id.",
	}, h.GetFitnessProfileTool())

	mcp.AddTool(s, &mcp.Tool{
		Name:        "get_recent_activities",
		Description: "Returns the user's most recent running activities, newest first. Args: user_id; optional: limit.",
	}, h.GetRecentActivitiesTool())

	mcp.AddTool(s, &mcp.Tool{
		Name:        "get_health_readings",
		Description: "Returns the user's most recent daily health readings (sleep, HRV, resting heart rate), newest first. Args: user_id; optional: limit.",
	}, h.GetHealthReadingsTool())

	mcp.AddTool(s, &mcp.Tool{
		Name:        "calculate_training_paces",
		Description: "Calculates easy, tempo, threshold, interval and repetition paces from a predicted 10K time. Arg: predicted_10k_seconds.",
	}, h.CalculatePacesTool())

	return s
}

// NewHTTPHandler serves server over streamable HTTP. Requests must carry X-MCP-Secret matching
// the bcrypt secretHash; with an empty hash every request is refused.
func NewHTTPHandler(server *mcp.Server, secretHash string) http.Handler {
	streamable := mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return server
	}, nil)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !pkg.CheckPasswordHash(r.Header.Get(SecretHeader), secretHash) {
			log.Tracef("[mcp] refused request from %s", r.RemoteAddr)
			pkg.WriteJSONError(w, http.StatusUnauthorized, "no can do")
			return
		}
		streamable.ServeHTTP(w, r)
	})
}
