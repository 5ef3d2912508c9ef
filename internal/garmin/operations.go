package garmin

import (
	"context"
	"encoding/json"
	"sort"
	"time"
)

// Canonical operations, also the capability names persisted with the credential.
const (
	OpGetActivities       = "getActivities"
	OpGetSleepData        = "getSleepData"
	OpGetHrvData          = "getHrvData"
	OpGetRestingHeartRate = "getRestingHeartRate"
	OpGetRacePredictions  = "getRacePredictions"
	OpUploadWorkout       = "uploadWorkout"
)

var AllOperations = []string{
	OpGetActivities,
	OpGetSleepData,
	OpGetHrvData,
	OpGetRestingHeartRate,
	OpGetRacePredictions,
	OpUploadWorkout,
}

// Client is the canonical surface every sync and upload path depends on.
// Results are generic JSON values: map[string]any, []any or nil.
type Client interface {
	GetActivities(ctx context.Context, start, end time.Time) ([]any, error)
	GetSleepData(ctx context.Context, date time.Time) (any, error)
	GetHrvData(ctx context.Context, date time.Time) (any, error)
	GetRestingHeartRate(ctx context.Context, date time.Time) (any, error)
	GetRacePredictions(ctx context.Context) (any, error)
	UploadWorkout(ctx context.Context, workout json.RawMessage) (any, error)
	Capabilities() []string
	SessionData() json.RawMessage
}

// Method-name aliases per operation. camelCase and snake_case forms normalize to the same Go
// method name, both are listed so map-backed clients keyed either way resolve too.
var (
	activitiesByDateAliases = []string{
		"getActivitiesByDate", "get_activities_by_date",
		"getActivitiesByDateRange", "get_activities_by_date_range",
		"getActivitiesInRange", "activitiesByDate",
	}
	activitiesPageAliases = []string{
		"getActivities", "get_activities",
		"listActivities", "list_activities",
	}
	sleepAliases = []string{
		"getSleepData", "get_sleep_data", "getSleep", "sleepData",
	}
	hrvAliases = []string{
		"getHrvData", "get_hrv_data", "getHRV", "get_hrv", "hrvData",
	}
	restingHRAliases = []string{
		"getRestingHeartRate", "get_resting_heart_rate", "getRhrDay", "get_rhr_day", "restingHeartRate",
	}
	racePredictionAliases = []string{
		"getRacePredictions", "get_race_predictions", "racePredictions",
	}
	uploadAliases = []string{
		"uploadWorkout", "upload_workout", "createWorkout", "create_workout", "addWorkout",
	}

	loginAliases   = []string{"login", "authenticate", "connect", "signIn", "sign_in"}
	resumeAliases  = []string{"resumeSession", "loadSession", "restoreSession", "resume_session", "load_session"}
	sessionAliases = []string{"exportSession", "dumpSession", "sessionData", "getSessionData", "export_session", "dump_session"}

	baseURLAliases     = []string{"baseURL", "base_url", "apiBaseURL", "api_base_url", "domain"}
	displayNameAliases = []string{"displayName", "display_name"}
	userProfileAliases = []string{"getUserProfile", "get_user_profile", "userProfile"}
	httpClientAliases  = []string{"httpClient", "http_client"}
	authHeaderAliases  = []string{"authHeader", "auth_header", "authorizationHeader"}
)

var operationAliases = map[string][]string{
	OpGetActivities:       append(append([]string{}, activitiesByDateAliases...), activitiesPageAliases...),
	OpGetSleepData:        sleepAliases,
	OpGetHrvData:          hrvAliases,
	OpGetRestingHeartRate: restingHRAliases,
	OpGetRacePredictions:  racePredictionAliases,
	OpUploadWorkout:       uploadAliases,
}

// Probe lists the canonical operations the client exposes a callable for.
func Probe(client any) []string {
	s := newSurface(client)
	capabilities := make([]string, 0, len(AllOperations))
	for _, op := range AllOperations {
		if s.hasAny(operationAliases[op]) {
			capabilities = append(capabilities, op)
		}
	}
	return capabilities
}

func normalizeCapabilities(caps []string) []string {
	known := map[string]bool{}
	for _, op := range AllOperations {
		known[op] = true
	}
	seen := map[string]bool{}
	out := make([]string, 0, len(caps))
	for _, c := range caps {
		if known[c] && !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	sort.Strings(out)
	return out
}
