package garmin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/2beens/runcoach/pkg"
)

var _ Client = (*Adapter)(nil)

// Adapter implements Client over an external client whose surface was resolved at Connect time.
// It is safe for concurrent use.
type Adapter struct {
	client       surface
	capabilities map[string]bool
	httpClient   *http.Client
	onFallback   func(op string)
	sessionData  json.RawMessage

	fallbackOnce sync.Once
	fallback     *httpFallback
	fallbackErr  error
}

func newAdapter(client any, o *options) *Adapter {
	a := &Adapter{
		client:       newSurface(client),
		capabilities: map[string]bool{},
		httpClient:   o.httpClient,
		onFallback:   o.onFallback,
		sessionData:  o.sessionData,
	}

	capabilities := o.capabilities
	if len(capabilities) == 0 {
		capabilities = Probe(client)
	}
	for _, c := range normalizeCapabilities(capabilities) {
		a.capabilities[c] = true
	}
	return a
}

func (a *Adapter) Capabilities() []string {
	caps := make([]string, 0, len(a.capabilities))
	for c := range a.capabilities {
		caps = append(caps, c)
	}
	sort.Strings(caps)
	return caps
}

// SessionData exports the client's current session, falling back to the one it was resumed from.
func (a *Adapter) SessionData() json.RawMessage {
	res, err := a.invoke(context.Background(), "exportSession", sessionAliases, [][]any{{}})
	if err != nil || res == nil {
		return a.sessionData
	}
	data, err := json.Marshal(res)
	if err != nil {
		log.Warnf("marshal garmin session data: %s", err)
		return a.sessionData
	}
	return data
}

func (a *Adapter) supports(op string) bool {
	return a.capabilities[op]
}

// invoke returns the first successful alias/shape call. Aliases resolving to the same method
// are called once.
func (a *Adapter) invoke(ctx context.Context, op string, aliases []string, shapes [][]any) (any, error) {
	var lastErr error
	for _, alias := range dedupeAliases(aliases) {
		fn, ok := a.client.method(alias)
		if !ok {
			continue
		}
		for _, shape := range shapes {
			res, err := callFunc(ctx, fn, shape)
			if errors.Is(err, errShapeMismatch) {
				continue
			}
			if err != nil {
				lastErr = err
				continue
			}
			return normalize(res)
		}
	}
	return nil, &CapabilityError{Operation: op, Cause: lastErr}
}

func (a *Adapter) call(ctx context.Context, op string, aliases []string, shapes [][]any) (any, error) {
	if !a.supports(op) {
		return nil, &CapabilityError{Operation: op}
	}
	return a.invoke(ctx, op, aliases, shapes)
}

func dedupeAliases(aliases []string) []string {
	seen := map[string]bool{}
	out := make([]string, 0, len(aliases))
	for _, alias := range aliases {
		key := strings.ToLower(goName(alias))
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, alias)
	}
	return out
}

func dateShapes(date time.Time) [][]any {
	return [][]any{
		{date.Format(pkg.DateLayout)},
		{date},
	}
}

func (a *Adapter) GetActivities(ctx context.Context, start, end time.Time) ([]any, error) {
	if !a.supports(OpGetActivities) {
		return nil, Classify(&CapabilityError{Operation: OpGetActivities})
	}

	startDay, endDay := pkg.StartOfDay(start), pkg.StartOfDay(end)
	res, err := a.invoke(ctx, OpGetActivities, activitiesByDateAliases, [][]any{
		{startDay, endDay},
		{startDay.Format(pkg.DateLayout), endDay.Format(pkg.DateLayout)},
		{startDay.Format(pkg.DateLayout), endDay.Format(pkg.DateLayout), "running"},
	})
	if err == nil {
		items, err := activityList(res)
		if err != nil {
			return nil, Classify(err)
		}
		return items, nil
	}
	if !IsUnsupported(err) {
		return nil, Classify(err)
	}

	items, err := paginateActivities(ctx, func(ctx context.Context, offset, limit int) ([]any, error) {
		res, err := a.invoke(ctx, OpGetActivities, activitiesPageAliases, [][]any{
			{offset, limit},
			{offset, limit, "running"},
		})
		if err != nil {
			return nil, err
		}
		return activityList(res)
	}, startDay, endDay)
	if err != nil {
		return nil, Classify(err)
	}
	return items, nil
}

// activityList accepts a bare list or an object wrapping one.
func activityList(res any) ([]any, error) {
	switch r := res.(type) {
	case nil:
		return []any{}, nil
	case []any:
		return r, nil
	case map[string]any:
		for _, key := range []string{"activities", "activityList", "items", "results"} {
			if list, ok := r[key].([]any); ok {
				return list, nil
			}
		}
	}
	return nil, fmt.Errorf("unexpected activities response of type %T", res)
}

func (a *Adapter) GetSleepData(ctx context.Context, date time.Time) (any, error) {
	res, err := a.call(ctx, OpGetSleepData, sleepAliases, dateShapes(date))
	if err != nil {
		return nil, Classify(err)
	}
	return res, nil
}

func (a *Adapter) GetHrvData(ctx context.Context, date time.Time) (any, error) {
	res, err := a.call(ctx, OpGetHrvData, hrvAliases, dateShapes(date))
	if err != nil {
		return a.withFallback(ctx, OpGetHrvData, err, func(f *httpFallback) (any, error) {
			return f.hrv(ctx, date)
		})
	}
	return res, nil
}

func (a *Adapter) GetRestingHeartRate(ctx context.Context, date time.Time) (any, error) {
	day := date.Format(pkg.DateLayout)
	shapes := append(dateShapes(date), []any{day, day})
	res, err := a.call(ctx, OpGetRestingHeartRate, restingHRAliases, shapes)
	if err != nil {
		return a.withFallback(ctx, OpGetRestingHeartRate, err, func(f *httpFallback) (any, error) {
			return f.restingHeartRate(ctx, date)
		})
	}
	return res, nil
}

func (a *Adapter) GetRacePredictions(ctx context.Context) (any, error) {
	res, err := a.call(ctx, OpGetRacePredictions, racePredictionAliases, [][]any{{}})
	if err != nil {
		return a.withFallback(ctx, OpGetRacePredictions, err, func(f *httpFallback) (any, error) {
			return f.racePredictions(ctx)
		})
	}
	return res, nil
}

func (a *Adapter) UploadWorkout(ctx context.Context, workout json.RawMessage) (any, error) {
	var decoded map[string]any
	if err := json.Unmarshal(workout, &decoded); err != nil {
		return nil, fmt.Errorf("workout is not a json object: %w", err)
	}
	res, err := a.call(ctx, OpUploadWorkout, uploadAliases, [][]any{
		{decoded},
		{workout},
		{string(workout)},
	})
	if err != nil {
		return nil, Classify(err)
	}
	return res, nil
}

// withFallback serves a failed or missing operation over direct HTTP. Without a usable
// fallback the original failure is returned.
func (a *Adapter) withFallback(ctx context.Context, op string, original error, fetch func(*httpFallback) (any, error)) (any, error) {
	var capErr *CapabilityError
	if !errors.As(original, &capErr) {
		return nil, Classify(original)
	}

	f, err := a.httpFallbackFor(ctx)
	if err != nil {
		log.Debugf("garmin http fallback for %s unavailable: %s", op, err)
		return nil, Classify(original)
	}
	if a.onFallback != nil {
		a.onFallback(op)
	}

	res, err := fetch(f)
	if err != nil {
		return nil, Classify(err)
	}
	return res, nil
}

func (a *Adapter) httpFallbackFor(ctx context.Context) (*httpFallback, error) {
	a.fallbackOnce.Do(func() {
		a.fallback, a.fallbackErr = discoverFallback(ctx, a.client, a.httpClient)
	})
	return a.fallback, a.fallbackErr
}
