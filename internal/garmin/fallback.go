package garmin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/2beens/runcoach/internal/apperror"
	"github.com/2beens/runcoach/internal/fitness"
	"github.com/2beens/runcoach/internal/telemetry/tracing"
	"github.com/2beens/runcoach/pkg"
)

const restingHeartRateMetricID = "60"

// httpFallback calls the Garmin Connect REST API directly with what the external client
// exposes about its session.
type httpFallback struct {
	baseURL     string
	displayName string
	authHeader  string
	httpClient  *http.Client
}

func discoverFallback(ctx context.Context, s surface, defaultClient *http.Client) (*httpFallback, error) {
	f := &httpFallback{}

	for _, alias := range baseURLAliases {
		if v, ok := s.value(ctx, alias); ok {
			if str, ok := v.(string); ok && strings.TrimSpace(str) != "" {
				f.baseURL = normalizeBaseURL(str)
				break
			}
		}
	}
	if f.baseURL == "" {
		return nil, errors.New("client exposes no base url")
	}

	for _, alias := range displayNameAliases {
		if v, ok := s.value(ctx, alias); ok {
			if str, ok := v.(string); ok && str != "" {
				f.displayName = str
				break
			}
		}
	}
	if f.displayName == "" {
		for _, alias := range userProfileAliases {
			v, ok := s.value(ctx, alias)
			if !ok {
				continue
			}
			profile, err := normalize(v)
			if err != nil {
				continue
			}
			if m, ok := profile.(map[string]any); ok {
				if name, ok := m["displayName"].(string); ok && name != "" {
					f.displayName = name
					break
				}
			}
		}
	}

	for _, alias := range httpClientAliases {
		if v, ok := s.value(ctx, alias); ok {
			if c, ok := v.(*http.Client); ok {
				f.httpClient = c
				break
			}
		}
	}
	if f.httpClient == nil {
		f.httpClient = defaultClient
	}
	if f.httpClient == nil {
		f.httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	for _, alias := range authHeaderAliases {
		if v, ok := s.value(ctx, alias); ok {
			if str, ok := v.(string); ok && str != "" {
				if !strings.Contains(str, " ") {
					str = "Bearer " + str
				}
				f.authHeader = str
				break
			}
		}
	}

	return f, nil
}

// normalizeBaseURL accepts a full URL or a bare domain such as "garmin.com".
func normalizeBaseURL(v string) string {
	v = strings.TrimRight(strings.TrimSpace(v), "/")
	if strings.Contains(v, "://") {
		return v
	}
	if strings.HasPrefix(v, "connectapi.") {
		return "https://" + v
	}
	return "https://connectapi." + v
}

func (f *httpFallback) requireDisplayName() error {
	if f.displayName == "" {
		return errors.New("garmin display name unknown")
	}
	return nil
}

func (f *httpFallback) racePredictions(ctx context.Context) (any, error) {
	if err := f.requireDisplayName(); err != nil {
		return nil, err
	}
	return f.get(ctx, "/metrics-service/metrics/racepredictions/latest/"+url.PathEscape(f.displayName), nil)
}

func (f *httpFallback) hrv(ctx context.Context, date time.Time) (any, error) {
	return f.get(ctx, "/hrv-service/hrv/"+date.Format(pkg.DateLayout), nil)
}

func (f *httpFallback) restingHeartRate(ctx context.Context, date time.Time) (any, error) {
	if err := f.requireDisplayName(); err != nil {
		return nil, err
	}
	day := date.Format(pkg.DateLayout)
	query := url.Values{}
	query.Set("fromDate", day)
	query.Set("untilDate", day)
	query.Set("metricId", restingHeartRateMetricID)
	return f.get(ctx, "/userstats-service/wellness/daily/"+url.PathEscape(f.displayName), query)
}

func (f *httpFallback) get(ctx context.Context, path string, query url.Values) (_ any, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "garmin.fallback.get")
	defer tracing.EndSpanWithErrCheck(span, &err)

	reqURL := f.baseURL + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("new fallback request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("NK", "NT")
	if f.authHeader != "" {
		req.Header.Set("Authorization", f.authHeader)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("garmin fallback %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read fallback response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("garmin fallback %s: request failed with status %d", path, resp.StatusCode)
	}
	if resp.StatusCode == http.StatusNoContent || len(body) == 0 {
		return nil, nil
	}

	var v any
	if err := json.Unmarshal(body, &v); err != nil {
		return nil, errUnexpectedResponse(err)
	}
	return v, nil
}

// errUnexpectedResponse keeps decoder messages ("invalid character ...") out of the
// substring classification.
func errUnexpectedResponse(cause error) error {
	return apperror.New(apperror.KindUnknown, http.StatusBadGateway, "unexpected response from Garmin", cause).
		WithSource(errorSource)
}

const (
	ActivityPageSize = 50
	MaxActivityPages = 20
)

type pageFetcher func(ctx context.Context, offset, limit int) ([]any, error)

// paginateActivities pages through the newest-first activity list and keeps items whose start
// day falls within [start, end]. It stops on an empty or short page, when the oldest item of a
// page predates start, or after MaxActivityPages. The early stop assumes newest-first ordering.
func paginateActivities(ctx context.Context, fetch pageFetcher, start, end time.Time) ([]any, error) {
	rangeEnd := end.AddDate(0, 0, 1)
	out := make([]any, 0)
	for page := 0; page < MaxActivityPages; page++ {
		items, err := fetch(ctx, page*ActivityPageSize, ActivityPageSize)
		if err != nil {
			return nil, err
		}
		if len(items) == 0 {
			break
		}

		var oldest time.Time
		for _, item := range items {
			raw, ok := item.(map[string]any)
			if !ok {
				continue
			}
			ts, ok := fitness.ActivityStartTime(raw)
			if !ok {
				continue
			}
			if oldest.IsZero() || ts.Before(oldest) {
				oldest = ts
			}
			if !ts.Before(start) && ts.Before(rangeEnd) {
				out = append(out, item)
			}
		}

		if len(items) < ActivityPageSize {
			break
		}
		if !oldest.IsZero() && oldest.Before(start) {
			break
		}
	}
	return out, nil
}
