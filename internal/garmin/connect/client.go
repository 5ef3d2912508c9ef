// Package connect is a small Garmin Connect HTTP client: SSO ticket login, token exchange,
// activity search, sleep data and workout upload. It has no HRV, resting heart rate or race
// prediction calls; the adapter reaches those over its direct HTTP fallback.
package connect

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/2beens/runcoach/internal/telemetry/tracing"
)

const (
	DefaultBaseURL = "https://connectapi.garmin.com"
	DefaultSSOURL  = "https://sso.garmin.com/sso"

	searchPageSize = 100
	maxSearchPages = 20
)

var (
	ErrNotLoggedIn    = errors.New("garmin client has no session, login first")
	ErrSessionExpired = errors.New("garmin session expired")

	ticketRegex = regexp.MustCompile(`embed\?ticket=([^"&]+)`)
)

type Session struct {
	AccessToken string    `json:"accessToken"`
	TokenType   string    `json:"tokenType"`
	ExpiresAt   time.Time `json:"expiresAt"`
	DisplayName string    `json:"displayName"`
}

func (s *Session) valid(now time.Time) bool {
	return s != nil && s.AccessToken != "" && now.Before(s.ExpiresAt)
}

// Factory carries the endpoints and transport shared by all clients it creates.
type Factory struct {
	BaseURL    string
	SSOURL     string
	HTTPClient *http.Client
}

// New creates a client for one account. It does not touch the network, call Login or
// ResumeSession next.
func (f Factory) New(email, password string) (*Client, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return nil, errors.New("garmin email and password are required")
	}
	baseURL := f.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	ssoURL := f.SSOURL
	if ssoURL == "" {
		ssoURL = DefaultSSOURL
	}
	httpClient := f.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		ssoURL:     strings.TrimRight(ssoURL, "/"),
		httpClient: httpClient,
		email:      email,
		password:   password,
		now:        time.Now,
	}, nil
}

type Client struct {
	baseURL    string
	ssoURL     string
	httpClient *http.Client
	email      string
	password   string
	now        func() time.Time

	mu      sync.RWMutex
	session *Session
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) HTTPClient() *http.Client {
	return c.httpClient
}

func (c *Client) DisplayName() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.session == nil {
		return ""
	}
	return c.session.DisplayName
}

func (c *Client) AuthHeader() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.session == nil || c.session.AccessToken == "" {
		return ""
	}
	tokenType := c.session.TokenType
	if tokenType == "" {
		tokenType = "Bearer"
	}
	return tokenType + " " + c.session.AccessToken
}

// Login runs the SSO sign-in, exchanges the service ticket for an access token and resolves
// the account's display name.
func (c *Client) Login(ctx context.Context) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "garmin.connect.login")
	defer tracing.EndSpanWithErrCheck(span, &err)

	ticket, err := c.signIn(ctx)
	if err != nil {
		return err
	}

	session, err := c.exchangeTicket(ctx, ticket)
	if err != nil {
		return err
	}
	c.setSession(session)

	profile, err := c.getJSON(ctx, "/userprofile-service/socialProfile", nil)
	if err != nil {
		return fmt.Errorf("social profile: %w", err)
	}
	if m, ok := profile.(map[string]any); ok {
		if name, ok := m["displayName"].(string); ok {
			c.mu.Lock()
			c.session.DisplayName = name
			c.mu.Unlock()
		}
	}

	log.Debugf("garmin login ok for display name [%s]", c.DisplayName())
	return nil
}

func (c *Client) signIn(ctx context.Context) (string, error) {
	form := url.Values{}
	form.Set("username", c.email)
	form.Set("password", c.password)
	form.Set("embed", "true")
	form.Set("_eventId", "submit")

	query := url.Values{}
	query.Set("service", c.ssoURL+"/embed")
	query.Set("embed", "true")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.ssoURL+"/signin?"+query.Encode(), strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("sso signin: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read sso response: %w", err)
	}
	if err := statusError("sso signin", resp.StatusCode); err != nil {
		return "", err
	}

	match := ticketRegex.FindSubmatch(body)
	if match == nil {
		return "", errors.New("authentication failed, sso returned no service ticket")
	}
	return string(match[1]), nil
}

func (c *Client) exchangeTicket(ctx context.Context, ticket string) (*Session, error) {
	form := url.Values{}
	form.Set("ticket", ticket)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/oauth-service/oauth/exchange/user/2.0", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token exchange: %w", err)
	}
	defer resp.Body.Close()

	if err := statusError("token exchange", resp.StatusCode); err != nil {
		return nil, err
	}

	var token struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		log.Debugf("garmin token exchange decode: %s", err)
		return nil, errors.New("token exchange: malformed json response")
	}
	if token.AccessToken == "" {
		return nil, errors.New("authentication failed, empty access token")
	}
	if token.ExpiresIn <= 0 {
		token.ExpiresIn = 3600
	}
	return &Session{
		AccessToken: token.AccessToken,
		TokenType:   token.TokenType,
		ExpiresAt:   c.now().Add(time.Duration(token.ExpiresIn) * time.Second),
	}, nil
}

func (c *Client) setSession(s *Session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.session = s
}

// ResumeSession restores an exported session. Expired sessions are rejected so the caller
// falls back to Login.
func (c *Client) ResumeSession(data json.RawMessage) error {
	s := &Session{}
	if err := json.Unmarshal(data, s); err != nil {
		return fmt.Errorf("decode stored session: %w", err)
	}
	if !s.valid(c.now()) {
		return ErrSessionExpired
	}
	c.setSession(s)
	return nil
}

func (c *Client) ExportSession() (json.RawMessage, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.session == nil {
		return nil, ErrNotLoggedIn
	}
	return json.Marshal(c.session)
}

// GetActivities returns one page of the newest-first activity list.
func (c *Client) GetActivities(ctx context.Context, start, limit int) ([]any, error) {
	query := url.Values{}
	query.Set("start", strconv.Itoa(start))
	query.Set("limit", strconv.Itoa(limit))
	return c.getList(ctx, "/activitylist-service/activities/search/activities", query)
}

// GetActivitiesByDate searches activities between two YYYY-MM-DD dates, both inclusive.
func (c *Client) GetActivitiesByDate(ctx context.Context, startDate, endDate string) ([]any, error) {
	all := make([]any, 0)
	for page := 0; page < maxSearchPages; page++ {
		query := url.Values{}
		query.Set("startDate", startDate)
		query.Set("endDate", endDate)
		query.Set("start", strconv.Itoa(page*searchPageSize))
		query.Set("limit", strconv.Itoa(searchPageSize))

		items, err := c.getList(ctx, "/activitylist-service/activities/search/activities", query)
		if err != nil {
			return nil, err
		}
		all = append(all, items...)
		if len(items) < searchPageSize {
			break
		}
	}
	return all, nil
}

func (c *Client) GetSleepData(ctx context.Context, date string) (any, error) {
	displayName := c.DisplayName()
	if displayName == "" {
		return nil, ErrNotLoggedIn
	}
	query := url.Values{}
	query.Set("date", date)
	query.Set("nonSleepBufferMinutes", "60")
	return c.getJSON(ctx, "/wellness-service/wellness/dailySleepData/"+url.PathEscape(displayName), query)
}

func (c *Client) UploadWorkout(ctx context.Context, workout map[string]any) (any, error) {
	body, err := json.Marshal(workout)
	if err != nil {
		return nil, fmt.Errorf("encode workout: %w", err)
	}
	return c.doJSON(ctx, http.MethodPost, "/workout-service/workout", nil, body)
}

func (c *Client) getList(ctx context.Context, path string, query url.Values) ([]any, error) {
	res, err := c.getJSON(ctx, path, query)
	if err != nil {
		return nil, err
	}
	switch r := res.(type) {
	case nil:
		return []any{}, nil
	case []any:
		return r, nil
	default:
		return nil, fmt.Errorf("%s: expected a list, got %T", path, res)
	}
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values) (any, error) {
	return c.doJSON(ctx, http.MethodGet, path, query, nil)
}

func (c *Client) doJSON(ctx context.Context, method, path string, query url.Values, body []byte) (_ any, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "garmin.connect.request")
	defer tracing.EndSpanWithErrCheck(span, &err)

	authHeader := c.AuthHeader()
	if authHeader == "" {
		return nil, ErrNotLoggedIn
	}

	reqURL := c.baseURL + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}
	var reqBody io.Reader
	if body != nil {
		reqBody = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, reqURL, reqBody)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", authHeader)
	req.Header.Set("NK", "NT")
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if err := statusError(path, resp.StatusCode); err != nil {
		return nil, err
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if len(bytes.TrimSpace(respBody)) == 0 {
		return nil, nil
	}
	var v any
	if err := json.Unmarshal(respBody, &v); err != nil {
		// decoder messages read like "invalid character", keep them out of the classified error
		log.Debugf("garmin %s decode: %s", path, err)
		return nil, fmt.Errorf("%s: malformed json response", path)
	}
	return v, nil
}

// statusError keeps the status code in the message, the adapter classifies on it.
func statusError(what string, status int) error {
	switch {
	case status >= 200 && status <= 299:
		return nil
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return fmt.Errorf("%s: authentication failed (status %d)", what, status)
	case status == http.StatusTooManyRequests:
		return fmt.Errorf("%s: too many requests (status %d)", what, status)
	default:
		return fmt.Errorf("%s: unexpected status %d", what, status)
	}
}
