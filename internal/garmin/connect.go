package garmin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"

	log "github.com/sirupsen/logrus"
	"go.uber.org/multierr"

	"github.com/2beens/runcoach/internal/apperror"
	"github.com/2beens/runcoach/internal/telemetry/tracing"
)

type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Constructor is one candidate way to build an external client. Fn is any func; it is tried
// with no arguments, with (email, password) and with an object credential.
type Constructor struct {
	Name string
	Fn   any
}

type Option func(*options)

type options struct {
	constructors []Constructor
	capabilities []string
	sessionData  json.RawMessage
	httpClient   *http.Client
	onFallback   func(op string)
}

func WithConstructors(constructors ...Constructor) Option {
	return func(o *options) {
		o.constructors = append(o.constructors, constructors...)
	}
}

// WithCapabilities reuses previously detected capabilities instead of probing the client.
func WithCapabilities(capabilities []string) Option {
	return func(o *options) {
		o.capabilities = capabilities
	}
}

// WithSessionData makes Connect try to resume a stored session before logging in.
func WithSessionData(data json.RawMessage) Option {
	return func(o *options) {
		o.sessionData = data
	}
}

// WithHTTPClient sets the client used for the direct HTTP fallback when the external client
// does not expose its own.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) {
		o.httpClient = c
	}
}

// WithFallbackHook is called with the operation name every time the HTTP fallback is used.
func WithFallbackHook(fn func(op string)) Option {
	return func(o *options) {
		o.onFallback = fn
	}
}

func credentialShapes(creds Credentials) [][]any {
	return [][]any{
		{},
		{creds.Email, creds.Password},
		{map[string]any{
			"email":    creds.Email,
			"username": creds.Email,
			"password": creds.Password,
		}},
	}
}

// Connect builds and logs in an external client, trying every constructor with every argument
// shape. The first construction and login pair that succeeds wins. When all fail, the last
// failure is classified and returned.
func Connect(ctx context.Context, creds Credentials, opts ...Option) (_ *Adapter, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "garmin.connect")
	defer tracing.EndSpanWithErrCheck(span, &err)

	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if len(o.constructors) == 0 {
		return nil, apperror.Configuration("no Garmin client constructors configured", nil).WithSource(errorSource)
	}

	shapes := credentialShapes(creds)
	var attempts error
	var lastErr error
	record := func(ctorName string, err error) {
		attempts = multierr.Append(attempts, fmt.Errorf("%s: %w", ctorName, err))
		lastErr = err
	}

	for _, ctor := range o.constructors {
		fn := reflect.ValueOf(ctor.Fn)
		if fn.Kind() != reflect.Func || fn.IsNil() {
			record(ctor.Name, errors.New("constructor is not a function"))
			continue
		}

		for i, shape := range shapes {
			result, err := callFunc(ctx, fn, shape)
			if errors.Is(err, errShapeMismatch) {
				continue
			}
			if err != nil {
				record(ctor.Name, err)
				continue
			}
			if result == nil {
				record(ctor.Name, errors.New("constructor returned no client"))
				continue
			}

			if !resumeSession(ctx, result, o.sessionData) {
				if err := login(ctx, result, shapes, i > 0); err != nil {
					record(ctor.Name, err)
					continue
				}
			}

			adapter := newAdapter(result, o)
			log.Debugf("garmin client [%s] ready, capabilities: %v", ctor.Name, adapter.Capabilities())
			return adapter, nil
		}
	}

	if lastErr == nil {
		return nil, apperror.Configuration("no Garmin client constructor matched a supported signature", nil).
			WithSource(errorSource)
	}
	log.Debugf("all garmin client attempts failed: %s", attempts)
	return nil, Classify(lastErr)
}

// login tries every login alias with every argument shape. A client without any login method
// is accepted only when its constructor already received the credentials.
func login(ctx context.Context, client any, shapes [][]any, constructedWithCredentials bool) error {
	s := newSurface(client)
	found := false
	var lastErr error
	for _, alias := range dedupeAliases(loginAliases) {
		fn, ok := s.method(alias)
		if !ok {
			continue
		}
		found = true
		for _, shape := range shapes {
			_, err := callFunc(ctx, fn, shape)
			if errors.Is(err, errShapeMismatch) {
				continue
			}
			if err != nil {
				lastErr = err
				continue
			}
			return nil
		}
	}

	if !found {
		if constructedWithCredentials {
			return nil
		}
		return errors.New("client exposes no login method")
	}
	if lastErr == nil {
		return errors.New("login method signature not supported")
	}
	return lastErr
}

func resumeSession(ctx context.Context, client any, sessionData json.RawMessage) bool {
	if len(sessionData) == 0 {
		return false
	}

	var decoded any
	_ = json.Unmarshal(sessionData, &decoded)
	shapes := [][]any{
		{sessionData},
		{string(sessionData)},
	}
	if decoded != nil {
		shapes = append(shapes, []any{decoded})
	}

	s := newSurface(client)
	for _, alias := range dedupeAliases(resumeAliases) {
		fn, ok := s.method(alias)
		if !ok {
			continue
		}
		for _, shape := range shapes {
			_, err := callFunc(ctx, fn, shape)
			if errors.Is(err, errShapeMismatch) {
				continue
			}
			if err != nil {
				log.Debugf("garmin session resume via %s failed, will log in: %s", alias, err)
				return false
			}
			return true
		}
	}
	return false
}
