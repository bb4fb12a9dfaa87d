package onecai

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/naparnik-ai/copilot/session"
)

type Option func(*options)

type options struct {
	token               string
	baseURL             string
	timeout             time.Duration
	uiLanguage          string
	programmingLanguage string
	scriptLanguage      string

	maxSessions int
	sessionTTL  time.Duration
	observer    session.Observer

	httpClient *http.Client
	logger     *slog.Logger
	clock      func() time.Time
}

func defaultOptions() options {
	return options{
		baseURL:     "https://code.1c.ai",
		timeout:     30 * time.Second,
		uiLanguage:  "russian",
		maxSessions: 10,
		sessionTTL:  time.Hour,
	}
}

// WithToken sets the API access token. The remote service expects it raw in
// the Authorization header, without a scheme prefix.
func WithToken(token string) Option {
	return func(o *options) { o.token = token }
}

// WithBaseURL overrides the service base URL.
func WithBaseURL(url string) Option {
	return func(o *options) { o.baseURL = url }
}

// WithTimeout bounds the wait for the remote service to start responding.
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// WithUILanguage sets the interface language sent when opening conversations.
func WithUILanguage(lang string) Option {
	return func(o *options) { o.uiLanguage = lang }
}

// WithProgrammingLanguage sets the default programming language scope.
func WithProgrammingLanguage(lang string) Option {
	return func(o *options) { o.programmingLanguage = lang }
}

// WithScriptLanguage sets the default script language scope.
func WithScriptLanguage(lang string) Option {
	return func(o *options) { o.scriptLanguage = lang }
}

// WithSessionLimits bounds the conversation registry.
func WithSessionLimits(maxSessions int, ttl time.Duration) Option {
	return func(o *options) {
		o.maxSessions = maxSessions
		o.sessionTTL = ttl
	}
}

// WithSessionObserver overrides the registry lifecycle observer.
func WithSessionObserver(observer session.Observer) Option {
	return func(o *options) { o.observer = observer }
}

// WithHTTPClient provides a custom HTTP client, primarily for tests.
func WithHTTPClient(client *http.Client) Option {
	return func(o *options) { o.httpClient = client }
}

// WithLogger attaches a structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithClock overrides the registry time source, primarily for tests.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.clock = now }
}
