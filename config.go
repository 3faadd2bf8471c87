package gigauth

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/MrEthical07/gigauth/password"
	"github.com/MrEthical07/gigauth/session"
	"github.com/joeshaw/envdecode"
)

// Config holds every tunable of the client and coordinator. Obtain one from
// [DefaultConfig] or [ConfigFromEnv], adjust it, and pass it to
// [Builder.WithConfig]. The Builder takes a copy.
type Config struct {
	Transport TransportConfig
	Endpoints EndpointsConfig
	Session   SessionConfig
	Password  PasswordConfig
	Log       LogConfig
	Metrics   MetricsConfig
}

/*
====================================
TRANSPORT CONFIG
====================================
*/

// TransportConfig controls how requests are sent.
type TransportConfig struct {
	// BaseURL is the API root every request path is resolved against.
	BaseURL string
	// Timeout bounds each call that does not set its own.
	Timeout time.Duration
	// RefreshTimeout bounds the shared refresh call. Zero uses Timeout.
	RefreshTimeout time.Duration
	UserAgent      string
	// MaxResponseBytes caps how much of a response body is read.
	MaxResponseBytes int64
	// ReplayAfterRefresh resends a request once with the new credential when
	// the refresh it triggered succeeded.
	ReplayAfterRefresh bool
}

/*
====================================
ENDPOINTS CONFIG
====================================
*/

// EndpointsConfig names the backend's credential endpoints, relative to
// TransportConfig.BaseURL.
type EndpointsConfig struct {
	Login    string
	Register string
	Refresh  string
	Logout   string
	Verify   string

	// IdentifierField is the JSON field the login identifier is sent in.
	IdentifierField string
	// RefreshField is the JSON field the refresh credential is sent in.
	RefreshField string
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig controls persistence and session behavior.
type SessionConfig struct {
	// KeyPrefix namespaces the persisted keys.
	KeyPrefix string
	// WatchExternal adopts changes other processes make to a watchable store.
	WatchExternal bool
	// LoginAfterRegister logs in with the submitted credentials when the
	// registration response carries none.
	LoginAfterRegister bool
}

// PasswordConfig holds the client-side registration rules.
type PasswordConfig struct {
	MinLength int
}

// LogConfig controls the traffic log.
type LogConfig struct {
	// Debug emits one structured record per request and per transition.
	Debug      bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls in-process counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// DefaultConfig returns the configuration used when none is supplied.
func DefaultConfig() Config {
	return Config{
		Transport: TransportConfig{
			BaseURL:            "http://localhost:5000/api",
			Timeout:            15 * time.Second,
			UserAgent:          "gigauth/1",
			MaxResponseBytes:   4 << 20,
			ReplayAfterRefresh: true,
		},
		Endpoints: EndpointsConfig{
			Login:           "/auth/login",
			Register:        "/auth/register",
			Refresh:         "/auth/refresh",
			Logout:          "/auth/logout",
			Verify:          "/auth/verify",
			IdentifierField: "email",
			RefreshField:    "refreshToken",
		},
		Session: SessionConfig{
			KeyPrefix:          session.DefaultPrefix,
			WatchExternal:      true,
			LoginAfterRegister: true,
		},
		Password: PasswordConfig{
			MinLength: 6,
		},
		Log: LogConfig{
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

type envConfig struct {
	BaseURL     string        `env:"GIGAUTH_BASE_URL"`
	Timeout     time.Duration `env:"GIGAUTH_TIMEOUT"`
	Debug       bool          `env:"GIGAUTH_DEBUG"`
	KeyPrefix   string        `env:"GIGAUTH_KEY_PREFIX"`
	MinPassword int           `env:"GIGAUTH_MIN_PASSWORD"`
}

// ConfigFromEnv returns [DefaultConfig] overlaid with GIGAUTH_BASE_URL,
// GIGAUTH_TIMEOUT, GIGAUTH_DEBUG, GIGAUTH_KEY_PREFIX and GIGAUTH_MIN_PASSWORD.
// Unset variables keep their defaults. The result is validated.
func ConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()

	var env envConfig
	if err := envdecode.Decode(&env); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return Config{}, fmt.Errorf("gigauth: decode environment: %w", err)
	}
	if env.BaseURL != "" {
		cfg.Transport.BaseURL = env.BaseURL
	}
	if env.Timeout != 0 {
		cfg.Transport.Timeout = env.Timeout
	}
	if env.Debug {
		cfg.Log.Debug = true
	}
	if env.KeyPrefix != "" {
		cfg.Session.KeyPrefix = env.KeyPrefix
	}
	if env.MinPassword != 0 {
		cfg.Password.MinLength = env.MinPassword
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

/*
====================================
VALIDATION
====================================
*/

// Validate describes the validate operation and its observable behavior.
//
// Validate returns the first violated constraint. It does not mutate c.
func (c *Config) Validate() error {
	// Transport
	u, err := url.Parse(strings.TrimSpace(c.Transport.BaseURL))
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return errors.New("Transport BaseURL must be an absolute http(s) URL")
	}
	if c.Transport.Timeout <= 0 || c.Transport.Timeout > 5*time.Minute {
		return errors.New("Transport Timeout must be in (0, 5m]")
	}
	if c.Transport.RefreshTimeout < 0 || c.Transport.RefreshTimeout > 5*time.Minute {
		return errors.New("Transport RefreshTimeout must be in [0, 5m]")
	}
	if c.Transport.MaxResponseBytes <= 0 {
		return errors.New("Transport MaxResponseBytes must be > 0")
	}

	// Endpoints
	for _, ep := range []struct{ name, path string }{
		{"Login", c.Endpoints.Login},
		{"Register", c.Endpoints.Register},
		{"Refresh", c.Endpoints.Refresh},
		{"Logout", c.Endpoints.Logout},
		{"Verify", c.Endpoints.Verify},
	} {
		if strings.TrimSpace(ep.path) == "" {
			return fmt.Errorf("Endpoints %s must not be empty", ep.name)
		}
	}
	if strings.TrimSpace(c.Endpoints.IdentifierField) == "" {
		return errors.New("Endpoints IdentifierField must not be empty")
	}
	if strings.TrimSpace(c.Endpoints.RefreshField) == "" {
		return errors.New("Endpoints RefreshField must not be empty")
	}

	// Session
	if strings.TrimSpace(c.Session.KeyPrefix) == "" {
		return errors.New("Session KeyPrefix must not be empty")
	}

	// Password
	if c.Password.MinLength < 1 || c.Password.MinLength > 128 {
		return errors.New("Password MinLength must be in [1, 128]")
	}

	// Log
	if c.Log.BufferSize <= 0 {
		return errors.New("Log BufferSize must be > 0")
	}

	return nil
}

func (c Config) refreshTimeout() time.Duration {
	if c.Transport.RefreshTimeout > 0 {
		return c.Transport.RefreshTimeout
	}
	return c.Transport.Timeout
}

func passwordPolicy(c PasswordConfig) password.Policy {
	return password.Policy{MinLength: c.MinLength}
}
