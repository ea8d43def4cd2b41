package config

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/spf13/viper"
)

// binding ties a viper key to the environment variables that set it.
type binding struct {
	key      string // e.g. "server.port"
	env      []string
	required bool
	typ      reflect.Type
}

// Load reads configuration from environment variables through viper.
// The env, envAlt and default struct tags declare the bindings. Unset
// values take their default; empty variables count as unset.
func Load() (*Config, error) {
	v := viper.New()

	bindings, err := bindStruct(v, reflect.TypeOf(Config{}), "")
	if err != nil {
		return nil, fmt.Errorf("config load: %w", err)
	}
	for _, b := range bindings {
		if b.required && strings.TrimSpace(v.GetString(b.key)) == "" {
			return nil, fmt.Errorf("config load: required environment variable %s is not set", b.env[0])
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config load: %w", invalidValue(v, bindings, err))
	}
	cfg.Security.AdminTokens = compact(cfg.Security.AdminTokens)
	cfg.Security.TrustedProxies = compact(cfg.Security.TrustedProxies)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// bindStruct registers every tagged field of t under prefix. Keys are the
// lowercased field path, which Unmarshal matches case-insensitively.
func bindStruct(v *viper.Viper, t reflect.Type, prefix string) ([]binding, error) {
	var out []binding

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}

		key := strings.ToLower(field.Name)
		if prefix != "" {
			key = prefix + "." + key
		}

		if field.Type.Kind() == reflect.Struct {
			nested, err := bindStruct(v, field.Type, key)
			if err != nil {
				return nil, err
			}
			out = append(out, nested...)
			continue
		}

		envName := field.Tag.Get("env")
		if envName == "" {
			continue
		}
		names := []string{envName}
		if alt := field.Tag.Get("envAlt"); alt != "" {
			names = append(names, alt)
		}

		if err := v.BindEnv(append([]string{key}, names...)...); err != nil {
			return nil, fmt.Errorf("bind %s: %w", envName, err)
		}
		if def := field.Tag.Get("default"); def != "" {
			v.SetDefault(key, def)
		}

		out = append(out, binding{
			key:      key,
			env:      names,
			required: field.Tag.Get("required") == "true",
			typ:      field.Type,
		})
	}

	return out, nil
}

// invalidValue decodes each key on its own to name the variable behind a
// failed Unmarshal.
func invalidValue(v *viper.Viper, bindings []binding, err error) error {
	for _, b := range bindings {
		target := reflect.New(b.typ).Interface()
		if kerr := v.UnmarshalKey(b.key, target); kerr != nil {
			return fmt.Errorf("invalid value for %s=%q: %w", b.env[0], v.GetString(b.key), kerr)
		}
	}
	return err
}

// compact trims comma-separated entries and drops empty ones.
func compact(values []string) []string {
	out := make([]string, 0, len(values))
	for _, s := range values {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// Validate checks that the configuration is valid.
// Returns an error describing all validation failures.
func (c *Config) Validate() error {
	var errs []string

	// Database validation
	if c.Database.URL == "" {
		errs = append(errs, "DATABASE_URL is required")
	}
	if c.Database.MaxConns <= 0 {
		errs = append(errs, "DB_MAX_CONNS must be positive")
	}
	if c.Database.MinConns < 0 {
		errs = append(errs, "DB_MIN_CONNS must be non-negative")
	}
	if c.Database.MaxConns < c.Database.MinConns {
		errs = append(errs, fmt.Sprintf("DB_MAX_CONNS (%d) must be >= DB_MIN_CONNS (%d)",
			c.Database.MaxConns, c.Database.MinConns))
	}

	// Server validation
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("SERVER_PORT (%d) must be 1-65535", c.Server.Port))
	}
	if c.Server.ReadTimeout < 0 {
		errs = append(errs, "SERVER_READ_TIMEOUT must be non-negative")
	}
	if c.Server.ShutdownTimeout <= 0 {
		errs = append(errs, "SERVER_SHUTDOWN_TIMEOUT must be positive")
	}
	if c.Server.MaxUploadSize <= 0 {
		errs = append(errs, "SERVER_MAX_UPLOAD_SIZE must be positive")
	}

	// Sync validation
	if c.Sync.MaxConcurrent <= 0 {
		errs = append(errs, "SYNC_MAX_CONCURRENT must be positive")
	}
	if c.Sync.MaxWait <= 0 {
		errs = append(errs, "SYNC_MAX_WAIT must be positive")
	}

	// Rate limit validation
	if c.Rate.Enabled && c.Rate.RequestsPerMinute <= 0 {
		errs = append(errs, "RATE_LIMIT_REQUESTS_PER_MINUTE must be positive when rate limiting is enabled")
	}
	if c.Rate.Enabled && c.Rate.SyncLimit <= 0 {
		errs = append(errs, "RATE_LIMIT_SYNC must be positive when rate limiting is enabled")
	}

	// Security validation
	if c.Security.RequireAuth && len(c.Security.AdminTokens) == 0 {
		errs = append(errs, "REQUIRE_AUTH is true but ADMIN_TOKENS is empty; configure at least one token or disable auth")
	}

	// Logging validation
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, fmt.Sprintf("LOG_LEVEL (%q) must be one of: debug, info, warn, error", c.Logging.Level))
	}

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		errs = append(errs, fmt.Sprintf("LOG_FORMAT (%q) must be one of: text, json", c.Logging.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

// String returns a safe string representation of the config for logging.
// The database URL and admin tokens are masked.
func (c *Config) String() string {
	var b strings.Builder
	b.WriteString("Config{")
	fmt.Fprintf(&b, "Server: {Addr: %q, MaxUploadSize: %d}, ", c.Server.Addr(), c.Server.MaxUploadSize)
	fmt.Fprintf(&b, "Database: {URL: [MASKED], MaxConns: %d, MinConns: %d}, ",
		c.Database.MaxConns, c.Database.MinConns)
	fmt.Fprintf(&b, "Sync: {MaxConcurrent: %d, MaxWait: %s}, ", c.Sync.MaxConcurrent, c.Sync.MaxWait)
	fmt.Fprintf(&b, "Rate: {Enabled: %v, RequestsPerMinute: %d, SyncLimit: %d}, ",
		c.Rate.Enabled, c.Rate.RequestsPerMinute, c.Rate.SyncLimit)
	fmt.Fprintf(&b, "Security: {RequireAuth: %v, AdminTokens: %d configured}, ",
		c.Security.RequireAuth, len(c.Security.AdminTokens))
	fmt.Fprintf(&b, "Logging: {Level: %q, Format: %q}, ", c.Logging.Level, c.Logging.Format)
	fmt.Fprintf(&b, "Metrics: {Enabled: %v}", c.Metrics.Enabled)
	b.WriteString("}")
	return b.String()
}
