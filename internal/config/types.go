// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"time"
)

const (
	// ContainerEngineDocker prefers Docker for container isolation.
	ContainerEngineDocker ContainerEngine = "docker"
	// ContainerEnginePodman prefers Podman for container isolation.
	ContainerEnginePodman ContainerEngine = "podman"

	// ColorSchemeAuto detects the terminal color scheme automatically.
	ColorSchemeAuto ColorScheme = "auto"
	// ColorSchemeDark forces dark color scheme.
	ColorSchemeDark ColorScheme = "dark"
	// ColorSchemeLight forces light color scheme.
	ColorSchemeLight ColorScheme = "light"
)

var (
	// ErrInvalidContainerEngine is returned when a ContainerEngine value is not recognized.
	ErrInvalidContainerEngine = errors.New("invalid container engine")
	// ErrInvalidColorScheme is returned when a ColorScheme value is not recognized.
	ErrInvalidColorScheme = errors.New("invalid color scheme")
	// ErrInvalidConfigDuration is returned when a duration-valued config key does not parse.
	ErrInvalidConfigDuration = errors.New("invalid duration in config")
	// ErrInvalidConfig is the sentinel error wrapped by InvalidConfigError.
	ErrInvalidConfig = errors.New("invalid config")
)

type (
	// ContainerEngine is the preferred engine when a run asks for container
	// isolation without naming one. The other engine is still probed as a
	// fallback.
	ContainerEngine string

	// InvalidContainerEngineError is returned when a ContainerEngine value is not
	// recognized. It wraps ErrInvalidContainerEngine for errors.Is() compatibility.
	InvalidContainerEngineError struct {
		Value ContainerEngine
	}

	// ColorScheme specifies the terminal color scheme preference.
	ColorScheme string

	// InvalidColorSchemeError is returned when a ColorScheme value is not
	// recognized. It wraps ErrInvalidColorScheme for errors.Is() compatibility.
	InvalidColorSchemeError struct {
		Value ColorScheme
	}

	// InvalidConfigError is returned when a Config has invalid fields. It wraps
	// ErrInvalidConfig for errors.Is() compatibility and collects field-level
	// validation errors from all sub-components.
	InvalidConfigError struct {
		FieldErrors []error
	}

	// Config holds the application configuration: everything a run needs
	// that the matrix file did not set itself. Matrix file values win over
	// these, flags win over both.
	Config struct {
		// Concurrency caps how many cells run at once.
		Concurrency int `json:"concurrency" mapstructure:"concurrency"`
		// FailFast stops scheduling new cells after the first failure.
		FailFast bool `json:"fail_fast" mapstructure:"fail_fast"`
		// PerCommandTimeout bounds each command as a Go duration string.
		// Empty means unbounded.
		PerCommandTimeout string `json:"per_command_timeout" mapstructure:"per_command_timeout"`
		// GracePeriod is how long a timed-out command gets between SIGTERM
		// and SIGKILL.
		GracePeriod string `json:"grace_period" mapstructure:"grace_period"`
		// ContainerEngine is the preferred engine for container isolation.
		ContainerEngine ContainerEngine `json:"container_engine" mapstructure:"container_engine"`
		// UI configures the terminal output.
		UI UIConfig `json:"ui" mapstructure:"ui"`
		// Store configures the optional artifact upload target.
		Store StoreConfig `json:"store" mapstructure:"store"`
		// Serve configures the optional status server.
		Serve ServeConfig `json:"serve" mapstructure:"serve"`
	}

	// UIConfig configures the user interface.
	UIConfig struct {
		// ColorScheme sets the color scheme
		ColorScheme ColorScheme `json:"color_scheme" mapstructure:"color_scheme"`
		// Verbose enables verbose output
		Verbose bool `json:"verbose" mapstructure:"verbose"`
	}

	// StoreConfig configures the S3-compatible artifact store. Defined
	// locally to avoid coupling config to internal/store; the orchestrator
	// maps to store.Config at the boundary. Credentials are named env vars
	// so config files never carry secrets.
	StoreConfig struct {
		// Enabled turns artifact upload on.
		Enabled bool `json:"enabled" mapstructure:"enabled"`
		// Endpoint is the store's host:port, e.g. "minio.internal:9000".
		Endpoint string `json:"endpoint" mapstructure:"endpoint"`
		// Bucket receives report and log objects keyed by run ID.
		Bucket string `json:"bucket" mapstructure:"bucket"`
		// Region is optional and passed through to bucket creation.
		Region string `json:"region" mapstructure:"region"`
		// AccessKeyEnv and SecretKeyEnv name the env vars holding credentials.
		AccessKeyEnv string `json:"access_key_env" mapstructure:"access_key_env"`
		SecretKeyEnv string `json:"secret_key_env" mapstructure:"secret_key_env"`
		// UseSSL enables TLS to the endpoint.
		UseSSL bool `json:"use_ssl" mapstructure:"use_ssl"`
	}

	// ServeConfig configures the SSH status server.
	ServeConfig struct {
		// Addr is the listen address.
		Addr string `json:"addr" mapstructure:"addr"`
		// HostKeyPath overrides where the server host key lives. Empty
		// means <config dir>/ssh_host_key.
		HostKeyPath string `json:"host_key_path" mapstructure:"host_key_path"`
		// Token, when set, is required from clients as the SSH password.
		// Empty generates a fresh token per run.
		Token string `json:"token" mapstructure:"token"`
	}
)

// Error implements the error interface for InvalidContainerEngineError.
func (e *InvalidContainerEngineError) Error() string {
	return fmt.Sprintf("invalid container engine %q (valid: docker, podman)", e.Value)
}

// Unwrap returns the sentinel error for errors.Is() compatibility.
func (e *InvalidContainerEngineError) Unwrap() error {
	return ErrInvalidContainerEngine
}

// String returns the string representation of the ContainerEngine.
func (ce ContainerEngine) String() string { return string(ce) }

// IsValid returns whether the ContainerEngine is one of the defined engine types,
// and a list of validation errors if it is not.
func (ce ContainerEngine) IsValid() (bool, []error) {
	switch ce {
	case ContainerEngineDocker, ContainerEnginePodman:
		return true, nil
	default:
		return false, []error{&InvalidContainerEngineError{Value: ce}}
	}
}

// Error implements the error interface for InvalidColorSchemeError.
func (e *InvalidColorSchemeError) Error() string {
	return fmt.Sprintf("invalid color scheme %q (valid: auto, dark, light)", e.Value)
}

// Unwrap returns the sentinel error for errors.Is() compatibility.
func (e *InvalidColorSchemeError) Unwrap() error {
	return ErrInvalidColorScheme
}

// String returns the string representation of the ColorScheme.
func (cs ColorScheme) String() string { return string(cs) }

// IsValid returns whether the ColorScheme is one of the defined color schemes,
// and a list of validation errors if it is not.
func (cs ColorScheme) IsValid() (bool, []error) {
	switch cs {
	case ColorSchemeAuto, ColorSchemeDark, ColorSchemeLight:
		return true, nil
	default:
		return false, []error{&InvalidColorSchemeError{Value: cs}}
	}
}

// Error implements the error interface for InvalidConfigError.
func (e *InvalidConfigError) Error() string {
	return fmt.Sprintf("invalid config: %d field error(s)", len(e.FieldErrors))
}

// Unwrap returns ErrInvalidConfig for errors.Is() compatibility.
func (e *InvalidConfigError) Unwrap() error { return ErrInvalidConfig }

// PerCommandTimeoutDuration parses the per-command timeout. Zero means
// unbounded.
func (c *Config) PerCommandTimeoutDuration() (time.Duration, error) {
	return parseConfigDuration("per_command_timeout", c.PerCommandTimeout)
}

// GracePeriodDuration parses the SIGTERM-to-SIGKILL grace period.
func (c *Config) GracePeriodDuration() (time.Duration, error) {
	return parseConfigDuration("grace_period", c.GracePeriod)
}

func parseConfigDuration(key, value string) (time.Duration, error) {
	if value == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%w: %s %q: %v", ErrInvalidConfigDuration, key, value, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%w: %s %q must not be negative", ErrInvalidConfigDuration, key, value)
	}
	return d, nil
}

// IsValid returns whether the Config has valid fields. It delegates to
// ContainerEngine.IsValid(), UI.ColorScheme.IsValid(), and the duration
// parsers; numeric and bool fields that the schema already bounds need no
// further checks here.
func (c Config) IsValid() (bool, []error) {
	var errs []error
	if valid, fieldErrs := c.ContainerEngine.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if valid, fieldErrs := c.UI.ColorScheme.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if c.Concurrency < 1 {
		errs = append(errs, fmt.Errorf("%w: concurrency %d must be at least 1", ErrInvalidConfig, c.Concurrency))
	}
	if _, err := c.PerCommandTimeoutDuration(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.GracePeriodDuration(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return false, []error{&InvalidConfigError{FieldErrors: errs}}
	}
	return true, nil
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Concurrency:       1,
		FailFast:          true,
		PerCommandTimeout: "",
		GracePeriod:       "5s",
		ContainerEngine:   ContainerEngineDocker,
		UI: UIConfig{
			ColorScheme: ColorSchemeAuto,
			Verbose:     false,
		},
		Store: StoreConfig{
			Enabled:      false,
			Bucket:       "matrun-runs",
			AccessKeyEnv: "MATRUN_STORE_ACCESS_KEY",
			SecretKeyEnv: "MATRUN_STORE_SECRET_KEY",
			UseSSL:       true,
		},
		Serve: ServeConfig{
			Addr: "127.0.0.1:2222",
		},
	}
}
