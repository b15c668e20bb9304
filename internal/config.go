package internal

import (
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Storage drivers.
const (
	DriverFile   = "file"
	DriverSQLite = "sqlite"
)

// Config represents the application configuration.
type Config struct {
	App     ApplicationConfig `yaml:"app"`
	Storage StorageConfig     `yaml:"storage"`
	Backend BackendConfig     `yaml:"backend"`
	Search  SearchConfig      `yaml:"search"`
	Auth    AuthConfig        `yaml:"auth"`
	Reader  ReaderConfig      `yaml:"reader"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Storage.Validate(); err != nil {
		return err
	}
	if err := c.Backend.Validate(); err != nil {
		return err
	}
	if err := c.Search.Validate(); err != nil {
		return err
	}
	return c.Auth.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// StorageConfig selects where lists and settings are kept.
//
// The file driver writes lists.json and settings.json under Dir and, with
// Watch, reloads them when another process edits them. The sqlite driver
// keeps both stores in one database at SQLitePath.
type StorageConfig struct {
	Driver       string        `yaml:"driver"`
	Dir          string        `yaml:"dir"`
	SQLitePath   string        `yaml:"sqlite_path"`
	Watch        bool          `yaml:"watch"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// Validate validates the storage configuration.
func (c *StorageConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Driver, validation.Required, validation.In(DriverFile, DriverSQLite)),
		validation.Field(&c.Dir, validation.When(c.Driver == DriverFile, validation.Required)),
		validation.Field(&c.SQLitePath, validation.When(c.Driver == DriverSQLite, validation.Required)),
		validation.Field(&c.WriteTimeout, validation.Min(time.Duration(0))),
	)
}

// BackendConfig points at the file search backend.
type BackendConfig struct {
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
	Token   string        `yaml:"token"`
}

// Validate validates the backend configuration.
func (c *BackendConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.URL, validation.Required, is.URL),
		validation.Field(&c.Timeout, validation.Required, validation.Min(time.Millisecond)),
	)
}

// SearchConfig tunes the search coordinator and the pagination cursors.
type SearchConfig struct {
	Debounce       time.Duration `yaml:"debounce"`
	FetchCount     int           `yaml:"fetch_count"`
	HighlightsPage int           `yaml:"highlights_page"`
	// ScanLimit is the result count asked for when a moved file is looked
	// up by its creator tag.
	ScanLimit int `yaml:"scan_limit"`
}

// Validate validates the search configuration.
func (c *SearchConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Debounce, validation.Min(time.Duration(0)), validation.Max(10*time.Second)),
		validation.Field(&c.FetchCount, validation.Required, validation.Min(1)),
		validation.Field(&c.HighlightsPage, validation.Required, validation.Min(1)),
		validation.Field(&c.ScanLimit, validation.Required, validation.Min(1)),
	)
}

// ReaderConfig names the program used to open PDFs at a page when the
// user settings do not.
type ReaderConfig struct {
	Program string `yaml:"program"`
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local dev.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	// Normalise empty mode to "disabled" for backward compatibility.
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Storage: StorageConfig{
			Driver:       DriverFile,
			Dir:          "./data",
			SQLitePath:   "./folio.db",
			Watch:        true,
			WriteTimeout: 5 * time.Second,
		},
		Backend: BackendConfig{
			URL:     "http://127.0.0.1:8765",
			Timeout: 10 * time.Second,
		},
		Search: SearchConfig{
			Debounce:       100 * time.Millisecond,
			FetchCount:     50,
			HighlightsPage: 50,
			ScanLimit:      100000,
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}
