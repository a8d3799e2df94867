package shared

import (
	_ "embed"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"golang.org/x/oauth2"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Catalog     CatalogConfig     `toml:"catalog"`
	Credentials CredentialsConfig `toml:"credentials"`
	Acquisition AcquisitionConfig `toml:"acquisition"`
	Rescan      RescanConfig      `toml:"rescan"`
	Resolver    ResolverConfig    `toml:"resolver"`
	Database    DatabaseConfig    `toml:"database"`
	Server      ServerConfig      `toml:"server"`
}

// CatalogConfig describes the Subsonic-compatible media server.
type CatalogConfig struct {
	BaseURL           string   `toml:"base_url"`
	Port              int      `toml:"port"`
	APIKey            string   `toml:"api_key"`
	APIVersion        string   `toml:"api_version"`
	AppName           string   `toml:"app_name"`
	BasePath          string   `toml:"base_path"`
	Timeout           Duration `toml:"timeout"`
	RequestsPerSecond float64  `toml:"requests_per_second"`
}

// CredentialsConfig contains source service credentials.
type CredentialsConfig struct {
	Spotify SpotifyConfig `toml:"spotify"`
}

// SpotifyConfig contains Spotify API credentials and, after `spotify auth`, the stored user token.
type SpotifyConfig struct {
	ClientID     string    `toml:"client_id"`
	ClientSecret string    `toml:"client_secret"`
	RedirectURI  string    `toml:"redirect_uri"`
	AccessToken  string    `toml:"access_token,omitempty"`
	RefreshToken string    `toml:"refresh_token,omitempty"`
	TokenType    string    `toml:"token_type,omitempty"`
	Expiry       time.Time `toml:"expiry,omitempty"`
}

// AcquisitionConfig holds the external tool invocations and directories of a download run.
type AcquisitionConfig struct {
	DownloadDir     string   `toml:"download_dir"`
	LibraryDir      string   `toml:"library_dir"`
	DownloaderCmd   []string `toml:"downloader_cmd"`
	TransferCmd     []string `toml:"transfer_cmd"`
	PruneEmptyDirs  bool     `toml:"prune_empty_dirs"`
	CommandTimeout  Duration `toml:"command_timeout"`
	ReplacePlaylist bool     `toml:"replace_playlist"`
}

// RescanConfig selects how the catalog is told to index new files.
//
// Mode is "rest" (startScan view) or "command" (Command is executed).
type RescanConfig struct {
	Mode         string   `toml:"mode"`
	Command      []string `toml:"command"`
	AlsoREST     bool     `toml:"also_rest"`
	Wait         bool     `toml:"wait"`
	PollInterval Duration `toml:"poll_interval"`
	Timeout      Duration `toml:"timeout"`
}

// ResolverConfig tunes how source titles are matched to catalog songs.
type ResolverConfig struct {
	Policy      string `toml:"policy"`
	ArtistCount int    `toml:"artist_count"`
	AlbumCount  int    `toml:"album_count"`
	SongCount   int    `toml:"song_count"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// ServerConfig contains the settings of the local OAuth callback server.
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// Duration is a [time.Duration] that reads from TOML strings like "30s".
type Duration struct {
	time.Duration
}

// UnmarshalText implements [encoding.TextUnmarshaler].
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("%w: duration %q: %v", ErrInvalidConfig, string(text), err)
	}
	d.Duration = v
	return nil
}

// MarshalText implements [encoding.TextMarshaler].
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return config, nil
}

// SaveConfig writes the configuration back to path as TOML.
func SaveConfig(path string, config *Config) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(config); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// ApplyEnv overrides secrets with environment variables when they are set.
//
// Recognized: SUBSONIC_API_TOKEN, SUBSONIC_API_HOST, SUBSONIC_API_PORT, SUBSONIC_API_VERSION,
// SUBSONIC_API_APP_NAME, SPOTIFY_CLIENT_ID, SPOTIFY_CLIENT_SECRET. A malformed port is ignored.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("SUBSONIC_API_TOKEN"); v != "" {
		c.Catalog.APIKey = v
	}
	if v := os.Getenv("SUBSONIC_API_HOST"); v != "" {
		c.Catalog.BaseURL = v
	}
	if v, err := strconv.Atoi(os.Getenv("SUBSONIC_API_PORT")); err == nil && v > 0 {
		c.Catalog.Port = v
	}
	if v := os.Getenv("SUBSONIC_API_VERSION"); v != "" {
		c.Catalog.APIVersion = v
	}
	if v := os.Getenv("SUBSONIC_API_APP_NAME"); v != "" {
		c.Catalog.AppName = v
	}
	if v := os.Getenv("SPOTIFY_CLIENT_ID"); v != "" {
		c.Credentials.Spotify.ClientID = v
	}
	if v := os.Getenv("SPOTIFY_CLIENT_SECRET"); v != "" {
		c.Credentials.Spotify.ClientSecret = v
	}
}

// Validate reports configuration that would make every catalog call fail.
func (c *Config) Validate() error {
	var missing []string
	if c.Catalog.BaseURL == "" {
		missing = append(missing, "catalog.base_url")
	}
	if c.Catalog.Port <= 0 {
		missing = append(missing, "catalog.port")
	}
	if c.Catalog.APIKey == "" {
		missing = append(missing, "catalog.api_key")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrInvalidConfig, strings.Join(missing, ", "))
	}

	switch c.Rescan.Mode {
	case "", "rest":
	case "command":
		if len(c.Rescan.Command) == 0 {
			return fmt.Errorf("%w: rescan.mode is \"command\" but rescan.command is empty", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown rescan.mode %q", ErrInvalidConfig, c.Rescan.Mode)
	}
	return nil
}

// Map returns the Spotify client settings in the form the source service constructor expects.
func (s SpotifyConfig) Map() map[string]string {
	return map[string]string{
		"client_id":     s.ClientID,
		"client_secret": s.ClientSecret,
		"redirect_uri":  s.RedirectURI,
	}
}

// Token returns the stored user token, or nil when `spotify auth` has not been run.
func (s SpotifyConfig) Token() *oauth2.Token {
	if s.AccessToken == "" && s.RefreshToken == "" {
		return nil
	}
	return &oauth2.Token{
		AccessToken:  s.AccessToken,
		RefreshToken: s.RefreshToken,
		TokenType:    s.TokenType,
		Expiry:       s.Expiry,
	}
}

// Update stores a freshly issued user token.
func (s *SpotifyConfig) Update(token *oauth2.Token) error {
	if token == nil {
		return fmt.Errorf("%w: nil token", ErrInvalidArgument)
	}
	s.AccessToken = token.AccessToken
	if token.RefreshToken != "" {
		s.RefreshToken = token.RefreshToken
	}
	s.TokenType = token.TokenType
	s.Expiry = token.Expiry
	return nil
}
