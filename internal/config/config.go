package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	API         APIConfig         `mapstructure:"api"`
	Storage     StorageKeys       `mapstructure:"storage"`
	Session     SessionConfig     `mapstructure:"session"`
	Report      ReportConfig      `mapstructure:"report"`
	Vehicle     VehicleConfig     `mapstructure:"vehicle"`
	DevUpstream DevUpstreamConfig `mapstructure:"devupstream"`
}

type ServerConfig struct {
	GRPCPort        int           `mapstructure:"grpc_port"`
	HTTPPort        int           `mapstructure:"http_port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	Environment     string        `mapstructure:"environment"` // production | development
}

// APIConfig describes the upstream API the proxy talks to.
type APIConfig struct {
	Endpoints       EndpointOptions `mapstructure:"endpoints"`
	LoginPath       string          `mapstructure:"login_path"`
	UserDetailsPath string          `mapstructure:"user_details_path"`
	Timeout         time.Duration   `mapstructure:"timeout"`
}

type EndpointOptions struct {
	Local      string `mapstructure:"local"`
	Production string `mapstructure:"production"`
}

// StorageKeys are the key names used inside a browser session.
type StorageKeys struct {
	AuthToken     string `mapstructure:"auth_token"`
	Username      string `mapstructure:"username"`
	UserData      string `mapstructure:"user_data"`
	SidebarState  string `mapstructure:"sidebar_state"`
	APIPreference string `mapstructure:"api_preference"`
}

type SessionConfig struct {
	Backend    string         `mapstructure:"backend"` // memory | postgres
	CookieName string         `mapstructure:"cookie_name"`
	TTL        time.Duration  `mapstructure:"ttl"`
	Database   DatabaseConfig `mapstructure:"database"`
}

type DatabaseConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
}

type ReportConfig struct {
	URL   string `mapstructure:"url"`
	Title string `mapstructure:"title"`
}

type VehicleConfig struct {
	ArtworkPaths []string `mapstructure:"artwork_paths"`
}

// DevUpstreamConfig configures the local stand-in for the upstream API.
type DevUpstreamConfig struct {
	Port         int           `mapstructure:"port"`
	JWTSecretEnv string        `mapstructure:"jwt_secret_env"`
	TokenTTL     time.Duration `mapstructure:"token_ttl"`
	Users        []DevUser     `mapstructure:"users"`
}

type DevUser struct {
	Username     string `mapstructure:"username"`
	PasswordHash string `mapstructure:"password_hash"`
	Email        string `mapstructure:"email"`
	Role         string `mapstructure:"role"`
	PhoneNumber  string `mapstructure:"phone_number"`
}

const (
	EndpointLocal      = "local"
	EndpointProduction = "production"

	devSecretFallback = "dev-secret-change-in-production-min-32-chars"
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.grpc_port", 50051)
	v.SetDefault("server.http_port", 3000)
	v.SetDefault("server.shutdown_timeout", "15s")
	v.SetDefault("server.environment", "development")

	v.SetDefault("api.endpoints.local", "http://localhost:3100")
	v.SetDefault("api.endpoints.production", "https://ev-api.valiuse.com")
	v.SetDefault("api.login_path", "/auth/login")
	v.SetDefault("api.user_details_path", "/user/details/")
	v.SetDefault("api.timeout", "30s")

	v.SetDefault("storage.auth_token", "authToken")
	v.SetDefault("storage.username", "username")
	v.SetDefault("storage.user_data", "user_data")
	v.SetDefault("storage.sidebar_state", "sidebarState")
	v.SetDefault("storage.api_preference", "apiEndpointPreference")

	v.SetDefault("session.backend", "memory")
	v.SetDefault("session.cookie_name", "fleetview_session")
	v.SetDefault("session.ttl", "168h")
	v.SetDefault("session.database.host", "localhost")
	v.SetDefault("session.database.port", 5432)
	v.SetDefault("session.database.database", "fleetview")
	v.SetDefault("session.database.user", "fleetview")
	v.SetDefault("session.database.max_connections", 4)

	v.SetDefault("report.title", "Fleet Analysis")

	v.SetDefault("vehicle.artwork_paths", []string{"assets/artwork"})

	v.SetDefault("devupstream.port", 3100)
	v.SetDefault("devupstream.jwt_secret_env", "DEVUPSTREAM_JWT_SECRET")
	v.SetDefault("devupstream.token_ttl", "60m")
}

// Load reads the YAML config at path. An empty path uses defaults plus environment only.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	// FLEETVIEW_SERVER_HTTP_PORT etc.
	v.SetEnvPrefix("FLEETVIEW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func (c *Config) Validate() error {
	switch c.Server.Environment {
	case "production", "development":
	default:
		return fmt.Errorf("invalid server.environment %q", c.Server.Environment)
	}
	switch c.Session.Backend {
	case "memory", "postgres":
	default:
		return fmt.Errorf("invalid session.backend %q", c.Session.Backend)
	}
	if c.API.Endpoints.Production == "" {
		return fmt.Errorf("api.endpoints.production must be set")
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}

// AllowEndpointSwitch reports whether a session may pick its upstream base URL.
func (c *Config) AllowEndpointSwitch() bool {
	return !c.IsProduction()
}

// BaseURL resolves the upstream base URL for a stored endpoint preference.
// Production deployments always use the production endpoint.
func (c *Config) BaseURL(preference string) string {
	if c.IsProduction() {
		return c.API.Endpoints.Production
	}
	if preference == EndpointLocal && c.API.Endpoints.Local != "" {
		return c.API.Endpoints.Local
	}
	return c.API.Endpoints.Production
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.User, c.Password, c.Host, c.Port, c.Database)
}

// JWT Secret aus Environment Variable laden
func (d *DevUpstreamConfig) GetJWTSecret() string {
	envVar := d.JWTSecretEnv
	if envVar == "" {
		envVar = "DEVUPSTREAM_JWT_SECRET"
	}

	secret := os.Getenv(envVar)
	if secret == "" {
		return devSecretFallback
	}
	return secret
}
