package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config es la configuración completa de betstream.
type Config struct {
	Stream  StreamConfig  `yaml:"stream"`
	Auth    AuthConfig    `yaml:"auth"`
	Replay  ReplayConfig  `yaml:"replay"`
	Storage StorageConfig `yaml:"storage"`
	Log     LogConfig     `yaml:"log"`
}

// StreamConfig controla la sesión live contra el stream del exchange.
type StreamConfig struct {
	Addr               string   `yaml:"addr"`
	MarketIDs          []string `yaml:"market_ids"`
	Fields             []string `yaml:"fields"`
	HeartbeatMs        int      `yaml:"heartbeat_ms"`
	ReadTimeoutSeconds int      `yaml:"read_timeout_seconds"`
	BackoffBaseMs      int      `yaml:"backoff_base_ms"`
	BackoffMaxSeconds  int      `yaml:"backoff_max_seconds"`
	DecodeFailureBurst int      `yaml:"decode_failure_burst"`
	AuthFailureLimit   int      `yaml:"auth_failure_limit"`
	// StaleMaxAgeSeconds es el umbral de frescura de los consumidores
	// time-critical; el store no lo impone, la LiveView sí.
	StaleMaxAgeSeconds int `yaml:"stale_max_age_seconds"`
	// ReportSeconds es cada cuánto se imprime el estado por consola.
	ReportSeconds int `yaml:"report_seconds"`
}

// AuthConfig contiene el identity service y las credenciales.
// Los secretos vienen solo de variables de entorno (.env), nunca del YAML.
type AuthConfig struct {
	IdentityBase string `yaml:"identity_base"`
	AppKey       string `yaml:"-"`
	Username     string `yaml:"-"`
	Password     string `yaml:"-"`
	SessionToken string `yaml:"-"`
}

// ReplayConfig controla el path batch.
type ReplayConfig struct {
	Paths   []string `yaml:"paths"` // paths o glob patterns de archives
	Workers int      `yaml:"workers"`
}

// StorageConfig controla dónde se persisten los runs del batch.
type StorageConfig struct {
	DSN string `yaml:"dsn"` // ruta al archivo SQLite, o ":memory:"
}

// LogConfig controla el formato y nivel de logging.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// Load carga la configuración desde el archivo YAML y el archivo .env si existe.
// Los secretos y overrides de entorno se aplican después del YAML.
func Load(path string) (*Config, error) {
	// Cargar .env si existe (silencia error si no hay archivo)
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config.Load: parse YAML: %w", err)
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	return &cfg, nil
}

// ReadTimeout devuelve el read timeout como time.Duration.
func (c *Config) ReadTimeout() time.Duration {
	return time.Duration(c.Stream.ReadTimeoutSeconds) * time.Second
}

// BackoffBase devuelve el backoff inicial como time.Duration.
func (c *Config) BackoffBase() time.Duration {
	return time.Duration(c.Stream.BackoffBaseMs) * time.Millisecond
}

// BackoffMax devuelve el tope del backoff como time.Duration.
func (c *Config) BackoffMax() time.Duration {
	return time.Duration(c.Stream.BackoffMaxSeconds) * time.Second
}

// StaleMaxAge devuelve el umbral de frescura como time.Duration.
func (c *Config) StaleMaxAge() time.Duration {
	return time.Duration(c.Stream.StaleMaxAgeSeconds) * time.Second
}

// ReportInterval devuelve el intervalo de reporte como time.Duration.
func (c *Config) ReportInterval() time.Duration {
	return time.Duration(c.Stream.ReportSeconds) * time.Second
}

// applyEnvOverrides sobreescribe valores con variables de entorno si están presentes.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("BETSTREAM_APP_KEY"); v != "" {
		cfg.Auth.AppKey = v
	}
	if v := os.Getenv("BETSTREAM_USERNAME"); v != "" {
		cfg.Auth.Username = v
	}
	if v := os.Getenv("BETSTREAM_PASSWORD"); v != "" {
		cfg.Auth.Password = v
	}
	if v := os.Getenv("BETSTREAM_SESSION_TOKEN"); v != "" {
		cfg.Auth.SessionToken = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
}

// setDefaults asegura que los valores requeridos tengan valores sensatos.
func setDefaults(cfg *Config) {
	if cfg.Stream.Addr == "" {
		cfg.Stream.Addr = "stream-api.betfair.com:443"
	}
	if cfg.Stream.ReadTimeoutSeconds <= 0 {
		cfg.Stream.ReadTimeoutSeconds = 30
	}
	if cfg.Stream.BackoffBaseMs <= 0 {
		cfg.Stream.BackoffBaseMs = 1000
	}
	if cfg.Stream.BackoffMaxSeconds <= 0 {
		cfg.Stream.BackoffMaxSeconds = 60
	}
	if cfg.Stream.DecodeFailureBurst <= 0 {
		cfg.Stream.DecodeFailureBurst = 10
	}
	if cfg.Stream.AuthFailureLimit <= 0 {
		cfg.Stream.AuthFailureLimit = 5
	}
	if cfg.Stream.StaleMaxAgeSeconds <= 0 {
		cfg.Stream.StaleMaxAgeSeconds = 5
	}
	if cfg.Stream.ReportSeconds <= 0 {
		cfg.Stream.ReportSeconds = 30
	}
	if cfg.Replay.Workers <= 0 {
		cfg.Replay.Workers = 4
	}
	if cfg.Storage.DSN == "" {
		cfg.Storage.DSN = "betstream.db"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}
