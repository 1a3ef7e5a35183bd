package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for ccuflux.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	CCU      CCUConfig      `yaml:"ccu" json:"ccu"`
	MQTT     MQTTConfig     `yaml:"mqtt" json:"mqtt"`
	InfluxDB InfluxDBConfig `yaml:"influxdb" json:"influxdb"`
	Buffer   BufferConfig   `yaml:"buffer" json:"buffer"`
	Poller   PollerConfig   `yaml:"poller" json:"poller"`
	API      APIConfig      `yaml:"api" json:"api"`
	Logging  LoggingConfig  `yaml:"logging" json:"logging"`

	// Whitelist contains regular-expression patterns matched against the full
	// datapoint address of incoming events. Any match logs the event.
	Whitelist []string `yaml:"whitelist" json:"whitelist"`

	// Datapoints contains exact datapoint addresses selected for logging.
	// Consulted only when no whitelist pattern matched.
	Datapoints []string `yaml:"datapoints" json:"datapoints"`

	// Programs and Variables are CCU Rega object IDs polled for changes.
	Programs  []string `yaml:"programs" json:"programs"`
	Variables []string `yaml:"variables" json:"variables"`
}

// CCUConfig contains controller connection settings.
type CCUConfig struct {
	// Address is the hostname or IP of the CCU. Empty disables the
	// controller bootstrap; the pipeline then runs without a live feed.
	Address string `yaml:"address" json:"address"`

	// RegaPort is the port of the Rega script endpoint. Default: 8181.
	RegaPort int `yaml:"rega_port" json:"rega_port"`
}

// MQTTConfig contains MQTT broker connection settings for the event transport.
type MQTTConfig struct {
	Broker      MQTTBrokerConfig `yaml:"broker" json:"broker"`
	Auth        MQTTAuthConfig   `yaml:"auth" json:"auth"`
	QoS         int              `yaml:"qos" json:"qos"`
	TopicPrefix string           `yaml:"topic_prefix" json:"topic_prefix"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host" json:"host"`
	Port     int    `yaml:"port" json:"port"`
	TLS      bool   `yaml:"tls" json:"tls"`
	ClientID string `yaml:"client_id" json:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password,omitempty"`
}

// InfluxDBConfig contains InfluxDB 2.x connection settings.
//
// The database is optional: when Host is empty the pipeline runs in a
// degraded, non-persisting mode and logs a warning instead of failing.
type InfluxDBConfig struct {
	Host     string `yaml:"host" json:"host"`
	Port     int    `yaml:"port" json:"port"`
	Protocol string `yaml:"protocol" json:"protocol"`
	Org      string `yaml:"org" json:"org"`
	Bucket   string `yaml:"bucket" json:"bucket"`
	Token    string `yaml:"token" json:"token,omitempty"`

	// RetryDelay is the delay in seconds between reconnect attempts while
	// the server reports it is not ready yet. Default: 30.
	RetryDelay int `yaml:"retry_delay" json:"retry_delay"`
}

// Configured reports whether database settings are present at all.
func (c InfluxDBConfig) Configured() bool {
	return c.Host != ""
}

// URL assembles the server base URL from protocol, host and port.
func (c InfluxDBConfig) URL() string {
	protocol := c.Protocol
	if protocol == "" {
		protocol = "http"
	}
	if c.Port > 0 {
		return fmt.Sprintf("%s://%s:%d", protocol, c.Host, c.Port)
	}
	return fmt.Sprintf("%s://%s", protocol, c.Host)
}

// GetRetryDelay returns the reconnect delay as a Duration.
func (c InfluxDBConfig) GetRetryDelay() time.Duration {
	if c.RetryDelay <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.RetryDelay) * time.Second
}

// BufferConfig contains point buffer and spill store settings.
type BufferConfig struct {
	// Size is the flush threshold: the buffer flushes as soon as it holds
	// this many points. Default: 1 (flush on every point).
	Size int `yaml:"size" json:"size"`

	// SpillPath is the SQLite file holding batches whose write failed.
	// Empty disables spilling; failed batches are then dropped immediately
	// (and counted).
	SpillPath string `yaml:"spill_path" json:"spill_path"`

	// MaxRetries is how often a spilled batch is retried before it is
	// dropped with a counted loss. Default: 5.
	MaxRetries int `yaml:"max_retries" json:"max_retries"`
}

// PollerConfig contains variable/program polling settings.
type PollerConfig struct {
	// Interval is the polling cadence in seconds. Default: 60.
	Interval int `yaml:"interval" json:"interval"`
}

// GetInterval returns the polling cadence as a Duration.
func (c PollerConfig) GetInterval() time.Duration {
	if c.Interval <= 0 {
		return 60 * time.Second
	}
	return time.Duration(c.Interval) * time.Second
}

// APIConfig contains admin HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host" json:"host"`
	Port     int              `yaml:"port" json:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts" json:"timeouts"`
	CORS     CORSConfig       `yaml:"cors" json:"cors"`
}

// APITimeoutConfig contains HTTP timeout settings in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read" json:"read"`
	Write int `yaml:"write" json:"write"`
	Idle  int `yaml:"idle" json:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins" json:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods" json:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers" json:"allowed_headers"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
	Output string `yaml:"output" json:"output"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// A missing file is not an error: the original addon starts with an empty
// configuration and waits for the admin to fill it in, so Load falls back to
// defaults and reports success. Parse and validation failures are errors.
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If the file cannot be parsed or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Save writes the configuration document back to disk.
//
// Used by the admin API after whitelist, datapoint, buffer-size, or
// controller-address edits. The write is atomic (temp file plus rename) so a
// crash mid-write never leaves a truncated document behind.
//
// Parameters:
//   - path: Destination file path
//
// Returns:
//   - error: If marshalling or writing fails
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replacing config file: %w", err)
	}

	return nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		CCU: CCUConfig{
			RegaPort: 8181,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "ccuflux",
			},
			QoS:         1,
			TopicPrefix: "ccu",
		},
		InfluxDB: InfluxDBConfig{
			Protocol:   "http",
			Port:       8086,
			RetryDelay: 30,
		},
		Buffer: BufferConfig{
			Size:       1,
			MaxRetries: 5,
		},
		Poller: PollerConfig{
			Interval: 60,
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8123,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: CCUFLUX_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// CCU
	if v := os.Getenv("CCUFLUX_CCU_ADDRESS"); v != "" {
		cfg.CCU.Address = v
	}

	// MQTT
	if v := os.Getenv("CCUFLUX_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("CCUFLUX_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("CCUFLUX_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// InfluxDB
	if v := os.Getenv("CCUFLUX_INFLUXDB_HOST"); v != "" {
		cfg.InfluxDB.Host = v
	}
	if v := os.Getenv("CCUFLUX_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// API
	if v := os.Getenv("CCUFLUX_API_HOST"); v != "" {
		cfg.API.Host = v
	}
}

// Validate checks the configuration for errors.
//
// Validation is deliberately lenient about absent sections: a missing
// database or controller address is a degraded mode, not a failure.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Buffer.Size < 1 {
		errs = append(errs, "buffer.size must be at least 1")
	}
	if c.Buffer.MaxRetries < 0 {
		errs = append(errs, "buffer.max_retries must not be negative")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if c.CCU.Address != "" && (c.CCU.RegaPort < 1 || c.CCU.RegaPort > 65535) {
		errs = append(errs, "ccu.rega_port must be between 1 and 65535")
	}

	if c.InfluxDB.Configured() {
		if c.InfluxDB.Org == "" {
			errs = append(errs, "influxdb.org is required when influxdb.host is set")
		}
		if c.InfluxDB.Bucket == "" {
			errs = append(errs, "influxdb.bucket is required when influxdb.host is set")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}
