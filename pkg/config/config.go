package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	driverrors "github.com/globomap/acs-driver/internal/errors"
)

// Queue and loader backends
const (
	BackendRabbitMQ = "rabbitmq"
	BackendNATS     = "nats"
	BackendHTTP     = "http"
	BackendNeo4j    = "neo4j"
	BackendStdout   = "stdout"
)

// Config represents the complete driver configuration. It is loaded once and
// handed by value to the components that need it.
type Config struct {
	Environment string           `mapstructure:"environment"`
	CloudStack  CloudStackConfig `mapstructure:"cloudstack"`
	Queue       QueueConfig      `mapstructure:"queue"`
	RabbitMQ    RabbitMQConfig   `mapstructure:"rabbitmq"`
	NATS        NATSConfig       `mapstructure:"nats"`
	Loader      LoaderConfig     `mapstructure:"loader"`
	Dictionary  DictionaryConfig `mapstructure:"dictionary"`
	Metrics     MetricsConfig    `mapstructure:"metrics"`
	Logging     LoggingConfig    `mapstructure:"logging"`
}

// CloudStackConfig configures the inventory API client
type CloudStackConfig struct {
	APIURL     string        `mapstructure:"api_url"`
	APIKey     string        `mapstructure:"api_key"`
	SecretKey  string        `mapstructure:"secret_key"`
	VerifySSL  bool          `mapstructure:"verify_ssl"`
	Timeout    time.Duration `mapstructure:"timeout"`
	MaxRetries int           `mapstructure:"max_retries"`
	RateLimit  float64       `mapstructure:"rate_limit"`
	RateBurst  int           `mapstructure:"rate_burst"`
	PageSize   int           `mapstructure:"page_size"`
}

// QueueConfig selects where events are consumed from. Exchange is the
// AMQP exchange CloudStack publishes to, and the subject prefix of the
// bindings on NATS.
type QueueConfig struct {
	Backend     string   `mapstructure:"backend"`
	Exchange    string   `mapstructure:"exchange"`
	RoutingKeys []string `mapstructure:"routing_keys"`
}

// RabbitMQConfig holds the broker coordinates shared by the event queue
// and the loader exchange publisher
type RabbitMQConfig struct {
	Host             string `mapstructure:"host"`
	Port             int    `mapstructure:"port"`
	User             string `mapstructure:"user"`
	Password         string `mapstructure:"password"`
	VirtualHost      string `mapstructure:"virtual_host"`
	Queue            string `mapstructure:"queue"`
	LoaderExchange   string `mapstructure:"loader_exchange"`
	LoaderRoutingKey string `mapstructure:"loader_routing_key"`
}

// URL returns the AMQP connection URL with the credentials and the virtual
// host escaped. The default virtual host "/" leaves the path empty.
func (c RabbitMQConfig) URL() string {
	u := url.URL{
		Scheme: "amqp",
		User:   url.UserPassword(c.User, c.Password),
		Host:   net.JoinHostPort(c.Host, strconv.Itoa(c.Port)),
	}
	if vhost := strings.TrimPrefix(c.VirtualHost, "/"); vhost != "" {
		u.Path = "/" + vhost
		u.RawPath = "/" + url.PathEscape(vhost)
	}
	return u.String()
}

// NATSConfig holds JetStream coordinates
type NATSConfig struct {
	URL           string        `mapstructure:"url"`
	Stream        string        `mapstructure:"stream"`
	Subject       string        `mapstructure:"subject"`
	Consumer      string        `mapstructure:"consumer"`
	LoaderSubject string        `mapstructure:"loader_subject"`
	FetchTimeout  time.Duration `mapstructure:"fetch_timeout"`
	ReconnectWait time.Duration `mapstructure:"reconnect_wait"`
	MaxReconnects int           `mapstructure:"max_reconnects"`
}

// LoaderConfig selects and configures the document sink
type LoaderConfig struct {
	Backend        string        `mapstructure:"backend"`
	PublishTimeout time.Duration `mapstructure:"publish_timeout"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryBackoff   time.Duration `mapstructure:"retry_backoff"`
	HTTP           HTTPConfig    `mapstructure:"http"`
	Neo4j          Neo4jConfig   `mapstructure:"neo4j"`
	Stdout         StdoutConfig  `mapstructure:"stdout"`
}

// HTTPConfig configures the loader API client
type HTTPConfig struct {
	URL        string `mapstructure:"url"`
	Username   string `mapstructure:"username"`
	Password   string `mapstructure:"password"`
	DriverName string `mapstructure:"driver_name"`
}

// Neo4jConfig configures the direct graph sink
type Neo4jConfig struct {
	URI      string `mapstructure:"uri"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
}

// StdoutConfig configures the dry-run sink
type StdoutConfig struct {
	Format string `mapstructure:"format"`
}

// DictionaryConfig holds the cost allocation defaults
type DictionaryConfig struct {
	DefaultProcessID string `mapstructure:"default_process_id"`
}

// MetricsConfig configures the metrics endpoint
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Listen  string `mapstructure:"listen"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Options controls where configuration is read from
type Options struct {
	ConfigFile  string
	Environment string
}

// Load loads configuration from the config file, ACS_* environment variables
// and the per-environment variables of the legacy driver, in increasing order
// of precedence for the latter two over the file.
func Load(opts Options) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".globomap-acs"))
		}
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	environment := opts.Environment
	if environment == "" {
		environment = os.Getenv("ACS_ENVIRONMENT")
	}
	if environment == "" {
		environment = v.GetString("environment")
	}
	if environment == "" {
		environment = NewEnvironmentDetector().Single()
	}
	if environment != "" {
		v.Set("environment", environment)
	}

	bindEnv(v, environment)

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

// bindEnv maps each key to ACS_<KEY> and, for the settings the legacy driver
// read from the environment, to its original variable name as well.
func bindEnv(v *viper.Viper, environment string) {
	legacy := map[string][]string{
		"cloudstack.api_url":            {"ACS_%s_API_URL"},
		"cloudstack.api_key":            {"ACS_%s_API_KEY"},
		"cloudstack.secret_key":         {"ACS_%s_API_SECRET_KEY"},
		"rabbitmq.host":                 {"ACS_%s_RMQ_HOST"},
		"rabbitmq.port":                 {"ACS_%s_RMQ_PORT"},
		"rabbitmq.user":                 {"ACS_%s_RMQ_USER"},
		"rabbitmq.password":             {"ACS_%s_RMQ_PASSWORD"},
		"rabbitmq.virtual_host":         {"ACS_%s_RMQ_VIRTUAL_HOST"},
		"rabbitmq.queue":                {"ACS_%s_RMQ_QUEUE"},
		"queue.exchange":                {"ACS_%s_RMQ_EXCHANGE"},
		"rabbitmq.loader_exchange":      {"ACS_%s_RMQ_LOADER_EXCHANGE"},
		"loader.http.url":               {"GLOBOMAP_LOADER_API_URL"},
		"loader.http.username":          {"GLOBOMAP_LOADER_API_USERNAME"},
		"loader.http.password":          {"GLOBOMAP_LOADER_API_PASSWORD"},
		"dictionary.default_process_id": {"CUSTEIO_DEFAULT_PROCESS_ID"},
	}

	for _, key := range v.AllKeys() {
		names := []string{"ACS_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))}
		for _, pattern := range legacy[key] {
			if strings.Contains(pattern, "%s") {
				if environment == "" {
					continue
				}
				pattern = fmt.Sprintf(pattern, strings.ToUpper(environment))
			}
			names = append(names, pattern)
		}
		_ = v.BindEnv(append([]string{key}, names...)...)
	}
}

// Validate checks every section
func (c *Config) Validate() error {
	if err := c.ValidateInventory(); err != nil {
		return err
	}
	if err := c.ValidateQueue(); err != nil {
		return err
	}
	return c.ValidateLoader()
}

// ValidateInventory checks what every command needs: the environment name
// and the CloudStack API coordinates
func (c *Config) ValidateInventory() error {
	if c.Environment == "" {
		return driverrors.ConfigurationError("environment is required", "environment (or --env)")
	}
	if c.CloudStack.APIURL == "" {
		return driverrors.ConfigurationError("cloudstack API url is required", "cloudstack.api_url")
	}
	if c.CloudStack.APIKey == "" || c.CloudStack.SecretKey == "" {
		return driverrors.ConfigurationError("cloudstack API credentials are required",
			"cloudstack.api_key", "cloudstack.secret_key")
	}
	if c.CloudStack.PageSize <= 0 {
		return driverrors.ConfigurationError("cloudstack page size must be positive", "cloudstack.page_size")
	}
	return nil
}

// ValidateQueue checks the event bus settings
func (c *Config) ValidateQueue() error {
	switch c.Queue.Backend {
	case BackendRabbitMQ:
		if c.RabbitMQ.Host == "" || c.RabbitMQ.Queue == "" {
			return driverrors.ConfigurationError("rabbitmq host and queue are required",
				"rabbitmq.host", "rabbitmq.queue")
		}
	case BackendNATS:
		if c.NATS.URL == "" || c.NATS.Stream == "" || c.NATS.Consumer == "" {
			return driverrors.ConfigurationError("nats url, stream and consumer are required",
				"nats.url", "nats.stream", "nats.consumer")
		}
	default:
		return driverrors.ConfigurationError(fmt.Sprintf("unknown queue backend %q", c.Queue.Backend), "queue.backend")
	}
	return nil
}

// ValidateLoader checks the sink settings
func (c *Config) ValidateLoader() error {
	if c.Loader.PublishTimeout <= 0 {
		return driverrors.ConfigurationError("loader publish timeout must be positive", "loader.publish_timeout")
	}
	if c.Loader.MaxRetries < 0 {
		return driverrors.ConfigurationError("loader max retries cannot be negative", "loader.max_retries")
	}

	switch c.Loader.Backend {
	case BackendHTTP:
		if c.Loader.HTTP.URL == "" {
			return driverrors.ConfigurationError("loader API url is required", "loader.http.url")
		}
	case BackendRabbitMQ:
		if c.RabbitMQ.Host == "" || c.RabbitMQ.LoaderExchange == "" {
			return driverrors.ConfigurationError("rabbitmq host and loader exchange are required",
				"rabbitmq.host", "rabbitmq.loader_exchange")
		}
	case BackendNATS:
		if c.NATS.URL == "" || c.NATS.LoaderSubject == "" {
			return driverrors.ConfigurationError("nats url and loader subject are required",
				"nats.url", "nats.loader_subject")
		}
	case BackendNeo4j:
		if c.Loader.Neo4j.URI == "" {
			return driverrors.ConfigurationError("neo4j uri is required", "loader.neo4j.uri")
		}
	case BackendStdout:
		if f := c.Loader.Stdout.Format; f != "json" && f != "yaml" {
			return driverrors.ConfigurationError(fmt.Sprintf("unknown stdout format %q", f), "loader.stdout.format")
		}
	default:
		return driverrors.ConfigurationError(fmt.Sprintf("unknown loader backend %q", c.Loader.Backend), "loader.backend")
	}
	return nil
}
