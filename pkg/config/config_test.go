package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	driverrors "github.com/globomap/acs-driver/internal/errors"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func validConfig() *Config {
	cfg := DefaultConfig()
	cfg.Environment = "rj"
	cfg.CloudStack.APIURL = "https://cloud.example.com/client/api"
	cfg.CloudStack.APIKey = "key"
	cfg.CloudStack.SecretKey = "secret"
	cfg.RabbitMQ.Host = "rabbit.example.com"
	cfg.RabbitMQ.Queue = "globomap-rj"
	cfg.Loader.HTTP.URL = "https://loader.example.com"
	return cfg
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 500, cfg.CloudStack.PageSize)
	assert.Equal(t, 3, cfg.CloudStack.MaxRetries)
	assert.Equal(t, "cloudstack-events", cfg.Queue.Exchange)
	assert.Equal(t, 5672, cfg.RabbitMQ.Port)
	assert.Equal(t, BackendRabbitMQ, cfg.Queue.Backend)
	assert.Equal(t, BackendHTTP, cfg.Loader.Backend)
	assert.Equal(t, DefaultProcessID, cfg.Dictionary.DefaultProcessID)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoad_FromFile(t *testing.T) {
	path := writeConfig(t, `
environment: sp
cloudstack:
  api_url: https://sp.example.com/client/api
  api_key: k
  secret_key: s
  timeout: 45s
  page_size: 100
rabbitmq:
  host: mq.example.com
  queue: events-sp
loader:
  backend: stdout
  stdout:
    format: yaml
`)

	cfg, err := Load(Options{ConfigFile: path})
	require.NoError(t, err)

	assert.Equal(t, "sp", cfg.Environment)
	assert.Equal(t, "https://sp.example.com/client/api", cfg.CloudStack.APIURL)
	assert.Equal(t, 45*time.Second, cfg.CloudStack.Timeout)
	assert.Equal(t, 100, cfg.CloudStack.PageSize)
	assert.Equal(t, "mq.example.com", cfg.RabbitMQ.Host)
	assert.Equal(t, "cloudstack-events", cfg.Queue.Exchange)
	assert.Equal(t, BackendStdout, cfg.Loader.Backend)
	assert.Equal(t, "yaml", cfg.Loader.Stdout.Format)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_NATSQueueExchange(t *testing.T) {
	path := writeConfig(t, `
queue:
  backend: nats
  exchange: acs-events
nats:
  url: nats://localhost:4222
`)

	cfg, err := Load(Options{ConfigFile: path})
	require.NoError(t, err)

	assert.Equal(t, BackendNATS, cfg.Queue.Backend)
	assert.Equal(t, "acs-events", cfg.Queue.Exchange)
	assert.Empty(t, cfg.RabbitMQ.Host)
}

func TestLoad_LegacyEnvironmentVariables(t *testing.T) {
	path := writeConfig(t, "logging:\n  level: debug\n")

	t.Setenv("ACS_RJ_API_URL", "https://rj.example.com/client/api")
	t.Setenv("ACS_RJ_API_KEY", "legacy-key")
	t.Setenv("ACS_RJ_API_SECRET_KEY", "legacy-secret")
	t.Setenv("ACS_RJ_RMQ_HOST", "legacy-mq")
	t.Setenv("ACS_RJ_RMQ_PORT", "5673")
	t.Setenv("ACS_RJ_RMQ_QUEUE", "legacy-queue")
	t.Setenv("ACS_RJ_RMQ_LOADER_EXCHANGE", "globomap-loader")
	t.Setenv("ACS_RJ_RMQ_EXCHANGE", "legacy-events")
	t.Setenv("GLOBOMAP_LOADER_API_URL", "https://loader.example.com")
	t.Setenv("CUSTEIO_DEFAULT_PROCESS_ID", "abc123")

	cfg, err := Load(Options{ConfigFile: path, Environment: "rj"})
	require.NoError(t, err)

	assert.Equal(t, "rj", cfg.Environment)
	assert.Equal(t, "https://rj.example.com/client/api", cfg.CloudStack.APIURL)
	assert.Equal(t, "legacy-key", cfg.CloudStack.APIKey)
	assert.Equal(t, "legacy-secret", cfg.CloudStack.SecretKey)
	assert.Equal(t, "legacy-mq", cfg.RabbitMQ.Host)
	assert.Equal(t, 5673, cfg.RabbitMQ.Port)
	assert.Equal(t, "legacy-queue", cfg.RabbitMQ.Queue)
	assert.Equal(t, "globomap-loader", cfg.RabbitMQ.LoaderExchange)
	assert.Equal(t, "legacy-events", cfg.Queue.Exchange)
	assert.Equal(t, "https://loader.example.com", cfg.Loader.HTTP.URL)
	assert.Equal(t, "abc123", cfg.Dictionary.DefaultProcessID)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoad_PrefixedVariableWinsOverLegacy(t *testing.T) {
	path := writeConfig(t, "environment: rj\n")

	t.Setenv("ACS_CLOUDSTACK_API_URL", "https://new.example.com")
	t.Setenv("ACS_RJ_API_URL", "https://old.example.com")

	cfg, err := Load(Options{ConfigFile: path})
	require.NoError(t, err)
	assert.Equal(t, "https://new.example.com", cfg.CloudStack.APIURL)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(Options{ConfigFile: filepath.Join(t.TempDir(), "missing.yaml")})
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "valid",
			mutate: func(*Config) {},
		},
		{
			name:    "missing environment",
			mutate:  func(c *Config) { c.Environment = "" },
			wantErr: "environment is required",
		},
		{
			name:    "missing api url",
			mutate:  func(c *Config) { c.CloudStack.APIURL = "" },
			wantErr: "cloudstack API url is required",
		},
		{
			name:    "missing secret",
			mutate:  func(c *Config) { c.CloudStack.SecretKey = "" },
			wantErr: "credentials are required",
		},
		{
			name:    "unknown queue backend",
			mutate:  func(c *Config) { c.Queue.Backend = "kafka" },
			wantErr: `unknown queue backend "kafka"`,
		},
		{
			name: "nats queue without consumer",
			mutate: func(c *Config) {
				c.Queue.Backend = BackendNATS
				c.NATS.URL = "nats://localhost:4222"
				c.NATS.Consumer = ""
			},
			wantErr: "nats url, stream and consumer are required",
		},
		{
			name:    "http loader without url",
			mutate:  func(c *Config) { c.Loader.HTTP.URL = "" },
			wantErr: "loader API url is required",
		},
		{
			name: "rabbitmq loader without exchange",
			mutate: func(c *Config) {
				c.Loader.Backend = BackendRabbitMQ
			},
			wantErr: "loader exchange are required",
		},
		{
			name: "stdout loader with bad format",
			mutate: func(c *Config) {
				c.Loader.Backend = BackendStdout
				c.Loader.Stdout.Format = "xml"
			},
			wantErr: `unknown stdout format "xml"`,
		},
		{
			name:    "zero publish timeout",
			mutate:  func(c *Config) { c.Loader.PublishTimeout = 0 },
			wantErr: "publish timeout must be positive",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
			assert.True(t, driverrors.IsType(err, driverrors.ErrorTypeConfiguration))
		})
	}
}

func TestRabbitMQConfig_URL(t *testing.T) {
	cfg := RabbitMQConfig{Host: "mq", Port: 5672, User: "guest", Password: "pw", VirtualHost: "/"}
	assert.Equal(t, "amqp://guest:pw@mq:5672", cfg.URL())

	cfg.VirtualHost = "globomap"
	assert.Equal(t, "amqp://guest:pw@mq:5672/globomap", cfg.URL())
}

func TestRabbitMQConfig_URLEscapesCredentials(t *testing.T) {
	tests := []struct {
		name      string
		config    RabbitMQConfig
		wantVhost string
	}{
		{
			name:      "reserved characters in password",
			config:    RabbitMQConfig{Host: "rmq", Port: 5672, User: "driver", Password: "p@ss/w#rd", VirtualHost: "/"},
			wantVhost: "/",
		},
		{
			name:      "colon in user and password",
			config:    RabbitMQConfig{Host: "rmq", Port: 5672, User: "dri:ver", Password: "a:b?c", VirtualHost: "globomap"},
			wantVhost: "globomap",
		},
		{
			name:      "slash in virtual host",
			config:    RabbitMQConfig{Host: "rmq", Port: 5673, User: "driver", Password: "pw", VirtualHost: "team/acs"},
			wantVhost: "team/acs",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			uri, err := amqp.ParseURI(tt.config.URL())
			require.NoError(t, err)

			assert.Equal(t, tt.config.Host, uri.Host)
			assert.Equal(t, tt.config.Port, uri.Port)
			assert.Equal(t, tt.config.User, uri.Username)
			assert.Equal(t, tt.config.Password, uri.Password)
			assert.Equal(t, tt.wantVhost, uri.Vhost)
		})
	}
}

func TestEnvironmentDetector(t *testing.T) {
	d := &EnvironmentDetector{environ: func() []string {
		return []string{
			"ACS_RJ_API_URL=https://rj",
			"ACS_SP_API_URL=https://sp",
			"ACS_CLOUDSTACK_API_URL=https://prefixed",
			"ACS_EMPTY_API_URL=",
			"PATH=/usr/bin",
		}
	}}

	assert.Equal(t, []string{"rj", "sp"}, d.Detect())
	assert.Equal(t, "", d.Single())

	d.environ = func() []string { return []string{"ACS_RJ_API_URL=https://rj"} }
	assert.Equal(t, "rj", d.Single())
}
