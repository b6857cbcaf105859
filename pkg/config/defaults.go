package config

import (
	"time"

	"github.com/spf13/viper"
)

// DefaultProcessID is the cost allocation process every new VM is linked to
// when no other process is configured
const DefaultProcessID = "7a9456320f328700fd7f91dbe1050e27"

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		CloudStack: CloudStackConfig{
			VerifySSL:  true,
			Timeout:    30 * time.Second,
			MaxRetries: 3,
			RateLimit:  10,
			RateBurst:  5,
			PageSize:   500,
		},
		Queue: QueueConfig{
			Backend:  BackendRabbitMQ,
			Exchange: "cloudstack-events",
		},
		RabbitMQ: RabbitMQConfig{
			Port:             5672,
			VirtualHost:      "/",
			LoaderRoutingKey: "globomap.updates",
		},
		NATS: NATSConfig{
			Stream:        "CLOUDSTACK",
			Subject:       "cloudstack-events.>",
			Consumer:      "globomap-acs",
			LoaderSubject: "globomap.updates",
			FetchTimeout:  2 * time.Second,
			ReconnectWait: 2 * time.Second,
			MaxReconnects: 10,
		},
		Loader: LoaderConfig{
			Backend:        BackendHTTP,
			PublishTimeout: 30 * time.Second,
			MaxRetries:     2,
			RetryBackoff:   time.Second,
			HTTP: HTTPConfig{
				DriverName: "cloudstack",
			},
			Neo4j: Neo4jConfig{
				URI:      "bolt://localhost:7687",
				Username: "neo4j",
				Database: "neo4j",
			},
			Stdout: StdoutConfig{
				Format: "json",
			},
		},
		Dictionary: DictionaryConfig{
			DefaultProcessID: DefaultProcessID,
		},
		Metrics: MetricsConfig{
			Listen: ":9102",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// setDefaults registers every key with viper so that environment variables
// resolve even when the config file does not mention them
func setDefaults(v *viper.Viper) {
	d := DefaultConfig()

	v.SetDefault("environment", "")

	v.SetDefault("cloudstack.api_url", "")
	v.SetDefault("cloudstack.api_key", "")
	v.SetDefault("cloudstack.secret_key", "")
	v.SetDefault("cloudstack.verify_ssl", d.CloudStack.VerifySSL)
	v.SetDefault("cloudstack.timeout", d.CloudStack.Timeout)
	v.SetDefault("cloudstack.max_retries", d.CloudStack.MaxRetries)
	v.SetDefault("cloudstack.rate_limit", d.CloudStack.RateLimit)
	v.SetDefault("cloudstack.rate_burst", d.CloudStack.RateBurst)
	v.SetDefault("cloudstack.page_size", d.CloudStack.PageSize)

	v.SetDefault("queue.backend", d.Queue.Backend)
	v.SetDefault("queue.exchange", d.Queue.Exchange)
	v.SetDefault("queue.routing_keys", []string{})

	v.SetDefault("rabbitmq.host", "")
	v.SetDefault("rabbitmq.port", d.RabbitMQ.Port)
	v.SetDefault("rabbitmq.user", "")
	v.SetDefault("rabbitmq.password", "")
	v.SetDefault("rabbitmq.virtual_host", d.RabbitMQ.VirtualHost)
	v.SetDefault("rabbitmq.queue", "")
	v.SetDefault("rabbitmq.loader_exchange", "")
	v.SetDefault("rabbitmq.loader_routing_key", d.RabbitMQ.LoaderRoutingKey)

	v.SetDefault("nats.url", "")
	v.SetDefault("nats.stream", d.NATS.Stream)
	v.SetDefault("nats.subject", d.NATS.Subject)
	v.SetDefault("nats.consumer", d.NATS.Consumer)
	v.SetDefault("nats.loader_subject", d.NATS.LoaderSubject)
	v.SetDefault("nats.fetch_timeout", d.NATS.FetchTimeout)
	v.SetDefault("nats.reconnect_wait", d.NATS.ReconnectWait)
	v.SetDefault("nats.max_reconnects", d.NATS.MaxReconnects)

	v.SetDefault("loader.backend", d.Loader.Backend)
	v.SetDefault("loader.publish_timeout", d.Loader.PublishTimeout)
	v.SetDefault("loader.max_retries", d.Loader.MaxRetries)
	v.SetDefault("loader.retry_backoff", d.Loader.RetryBackoff)
	v.SetDefault("loader.http.url", "")
	v.SetDefault("loader.http.username", "")
	v.SetDefault("loader.http.password", "")
	v.SetDefault("loader.http.driver_name", d.Loader.HTTP.DriverName)
	v.SetDefault("loader.neo4j.uri", d.Loader.Neo4j.URI)
	v.SetDefault("loader.neo4j.username", d.Loader.Neo4j.Username)
	v.SetDefault("loader.neo4j.password", "")
	v.SetDefault("loader.neo4j.database", d.Loader.Neo4j.Database)
	v.SetDefault("loader.stdout.format", d.Loader.Stdout.Format)

	v.SetDefault("dictionary.default_process_id", d.Dictionary.DefaultProcessID)

	v.SetDefault("metrics.enabled", d.Metrics.Enabled)
	v.SetDefault("metrics.listen", d.Metrics.Listen)

	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
}
