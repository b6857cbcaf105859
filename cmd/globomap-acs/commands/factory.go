package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/globomap/acs-driver/internal/collectors"
	"github.com/globomap/acs-driver/internal/collectors/cloudstack"
	"github.com/globomap/acs-driver/internal/documents"
	"github.com/globomap/acs-driver/internal/logger"
	"github.com/globomap/acs-driver/internal/metrics"
	"github.com/globomap/acs-driver/internal/queue"
	"github.com/globomap/acs-driver/internal/sink"
	"github.com/globomap/acs-driver/pkg/config"
)

// closer releases what a factory opened
type closer func() error

func newInventory(c *config.Config, m *metrics.Metrics, log logger.Logger) collectors.Inventory {
	client := cloudstack.NewClient(cloudstack.ClientConfig{
		APIURL:     c.CloudStack.APIURL,
		APIKey:     c.CloudStack.APIKey,
		SecretKey:  c.CloudStack.SecretKey,
		VerifySSL:  c.CloudStack.VerifySSL,
		Timeout:    c.CloudStack.Timeout,
		MaxRetries: c.CloudStack.MaxRetries,
		RateLimit:  c.CloudStack.RateLimit,
		RateBurst:  c.CloudStack.RateBurst,
	}, log)

	var caller cloudstack.Caller = client
	if m != nil {
		caller = cloudstack.Metered(client, m)
	}
	return cloudstack.NewService(caller, c.CloudStack.PageSize, log)
}

func newSynthesizer(c *config.Config, inventory collectors.Inventory, log logger.Logger) *documents.Synthesizer {
	return documents.NewSynthesizer(inventory, documents.Options{
		Environment:      c.Environment,
		DefaultProcessID: c.Dictionary.DefaultProcessID,
	}, log)
}

func newQueue(c *config.Config, log logger.Logger) (queue.Queue, error) {
	switch c.Queue.Backend {
	case config.BackendNATS:
		return queue.NewNATS(queue.NATSConfig{
			URL:           c.NATS.URL,
			Stream:        c.NATS.Stream,
			Subject:       c.NATS.Subject,
			Consumer:      c.NATS.Consumer,
			FetchTimeout:  c.NATS.FetchTimeout,
			ReconnectWait: c.NATS.ReconnectWait,
			MaxReconnects: c.NATS.MaxReconnects,
		}, log)
	default:
		return queue.NewRabbitMQ(queue.RabbitMQConfig{
			URL:   c.RabbitMQ.URL(),
			Queue: c.RabbitMQ.Queue,
		}, nil, log)
	}
}

// routingKeys returns the configured keys or the default VM and zone keys
func routingKeys(c *config.Config) []string {
	if len(c.Queue.RoutingKeys) > 0 {
		return c.Queue.RoutingKeys
	}
	return queue.DefaultRoutingKeys
}

// newSink builds the configured loader sink. Every backend but stdout is
// wrapped with the publish timeout and retry policy.
func newSink(ctx context.Context, c *config.Config, log logger.Logger) (sink.Sink, closer, error) {
	var (
		s       sink.Sink
		release closer = func() error { return nil }
	)

	switch c.Loader.Backend {
	case config.BackendHTTP:
		s = sink.NewHTTP(sink.HTTPConfig{
			URL:        c.Loader.HTTP.URL,
			Username:   c.Loader.HTTP.Username,
			Password:   c.Loader.HTTP.Password,
			DriverName: c.Loader.HTTP.DriverName,
			Timeout:    c.Loader.PublishTimeout,
		}, nil, log)

	case config.BackendRabbitMQ:
		publisher, err := sink.NewRabbitMQ(sink.RabbitMQConfig{
			URL:        c.RabbitMQ.URL(),
			Exchange:   c.RabbitMQ.LoaderExchange,
			RoutingKey: c.RabbitMQ.LoaderRoutingKey,
		}, nil, log)
		if err != nil {
			return nil, nil, err
		}
		s, release = publisher, publisher.Close

	case config.BackendNATS:
		publisher, err := sink.NewNATS(sink.NATSConfig{
			URL:           c.NATS.URL,
			Subject:       c.NATS.LoaderSubject,
			ReconnectWait: c.NATS.ReconnectWait,
			MaxReconnects: c.NATS.MaxReconnects,
		}, log)
		if err != nil {
			return nil, nil, err
		}
		s, release = publisher, publisher.Close

	case config.BackendNeo4j:
		graph, err := sink.NewNeo4j(ctx, sink.Neo4jConfig{
			URI:      c.Loader.Neo4j.URI,
			Username: c.Loader.Neo4j.Username,
			Password: c.Loader.Neo4j.Password,
			Database: c.Loader.Neo4j.Database,
		}, log)
		if err != nil {
			return nil, nil, err
		}
		s, release = graph, func() error { return graph.Close(context.Background()) }

	case config.BackendStdout:
		w, err := sink.NewWriter(os.Stdout, c.Loader.Stdout.Format)
		if err != nil {
			return nil, nil, err
		}
		return w, w.Close, nil

	default:
		return nil, nil, fmt.Errorf("unknown loader backend %q", c.Loader.Backend)
	}

	retry := sink.NewRetry(s, sink.RetryConfig{
		Timeout:    c.Loader.PublishTimeout,
		MaxRetries: c.Loader.MaxRetries,
		Backoff:    c.Loader.RetryBackoff,
	}, log)
	return retry, release, nil
}

// startMetrics serves metrics when enabled. The returned stop function is
// always safe to call.
func startMetrics(c *config.Config, log logger.Logger) (*metrics.Metrics, func()) {
	if !c.Metrics.Enabled {
		return nil, func() {}
	}
	m := metrics.New()
	server := metrics.NewServer(c.Metrics.Listen, m, log)
	server.Start()
	return m, func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			log.Error("Failed to stop metrics server", err)
		}
	}
}
