package main

import (
	"context"
	"expvar"
	"fmt"
	"os"
	"runtime"

	flag "github.com/spf13/pflag"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/hilthontt/syncbroker/internal/audit"
	"github.com/hilthontt/syncbroker/internal/broker"
	"github.com/hilthontt/syncbroker/internal/config"
	"github.com/hilthontt/syncbroker/internal/credentials"
	"github.com/hilthontt/syncbroker/internal/events"
	"github.com/hilthontt/syncbroker/internal/httpapi"
	"github.com/hilthontt/syncbroker/internal/logging"
	"github.com/hilthontt/syncbroker/internal/tracing"
)

func main() {
	if len(os.Args) < 2 || os.Args[1] != "start" {
		fmt.Fprintln(os.Stderr, "usage: syncbroker start [--port N] [--hostname H]")
		os.Exit(1)
	}

	flagSet := flag.NewFlagSet("start", flag.ExitOnError)
	flagSet.Int("port", 8100, "port to listen on")
	flagSet.String("hostname", "localhost", "hostname to bind")
	flagSet.String("config", "", "path to config file")
	_ = flagSet.Parse(os.Args[2:])

	configPath, _ := flagSet.GetString("config")
	cfg, err := config.Load(configPath, flagSet)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	logger, err := logging.New(logging.RunMode(cfg.Logger.RunMode))
	if err != nil {
		fmt.Fprintln(os.Stderr, "logging:", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx := context.Background()

	tracer, err := tracing.New(ctx, tracing.Config{
		ServiceName:    cfg.Tracing.ServiceName,
		JaegerEndpoint: cfg.Tracing.JaegerEndpoint,
		OTLPEndpoint:   cfg.Tracing.OTLPEndpoint,
	})
	if err != nil {
		logger.Fatalw("tracing setup failed", "err", err)
	}
	defer tracer.Shutdown(ctx)

	auditRecorder, auditCloser := buildAuditRecorder(ctx, cfg.Audit, logger)
	if auditCloser != nil {
		defer auditCloser()
	}

	eventPublisher, eventsCloser := buildEventPublisher(cfg.Events, logger)
	if eventsCloser != nil {
		defer eventsCloser()
	}

	creds := credentials.New()
	b := broker.New(creds, auditRecorder, eventPublisher, logger, tracer.Tracer())

	app := httpapi.NewApplication(*cfg, b, logger)

	expvar.Publish("goroutines", expvar.Func(func() any {
		return runtime.NumGoroutine()
	}))

	mux := app.Mount()
	logger.Fatal(app.Run(mux))
}

// buildAuditRecorder selects a Mongo-backed recorder when
// SYNCBROKER_AUDIT_MONGOURI is configured, falling back to a no-op so the
// broker runs standalone without external dependencies.
func buildAuditRecorder(ctx context.Context, cfg config.AuditConfig, logger *zap.SugaredLogger) (broker.AuditRecorder, func()) {
	if cfg.MongoURI == "" {
		return audit.NoopRecorder{}, nil
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		logger.Warnw("mongo connect failed, falling back to no-op audit", "err", err)
		return audit.NoopRecorder{}, nil
	}

	db := client.Database(cfg.Database)
	recorder := audit.NewMongoRecorder(db)
	if err := recorder.EnsureIndexes(ctx); err != nil {
		logger.Warnw("audit index setup failed", "err", err)
	}

	return recorder, func() { _ = client.Disconnect(context.Background()) }
}

// buildEventPublisher selects an AMQP-backed publisher when
// SYNCBROKER_EVENTS_AMQPURL is configured, falling back to a no-op.
func buildEventPublisher(cfg config.EventsConfig, logger *zap.SugaredLogger) (broker.EventPublisher, func()) {
	if cfg.AMQPURL == "" {
		return events.NoopPublisher{}, nil
	}

	publisher, err := events.NewAMQPPublisher(cfg.AMQPURL)
	if err != nil {
		logger.Warnw("amqp dial failed, falling back to no-op events", "err", err)
		return events.NoopPublisher{}, nil
	}

	return publisher, func() { _ = publisher.Close() }
}
