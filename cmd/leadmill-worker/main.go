package main

import (
	"context"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/leadmill/leadmill/pkg/cmd"
	"github.com/leadmill/leadmill/pkg/engine"
	"github.com/leadmill/leadmill/pkg/eventbus"
	"github.com/leadmill/leadmill/pkg/log"
	"github.com/leadmill/leadmill/pkg/trigger"
	cli "github.com/urfave/cli/v3"
)

const defaultPollInterval = 15 * time.Second

func main() {
	command := &cli.Command{
		Name:                  "leadmill-worker",
		Usage:                 "Run lead automation workflows",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "worker-id",
				Aliases: []string{"id"},
				Usage:   "Custom worker ID (auto-generated if not provided)",
				Value:   "",
				Sources: cli.EnvVars("WORKER_ID"),
			},
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence (redis:// or file path)",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus provider (kafka, gochannel)",
				Value:   "gochannel",
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringFlag{
				Name:    "kafka-brokers",
				Usage:   "Comma-separated Kafka broker list",
				Sources: cli.EnvVars("KAFKA_BROKERS"),
			},
			&cli.DurationFlag{
				Name:    "poll-interval",
				Usage:   "How often to poll for due delays and schedule triggers",
				Value:   defaultPollInterval,
				Sources: cli.EnvVars("POLL_INTERVAL"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			workerID := command.String("worker-id")
			if workerID == "" {
				workerID = "worker-" + uuid.New().String()[:8]
			}

			logger := log.WithModule("leadmill-worker").With("worker_id", workerID)
			logger.InfoContext(ctx, "Initializing leadmill worker")

			clock := clockwork.NewRealClock()

			persistence := cmd.NewPersistence(logger, command.String("database-url"))
			defer func() {
				if err := persistence.Close(ctx); err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			leadStore := cmd.NewLeadStore(logger, command.String("database-url"))
			registry := cmd.NewRegistry(logger, leadStore)

			bus := cmd.NewEventBus(command.String("event-bus"), command.String("kafka-brokers"), "leadmill-worker", logger)
			defer func() {
				if err := bus.Close(); err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			exec := engine.New(
				logger,
				clock,
				persistence,
				leadStore,
				registry,
				eventbus.NewNotifier(bus, logger),
			)

			worker := NewWorker(
				workerID,
				logger,
				clock,
				persistence,
				leadStore,
				exec,
				trigger.NewMatcher(logger, clock),
				bus,
				command.Duration("poll-interval"),
			)

			return worker.Run(ctx)
		},
	}

	if err := command.Run(context.Background(), os.Args); err != nil {
		panic(err)
	}
}
