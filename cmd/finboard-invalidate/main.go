// Command finboard-invalidate tells running finboard instances that the
// cached data of an entity is stale, typically after the spreadsheet was
// edited.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"finboard/internal/amqp"
	"finboard/internal/cli"
	"finboard/internal/log"
	"finboard/internal/sources"
)

func main() {
	entity := flag.String("entity", "", fmt.Sprintf("entity to invalidate, one of %v", sources.Entities))
	user := flag.String("user", "", "user id to target; empty invalidates every user")
	all := flag.Bool("all-entities", false, "invalidate every entity")
	timeout := flag.Duration("timeout", 10*time.Second, "publish timeout")
	flag.Parse()

	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	cfg := cli.LoadAndValidateConfig(logger)

	var targets []sources.Entity
	switch {
	case *all:
		targets = sources.Entities
	case *entity != "":
		e, err := sources.ParseEntity(*entity)
		if err != nil {
			logger.Error("Invalid entity", log.FieldError, err)
			os.Exit(2)
		}
		targets = []sources.Entity{e}
	default:
		flag.Usage()
		os.Exit(2)
	}

	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required to publish invalidations")
		os.Exit(1)
	}

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, logger)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
		os.Exit(1)
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	for _, e := range targets {
		if err := client.PublishInvalidation(ctx, string(e), *user); err != nil {
			logger.Error("Failed to publish invalidation", log.FieldError, err, log.FieldEntity, e)
			client.Close()
			os.Exit(1)
		}
	}
	logger.Info("Published cache invalidations", log.FieldCount, len(targets), log.FieldUserID, *user)
}
