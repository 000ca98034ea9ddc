package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"

	"astrochat/backend/internal/config"
	"astrochat/backend/internal/consultation"
	"astrochat/backend/internal/storage"

	"github.com/benbjohnson/clock"
	"go.uber.org/multierr"
)

var errUsage = errors.New("usage")

func usage() {
	fmt.Println("Usage: admin <command> [args]")
	fmt.Println("  sweep                              expire overdue pending requests")
	fmt.Println("  stats <provider_id>                print a provider's consultation stats")
	fmt.Println("  availability <user_id> on|off      set a user's availability")
}

func main() {
	err := run(context.Background(), os.Args[1:])
	if errors.Is(err, errUsage) {
		usage()
		os.Exit(2)
	}
	if err != nil {
		log.Fatalf("admin: %v", err)
	}
}

// run executes one command. Every command works on users and consultation
// requests only, so just Postgres is opened.
func run(ctx context.Context, args []string) (err error) {
	if len(args) == 0 {
		return errUsage
	}
	cmd, err := parseCommand(args)
	if err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.StorageDriver != config.StorageDriverPostgres {
		return fmt.Errorf("admin needs STORAGE_DRIVER=%s", config.StorageDriverPostgres)
	}

	db, err := storage.OpenPostgres(cfg.PostgresDSN)
	if err != nil {
		return fmt.Errorf("failed to connect database: %w", err)
	}
	storageSvc := storage.NewStorageService(db, nil, nil)
	defer func() {
		err = multierr.Append(err, storageSvc.Close(ctx))
	}()

	// Connections are owned by the server process, so nothing is pushed from here.
	broker := consultation.NewBroker(storageSvc, consultation.NopNotifier{}, clock.New(), nil, nil)
	return cmd(ctx, broker)
}

type command func(ctx context.Context, broker *consultation.Broker) error

// parseCommand validates arguments before any connection is opened.
func parseCommand(args []string) (command, error) {
	switch args[0] {
	case "sweep":
		if len(args) != 1 {
			return nil, errUsage
		}
		return func(ctx context.Context, broker *consultation.Broker) error {
			n, err := broker.Sweep(ctx)
			if err != nil {
				return fmt.Errorf("sweep: %w", err)
			}
			fmt.Printf("%d request(s) expired.\n", n)
			return nil
		}, nil
	case "stats":
		if len(args) != 2 {
			return nil, errUsage
		}
		providerID := args[1]
		return func(ctx context.Context, broker *consultation.Broker) error {
			stats, err := broker.StatsFor(ctx, providerID)
			if err != nil {
				return fmt.Errorf("stats: %w", err)
			}
			out, err := json.MarshalIndent(stats, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		}, nil
	case "availability":
		if len(args) != 3 {
			return nil, errUsage
		}
		userID := args[1]
		var on bool
		switch args[2] {
		case "on":
			on = true
		case "off":
		default:
			return nil, errUsage
		}
		return func(ctx context.Context, broker *consultation.Broker) error {
			user, err := broker.SetAvailability(ctx, userID, on)
			if err != nil {
				return fmt.Errorf("availability: %w", err)
			}
			fmt.Printf("User %s is now available=%t.\n", user.ID, user.IsAvailable)
			return nil
		}, nil
	}
	return nil, errUsage
}
