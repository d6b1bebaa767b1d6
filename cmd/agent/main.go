package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/To-be-w1th0ut/intelligence-agent/internal/app"
	"github.com/To-be-w1th0ut/intelligence-agent/internal/config"
	"github.com/To-be-w1th0ut/intelligence-agent/internal/logging"
)

const usage = `Usage: agent [-config path] <command>

Commands:
  run          run one collection cycle and push the digest (-dry-run to skip delivery)
  schedule     run cycles on the configured cron cadence
  chat         serve the interactive Feishu bot
  collect      fetch from one source and print the items (-source github|hackernews)
  notify-test  send a test message through every enabled notifier
`

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(2)
	}
	command := flag.Arg(0)

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load config:", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.Logging.Level)

	application, err := app.New(cfg, logger)
	if err != nil {
		logger.Error("startup failed", "error", err)
		os.Exit(1)
	}
	defer application.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := dispatch(ctx, application, command, flag.Args()[1:]); err != nil {
		logger.Error("command failed", "command", command, "error", err)
		os.Exit(1)
	}
}

func dispatch(ctx context.Context, application *app.App, command string, args []string) error {
	switch command {
	case "run":
		fs := flag.NewFlagSet("run", flag.ExitOnError)
		dryRun := fs.Bool("dry-run", false, "render without delivering")
		fs.Parse(args)

		summary, err := application.RunOnce(ctx, *dryRun)
		if err != nil {
			return err
		}
		fmt.Printf("attempted %d, succeeded %d, failed %d, notify failures %d\n",
			summary.Attempted, summary.Succeeded, summary.Failed, summary.NotifyFailures)
		return nil

	case "schedule":
		err := application.RunSchedule(ctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err

	case "chat":
		err := application.RunChat(ctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err

	case "collect":
		fs := flag.NewFlagSet("collect", flag.ExitOnError)
		source := fs.String("source", "github", "source to collect from")
		fs.Parse(args)

		items, err := application.TestCollector(ctx, *source)
		if err != nil {
			return err
		}
		for i, item := range items {
			fmt.Printf("%2d. %s\n    %s\n", i+1, item.Title, item.URL)
		}
		return nil

	case "notify-test":
		return application.TestNotify(ctx)

	default:
		return fmt.Errorf("unknown command %q", command)
	}
}
