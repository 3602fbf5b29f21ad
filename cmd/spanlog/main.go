package main

import (
	"context"
	"os"
	"time"

	"github.com/spanlog/spanlog/log"
	"github.com/spanlog/spanlog/option"
	"github.com/spanlog/spanlog/trace"

	"github.com/sagernet/sing/common/json"
	"github.com/spf13/cobra"
)

var configPath string

var mainCommand = &cobra.Command{
	Use:   "spanlog",
	Short: "structured logging pipeline demo",
}

var runCommand = &cobra.Command{
	Use:   "run",
	Short: "emit sample request traffic through the configured pipeline",
	RunE: func(cmd *cobra.Command, args []string) error {
		return run()
	},
}

func init() {
	mainCommand.PersistentFlags().StringVarP(&configPath, "config", "c", "", "configuration file path")
	mainCommand.AddCommand(runCommand)
}

func main() {
	if err := mainCommand.Execute(); err != nil {
		os.Exit(1)
	}
}

func readOptions() (option.LogOptions, error) {
	options := option.LogOptions{Enabled: true}
	if configPath == "" {
		return options, nil
	}
	content, err := os.ReadFile(configPath)
	if err != nil {
		return option.LogOptions{}, err
	}
	err = json.Unmarshal(content, &options)
	if err != nil {
		return option.LogOptions{}, err
	}
	return options, nil
}

func run() error {
	logOptions, err := readOptions()
	if err != nil {
		return err
	}
	factory, err := log.New(log.Options{
		Context: context.Background(),
		Options: logOptions,
	})
	if err != nil {
		return err
	}
	if err = factory.Start(); err != nil {
		return err
	}
	defer factory.Close()

	logger := factory.NewLogger("demo")
	ctx := log.ContextWithThreadName(context.Background(), "demo-worker")

	ctx, request := trace.Begin(ctx, "request",
		trace.Attr{Key: "method", Value: "POST"},
		trace.Attr{Key: "path", Value: "/query"},
	)
	logger.InfoContext(ctx, "request started")

	childCtx, operation := trace.Begin(ctx, "execute", trace.Attr{Key: "operation", Value: "demo"})
	for i := 0; i < 10; i++ {
		logger.DebugContext(childCtx, "executing step", log.Field{Key: "step", Value: i})
		time.Sleep(10 * time.Millisecond)
	}
	operation.Record("rows", 42)
	logger.InfoContext(childCtx, "execution finished", log.Field{Key: "rows", Value: 42})
	operation.End()

	request.Record("status", 200)
	logger.InfoContext(ctx, "request finished", log.Field{Key: "status", Value: 200})
	request.End()
	return nil
}
