// Copyright 2026 The Alice Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Command alice is the CLI for the Alice assistant.
//
// Usage:
//
//	alice chat --config alice.yaml
//	alice chat "Remember that my trip to Paris is in June"
//	alice serve --config alice.yaml --watch
//	alice memory list --category resources
//	alice ingest ./notes.pdf
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"

	"github.com/wojcikm/alice"
	"github.com/wojcikm/alice/pkg/config"
	"github.com/wojcikm/alice/pkg/runtime"
)

// CLI defines the command-line interface.
type CLI struct {
	Version VersionCmd `cmd:"" help:"Show version information."`
	Chat    ChatCmd    `cmd:"" help:"Talk to the assistant in the terminal."`
	Serve   ServeCmd   `cmd:"" help:"Start the HTTP server."`
	Memory  MemoryCmd  `cmd:"" help:"Manage long-term memories."`
	Ingest  IngestCmd  `cmd:"" help:"Load files into the document index."`
	Schema  SchemaCmd  `cmd:"" help:"Print the JSON Schema of the configuration."`

	Config    string `short:"c" help:"Path to config file." type:"path" env:"ALICE_CONFIG"`
	LogLevel  string `help:"Log level (debug, info, warn, error)."`
	LogFile   string `help:"Log file path (empty = stderr)."`
	LogFormat string `help:"Log format (simple, verbose, json)."`

	log *logSink `kong:"-"`
}

// VersionCmd shows version information.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	fmt.Println(alice.GetVersion())
	return nil
}

// loadConfig reads the configuration and applies its log section unless a
// flag or environment variable overrides it.
func (cli *CLI) loadConfig(ctx context.Context, opts ...config.LoaderOption) (*config.Config, *config.Loader, error) {
	cfg, loader, err := config.LoadConfigFile(ctx, cli.Config, opts...)
	if err != nil {
		return nil, nil, err
	}
	if cli.Config != "" {
		slog.Info("Loaded configuration", "path", cli.Config)
	}
	if err := cli.log.apply(cli.logSettings(&cfg.Log)); err != nil {
		if loader != nil {
			_ = loader.Close()
		}
		return nil, nil, err
	}
	return cfg, loader, nil
}

// openRuntime loads the configuration and wires the runtime.
func (cli *CLI) openRuntime(ctx context.Context) (*runtime.Runtime, error) {
	cfg, loader, err := cli.loadConfig(ctx)
	if err != nil {
		return nil, err
	}
	if loader != nil {
		_ = loader.Close()
	}
	rt, err := runtime.New(ctx, runtime.Options{Config: cfg})
	if err != nil {
		return nil, fmt.Errorf("failed to create runtime: %w", err)
	}
	return rt, nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			slog.Info("Shutting down...")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()
	return ctx, cancel
}

func main() {
	if err := config.LoadEnvFiles(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}

	cli := CLI{log: &logSink{}}
	ctx := kong.Parse(&cli,
		kong.Name("alice"),
		kong.Description("Alice - a personal assistant with long-term memory"),
		kong.UsageOnError(),
	)

	if err := cli.log.apply(cli.logSettings(nil)); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer cli.log.close()

	err := ctx.Run(&cli)
	ctx.FatalIfErrorf(err)
}
