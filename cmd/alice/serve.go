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

package main

import (
	"fmt"
	"log/slog"

	"github.com/wojcikm/alice/pkg/config"
	"github.com/wojcikm/alice/pkg/runtime"
	"github.com/wojcikm/alice/pkg/server"
)

// ServeCmd starts the HTTP server.
type ServeCmd struct {
	Address string `help:"Listen address. Overrides server.address." placeholder:"HOST:PORT"`
	Watch   bool   `help:"Watch the config file and apply log settings on change."`
}

func (c *ServeCmd) Run(cli *CLI) error {
	ctx, cancel := signalContext()
	defer cancel()

	onChange := func(cfg *config.Config) {
		if err := cli.log.apply(cli.logSettings(&cfg.Log)); err != nil {
			slog.Error("Failed to apply log settings", "error", err)
			return
		}
		slog.Info("Log settings applied", "level", cfg.Log.Level, "format", cfg.Log.Format)
	}

	cfg, loader, err := cli.loadConfig(ctx, config.WithOnChange(onChange))
	if err != nil {
		return err
	}
	if loader != nil {
		defer loader.Close()
	}
	if c.Address != "" {
		cfg.Server.Address = c.Address
	}

	if c.Watch {
		if loader == nil {
			slog.Warn("Nothing to watch without --config")
		} else {
			go func() {
				if err := loader.Watch(ctx); err != nil && ctx.Err() == nil {
					slog.Error("Config watch error", "error", err)
				}
			}()
		}
	}

	rt, err := runtime.New(ctx, runtime.Options{Config: cfg})
	if err != nil {
		return fmt.Errorf("failed to create runtime: %w", err)
	}
	defer rt.Close()

	srv := server.NewHTTPServer(cfg.Server, rt.Agent(), rt.Observability())

	fmt.Printf("\nAlice server ready\n")
	fmt.Printf("   Chat:    POST http://%s/api/chat\n", displayAddress(srv.Address()))
	fmt.Printf("   Health:  http://%s/health\n", displayAddress(srv.Address()))
	if cfg.Observability.Metrics.Enabled {
		fmt.Printf("   Metrics: http://%s/metrics\n", displayAddress(srv.Address()))
	}
	fmt.Println()

	return srv.Start(ctx)
}

// displayAddress turns ":8080" into "localhost:8080".
func displayAddress(addr string) string {
	if len(addr) > 0 && addr[0] == ':' {
		return "localhost" + addr
	}
	return addr
}
