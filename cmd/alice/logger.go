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
	"io"
	"os"
	"sync"

	"github.com/wojcikm/alice/pkg/config"
	"github.com/wojcikm/alice/pkg/logger"
)

const (
	// LogFileEnvVar is the environment variable name for log file path
	LogFileEnvVar = "LOG_FILE"
	// LogLevelEnvVar is the environment variable name for log level
	LogLevelEnvVar = "LOG_LEVEL"
	// LogFormatEnvVar is the environment variable name for log format
	LogFormatEnvVar = "LOG_FORMAT"

	DefaultLogLevel  = "info"
	DefaultLogFormat = "simple"
)

type logSettings struct {
	Level  string
	File   string
	Format string
}

// logSettings resolves each setting as CLI flag > env var > config file >
// default. cfg may be nil before the configuration is loaded.
func (cli *CLI) logSettings(cfg *config.LoggerConfig) logSettings {
	if cfg == nil {
		cfg = &config.LoggerConfig{}
	}
	return logSettings{
		Level:  firstNonEmpty(cli.LogLevel, os.Getenv(LogLevelEnvVar), cfg.Level, DefaultLogLevel),
		File:   firstNonEmpty(cli.LogFile, os.Getenv(LogFileEnvVar), cfg.File),
		Format: firstNonEmpty(cli.LogFormat, os.Getenv(LogFormatEnvVar), cfg.Format, DefaultLogFormat),
	}
}

// logSink owns the current log output and reopens it when the settings
// change.
type logSink struct {
	mu      sync.Mutex
	current logSettings
	cleanup func()
}

func (s *logSink) apply(settings logSettings) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if settings == s.current {
		return nil
	}

	level, err := logger.ParseLevel(settings.Level)
	if err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}

	var output io.Writer = os.Stderr
	var cleanup func()
	if settings.File != "" {
		file, cleanupFn, err := logger.OpenLogFile(settings.File)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		output = file
		cleanup = cleanupFn
	}

	logger.Init(level, output, settings.Format)

	if s.cleanup != nil {
		s.cleanup()
	}
	s.current = settings
	s.cleanup = cleanup
	return nil
}

func (s *logSink) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cleanup != nil {
		s.cleanup()
		s.cleanup = nil
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
