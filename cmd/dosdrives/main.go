// Zaparoo DOS Drives
// Copyright (c) 2026 The Zaparoo Project Contributors.
// SPDX-License-Identifier: GPL-3.0-or-later
//
// This file is part of Zaparoo DOS Drives.
//
// Zaparoo DOS Drives is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Zaparoo DOS Drives is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with Zaparoo DOS Drives.  If not, see <http://www.gnu.org/licenses/>.

package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/ZaparooProject/zaparoo-dosdrives/internal/telemetry"
	"github.com/ZaparooProject/zaparoo-dosdrives/pkg/api/client"
	"github.com/ZaparooProject/zaparoo-dosdrives/pkg/api/models"
	"github.com/ZaparooProject/zaparoo-dosdrives/pkg/config"
	"github.com/ZaparooProject/zaparoo-dosdrives/pkg/helpers"
	"github.com/adrg/xdg"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	if err := run(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

type flags struct {
	configDir    string
	mount        string
	unmount      string
	open         string
	daemon       bool
	version      bool
	mountOptical bool
	list         bool
}

func parseFlags() flags {
	var f flags
	flag.StringVar(&f.configDir, "config", filepath.Join(xdg.ConfigHome, config.AppName),
		"directory holding "+config.CfgFile)
	flag.BoolVar(&f.daemon, "daemon", false, "log to the console as well as the log file")
	flag.BoolVar(&f.version, "version", false, "print version and exit")
	flag.StringVar(&f.mount, "mount", "", "mount `path` once the drive service starts")
	flag.BoolVar(&f.mountOptical, "mount-optical", false, "mount every inserted CD/DVD at startup")
	flag.BoolVar(&f.list, "list", false, "list drives on the running service and exit")
	flag.StringVar(&f.unmount, "unmount", "", "unmount drive `letter` on the running service and exit")
	flag.StringVar(&f.open, "open", "", "open `path` on the running service and exit")
	flag.Parse()
	return f
}

func run() error {
	f := parseFlags()

	if f.version {
		_, _ = fmt.Fprintf(os.Stdout, "%s %s\n", config.AppName, config.AppVersion)
		return nil
	}

	var logWriters []io.Writer
	if f.daemon {
		logWriters = []io.Writer{zerolog.ConsoleWriter{Out: os.Stderr}}
	}
	logDir := filepath.Join(xdg.DataHome, config.AppName)
	if err := helpers.InitLogging(logDir, false, logWriters); err != nil {
		return fmt.Errorf("error initializing logging: %w", err)
	}

	cfg, err := config.NewConfig(f.configDir, config.BaseDefaults)
	if err != nil {
		log.Error().Err(err).Msg("error loading config")
		return fmt.Errorf("error loading config: %w", err)
	}
	if cfg.DebugLogging() {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if call, ok := clientCall(f); ok {
		return callRunning(ctx, cfg, call)
	}

	dsn, reporting := cfg.TelemetryDSN()
	if err := telemetry.Init(telemetry.Options{
		Enabled:    reporting,
		DSN:        dsn,
		DeviceID:   cfg.InstanceID(),
		AppVersion: config.AppVersion,
	}); err != nil {
		log.Warn().Err(err).Msg("error reporting unavailable")
	}
	defer telemetry.Close()

	defer func() {
		if r := recover(); r != nil {
			_, _ = fmt.Fprintf(os.Stderr, "Panic: %v\n", r)
			log.Fatal().Msgf("panic: %v", r)
		}
	}()

	log.Info().
		Str("version", config.AppVersion).
		Str("config", cfg.Path()).
		Msg("starting drive service")

	err = runDaemon(ctx, cfg, daemonOptions{
		initialMount: absPath(f.mount),
		mountOptical: f.mountOptical,
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("drive service stopped")
		return err
	}
	log.Info().Msg("drive service stopped")
	return nil
}

type apiCall struct {
	method string
	params string
}

// clientCall picks the one-shot command to send to an already running
// service, if any was requested.
func clientCall(f flags) (apiCall, bool) { //nolint:gocritic // flags copied once
	switch {
	case f.list:
		return apiCall{method: models.MethodDrives}, true
	case f.unmount != "":
		return apiCall{method: models.MethodDrivesUnmount, params: jsonParams("letter", f.unmount)}, true
	case f.open != "":
		return apiCall{method: models.MethodDrivesOpen, params: jsonParams("path", absPath(f.open))}, true
	}
	return apiCall{}, false
}

func jsonParams(key, value string) string {
	data, err := json.Marshal(map[string]string{key: value})
	if err != nil {
		return ""
	}
	return string(data)
}

// absPath resolves relative CLI paths against the working directory, since
// the service only accepts absolute host paths.
func absPath(path string) string {
	if path == "" {
		return ""
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	return abs
}

func callRunning(ctx context.Context, cfg *config.Instance, call apiCall) error {
	resp, err := client.NewLocalAPIClient(cfg).Call(ctx, call.method, call.params)
	if err != nil {
		return fmt.Errorf("%s: %w", call.method, err)
	}
	_, _ = fmt.Fprintln(os.Stdout, resp)
	return nil
}
