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
	"errors"
	"fmt"
	"time"

	"github.com/ZaparooProject/zaparoo-dosdrives/pkg/api"
	"github.com/ZaparooProject/zaparoo-dosdrives/pkg/api/models"
	"github.com/ZaparooProject/zaparoo-dosdrives/pkg/config"
	"github.com/ZaparooProject/zaparoo-dosdrives/pkg/drives/classifier"
	"github.com/ZaparooProject/zaparoo-dosdrives/pkg/drives/volumes"
	"github.com/ZaparooProject/zaparoo-dosdrives/pkg/drives/watcher"
	"github.com/ZaparooProject/zaparoo-dosdrives/pkg/guest"
	"github.com/ZaparooProject/zaparoo-dosdrives/pkg/service/mounts"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"
)

const (
	// notificationBuffer covers a full table's worth of adds and removes so
	// a shutdown unmount never waits on the broadcaster.
	notificationBuffer = 100
	shutdownTimeout    = 10 * time.Second
)

type daemonOptions struct {
	initialMount string
	mountOptical bool
}

func runDaemon(ctx context.Context, cfg *config.Instance, opts daemonOptions) error {
	scanner := volumes.NewScanner(nil)
	cls := classifier.New(afero.NewOsFs(), classifier.Options{
		Volumes:           scanner,
		SourceImages:      volumes.LoopImageResolver{},
		ImageExtensions:   cfg.ImageExtensions(),
		SeparateKinds:     classifier.ParseSeparateKinds(cfg.SeparateKinds()),
		AllowSourceImages: cfg.AllowSourceImages(),
	})

	var detector watcher.VolumeDetector
	if cfg.VolumeEvents() {
		detector = watcher.NewVolumeDetector()
	}
	w, err := watcher.New(watcher.Options{
		Detector: detector,
		Debounce: cfg.WatchDebounce(),
	})
	if err != nil {
		return fmt.Errorf("starting watcher: %w", err)
	}
	w.Start()
	defer w.Stop()

	ns := make(chan models.Notification, notificationBuffer)
	coord := mounts.New(mounts.Options{
		Classifier:    cls,
		Tracker:       w,
		Config:        cfg,
		Scanner:       scanner,
		Guest:         guest.LogGuest{},
		Events:        w.Events(),
		Notifications: ns,
	})

	// The coordinator outlives the request handlers so shutdown can still
	// unmount through it.
	coordCtx, stopCoord := context.WithCancel(context.Background())
	defer func() {
		stopCoord()
		<-coord.Done()
	}()
	go func() {
		if err := coord.Run(coordCtx); err != nil {
			log.Error().Err(err).Msg("mount coordinator failed")
		}
	}()

	srv := api.NewServer(cfg, coord, nil)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Serve(gctx, ns)
	})
	g.Go(func() error {
		seedDrives(gctx, coord, opts)
		return nil
	})
	err = g.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	n, unmountErr := coord.UnmountAll(shutdownCtx, nil)
	log.Info().Int("drives", n).Msg("unmounted drives on shutdown")

	return errors.Join(err, unmountErr)
}

// seedDrives applies the startup mounts requested on the command line.
func seedDrives(ctx context.Context, coord *mounts.Coordinator, opts daemonOptions) {
	if opts.initialMount != "" {
		res, err := coord.MountForPath(ctx, opts.initialMount)
		switch {
		case err != nil:
			log.Error().Err(err).Str("path", opts.initialMount).Msg("initial mount failed")
		case res.Rejected:
			log.Info().Str("path", opts.initialMount).Str("reason", res.Reason.String()).Msg("initial mount skipped")
		default:
			log.Info().Str("path", opts.initialMount).Str("letter", res.Drive.Letter).Msg("initial mount")
		}
	}

	if opts.mountOptical {
		if _, err := coord.MountOpticalVolumes(ctx); err != nil {
			log.Error().Err(err).Msg("mounting optical volumes at startup")
		}
	}
}
