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

// Package mounts owns the drive table. All mounts, unmounts and host event
// reconciliation run on one goroutine; everything else reads snapshots.
package mounts

import (
	"context"
	"errors"
	"fmt"

	"github.com/ZaparooProject/zaparoo-dosdrives/pkg/api/models"
	"github.com/ZaparooProject/zaparoo-dosdrives/pkg/config"
	"github.com/ZaparooProject/zaparoo-dosdrives/pkg/drives"
	"github.com/ZaparooProject/zaparoo-dosdrives/pkg/drives/volumes"
	"github.com/ZaparooProject/zaparoo-dosdrives/pkg/drives/watcher"
	"github.com/ZaparooProject/zaparoo-dosdrives/pkg/guest"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// ErrStopped is returned for requests made after the coordinator loop has
// exited.
var ErrStopped = errors.New("mount coordinator stopped")

// Classifier is the path decision logic the coordinator relies on.
type Classifier interface {
	Stat(path string) (drives.HostPath, error)
	Classify(path string) (drives.Kind, error)
	IsExecutablePayload(path string) bool
	ShouldMountSeparately(path string, existing []drives.Drive) (bool, error)
	PreferredMountPoint(path string, preferSourceImage bool) (string, error)
}

// Tracker hands out and takes back filesystem watches.
type Tracker interface {
	StartTracking(root string) (drives.WatchHandle, error)
	StopTracking(h drives.WatchHandle) error
}

// BulkMounter mounts every optical volume that has no drive yet.
type BulkMounter interface {
	MountAllUnmounted(ctx context.Context, m volumes.Mounter) (bool, error)
}

type Options struct {
	Classifier Classifier
	Tracker    Tracker
	Table      *drives.Table
	// Config may be nil; built-in defaults are used.
	Config *config.Instance
	// Scanner is optional; without it MountOpticalVolumes fails.
	Scanner BulkMounter
	// Guest is optional; OpenPath still resolves paths without one.
	Guest guest.Guest
	Clock clockwork.Clock
	// Events from the filesystem watcher. May be nil.
	Events <-chan watcher.Event
	// Notifications receives drives.added and drives.removed. May be nil.
	Notifications chan<- models.Notification
}

type Coordinator struct {
	classifier Classifier
	tracker    Tracker
	table      *drives.Table
	cfg        *config.Instance
	scanner    BulkMounter
	guest      guest.Guest
	clock      clockwork.Clock
	events     <-chan watcher.Event
	ns         chan<- models.Notification
	ops        chan func()
	done       chan struct{}
}

func New(opts Options) *Coordinator { //nolint:gocritic // options copied once
	clock := opts.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	cfg := opts.Config
	if cfg == nil {
		cfg = config.NewMemoryConfig(config.Values{})
	}
	table := opts.Table
	if table == nil {
		table = drives.NewTable(cfg.ReservedLetters())
	}
	return &Coordinator{
		classifier: opts.Classifier,
		tracker:    opts.Tracker,
		table:      table,
		cfg:        cfg,
		scanner:    opts.Scanner,
		guest:      opts.Guest,
		clock:      clock,
		events:     opts.Events,
		ns:         opts.Notifications,
		ops:        make(chan func()),
		done:       make(chan struct{}),
	}
}

// Run is the single writer. It returns when ctx is cancelled, after
// releasing every remaining drive's watch.
func (c *Coordinator) Run(ctx context.Context) error {
	defer close(c.done)
	defer c.teardown()

	events := c.events
	for {
		select {
		case <-ctx.Done():
			return nil
		case op := <-c.ops:
			op()
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			c.reconcile(ctx, ev)
		}
	}
}

// Done is closed once Run has returned.
func (c *Coordinator) Done() <-chan struct{} {
	return c.done
}

// submit runs fn on the loop. ctx only bounds the wait for the loop to pick
// the request up; once started, fn runs to completion.
func (c *Coordinator) submit(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	op := func() {
		defer close(finished)
		fn()
	}

	select {
	case c.ops <- op:
	case <-ctx.Done():
		return fmt.Errorf("waiting for mount coordinator: %w", ctx.Err())
	case <-c.done:
		return ErrStopped
	}

	<-finished
	return nil
}

// ListVisible returns user-facing drives. Safe from any goroutine.
func (c *Coordinator) ListVisible() []drives.Drive {
	return c.table.ListVisible()
}

// Drives returns every drive, internal and hidden included.
func (c *Coordinator) Drives() []drives.Drive {
	return c.table.All()
}

// teardown releases all watches when the loop exits so none outlive the
// process's drive set.
func (c *Coordinator) teardown() {
	all := c.table.All()
	letters := make([]string, 0, len(all))
	for i := range all {
		c.stopWatch(&all[i])
		letters = append(letters, all[i].Letter)
	}
	c.table.RemoveAll(letters)
	if len(all) > 0 {
		log.Info().Int("drives", len(all)).Msg("released all drives")
	}
}

func (c *Coordinator) stopWatch(d *drives.Drive) {
	if !d.Watch.Valid() {
		return
	}
	if err := c.tracker.StopTracking(d.Watch); err != nil {
		log.Warn().Err(err).Str("letter", d.Letter).Str("root", d.Root).Msg("failed to release drive watch")
	}
}
