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

//go:build darwin

package watcher

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/ZaparooProject/zaparoo-dosdrives/pkg/drives"
	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

const (
	volumesPath   = "/Volumes"
	mntLocal      = 0x00001000
	mntDontBrowse = 0x00100000
	volumeSettle  = 100 * time.Millisecond
)

var (
	systemVolumes    = []string{"Macintosh HD", "Preboot", "Recovery", "VM", "Data", "System", "Update"}
	removableFSTypes = []string{"msdos", "exfat", "hfs", "apfs", "cd9660", "udf", "cddafs"}
)

// NewVolumeDetector watches /Volumes, where macOS mounts every attached disk.
func NewVolumeDetector() VolumeDetector {
	return &volumesDetector{
		changes: make(chan VolumeChange, 10),
		stop:    make(chan struct{}),
		mounted: make(map[string]VolumeChange),
	}
}

type volumesDetector struct {
	fsw      *fsnotify.Watcher
	changes  chan VolumeChange
	stop     chan struct{}
	mounted  map[string]VolumeChange
	wg       sync.WaitGroup
	stopOnce sync.Once
}

func (d *volumesDetector) Changes() <-chan VolumeChange {
	return d.changes
}

func (d *volumesDetector) Start() error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	if err := fsw.Add(volumesPath); err != nil {
		_ = fsw.Close()
		return fmt.Errorf("failed to watch %s: %w", volumesPath, err)
	}
	d.fsw = fsw

	d.wg.Add(1)
	go d.run()
	return nil
}

func (d *volumesDetector) Stop() {
	d.stopOnce.Do(func() {
		close(d.stop)
		if d.fsw != nil {
			_ = d.fsw.Close()
		}
		d.wg.Wait()
		close(d.changes)
	})
}

func (d *volumesDetector) run() {
	defer d.wg.Done()

	// Mounts show up in /Volumes before they are readable, so checks wait
	// for the directory to settle.
	settle := time.NewTimer(0)
	if !settle.Stop() {
		<-settle.C
	}
	pending := make(map[string]struct{})

	for {
		select {
		case <-d.stop:
			settle.Stop()
			return
		case ev, ok := <-d.fsw.Events:
			if !ok {
				return
			}
			if filepath.Dir(ev.Name) != volumesPath {
				continue
			}
			pending[ev.Name] = struct{}{}
			settle.Reset(volumeSettle)
		case err, ok := <-d.fsw.Errors:
			if !ok {
				return
			}
			log.Warn().Err(err).Msg("error watching /Volumes")
		case <-settle.C:
			for root := range pending {
				if !d.check(root) {
					return
				}
			}
			clear(pending)
		}
	}
}

func (d *volumesDetector) check(root string) bool {
	info, err := os.Stat(root)
	if err != nil {
		change, ok := d.mounted[root]
		if !ok {
			return true
		}
		delete(d.mounted, root)
		change.Mounted = false
		return d.send(change)
	}
	if !info.IsDir() || isSystemVolume(filepath.Base(root)) {
		return true
	}
	if _, ok := d.mounted[root]; ok {
		return true
	}

	var stat syscall.Statfs_t
	if err := syscall.Statfs(root, &stat); err != nil {
		return true
	}
	fstype := statfsType(&stat)
	if stat.Flags&mntLocal == 0 || stat.Flags&mntDontBrowse != 0 || !slices.Contains(removableFSTypes, fstype) {
		return true
	}

	change := VolumeChange{
		DeviceID: fmt.Sprintf("%x-%x", stat.Fsid.Val[0], stat.Fsid.Val[1]),
		Root:     root,
		Label:    filepath.Base(root),
		FSType:   fstype,
		Mounted:  true,
		Optical:  drives.IsOpticalFS(fstype) || fstype == "cddafs",
	}
	d.mounted[root] = change
	return d.send(change)
}

func (d *volumesDetector) send(change VolumeChange) bool { //nolint:gocritic // sent by value
	select {
	case d.changes <- change:
		log.Debug().Str("root", change.Root).Bool("mounted", change.Mounted).Msg("volume change detected")
		return true
	case <-d.stop:
		return false
	}
}

func isSystemVolume(name string) bool {
	for _, sys := range systemVolumes {
		if name == sys || strings.HasPrefix(name, sys+" ") {
			return true
		}
	}
	return false
}

func statfsType(stat *syscall.Statfs_t) string {
	b := make([]byte, 0, len(stat.Fstypename))
	for _, c := range stat.Fstypename {
		if c == 0 {
			break
		}
		b = append(b, byte(c))
	}
	return string(b)
}
