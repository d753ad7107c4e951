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

//go:build linux

package watcher

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/ZaparooProject/zaparoo-dosdrives/pkg/drives"
	"github.com/ZaparooProject/zaparoo-dosdrives/pkg/helpers/syncutil"
	"github.com/godbus/dbus/v5"
	"github.com/rs/zerolog/log"
	"golang.org/x/sys/unix"
)

const (
	udisks2Service        = "org.freedesktop.UDisks2"
	udisks2Path           = "/org/freedesktop/UDisks2"
	udisks2BlockInterface = "org.freedesktop.UDisks2.Block"
	udisks2FSInterface    = "org.freedesktop.UDisks2.Filesystem"
	dbusObjectManager     = "org.freedesktop.DBus.ObjectManager"

	procMounts = "/proc/mounts"
	// mountsRescanInterval bounds how stale the fallback's view can get on
	// systems where poll() never signals /proc/mounts changes.
	mountsRescanInterval = time.Second
)

var ignoredFSTypes = []string{
	"sysfs", "proc", "devtmpfs", "devpts", "tmpfs", "cgroup", "cgroup2",
	"pstore", "bpf", "configfs", "selinuxfs", "debugfs", "tracefs",
	"fusectl", "fuse.portal", "mqueue", "hugetlbfs", "autofs", "efivarfs",
	"binfmt_misc", "overlay", "squashfs", "nsfs",
}

// NewVolumeDetector prefers UDisks2 over the system bus and falls back to
// watching /proc/mounts on minimal systems without it.
func NewVolumeDetector() VolumeDetector {
	if udisksAvailable() {
		log.Debug().Msg("using UDisks2 for volume detection")
		return &udisksDetector{
			changes: make(chan VolumeChange, 10),
			stop:    make(chan struct{}),
			byPath:  make(map[dbus.ObjectPath]VolumeChange),
		}
	}
	log.Debug().Msg("UDisks2 unavailable, polling /proc/mounts for volume detection")
	return newMountsDetector(procMounts)
}

func udisksAvailable() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	done := make(chan bool, 1)
	go func() {
		conn, err := dbus.SystemBusPrivate()
		if err != nil {
			done <- false
			return
		}
		defer func() { _ = conn.Close() }()

		if err := conn.Auth(nil); err != nil {
			done <- false
			return
		}
		if err := conn.Hello(); err != nil {
			done <- false
			return
		}

		var names []string
		call := conn.Object("org.freedesktop.DBus", "/org/freedesktop/DBus").
			CallWithContext(ctx, "org.freedesktop.DBus.ListNames", 0)
		if call.Err != nil || call.Store(&names) != nil {
			done <- false
			return
		}
		done <- slices.Contains(names, udisks2Service)
	}()

	select {
	case ok := <-done:
		return ok
	case <-ctx.Done():
		return false
	}
}

type udisksDetector struct {
	conn     *dbus.Conn
	signals  chan *dbus.Signal
	changes  chan VolumeChange
	stop     chan struct{}
	byPath   map[dbus.ObjectPath]VolumeChange
	wg       sync.WaitGroup
	mu       syncutil.Mutex
	stopOnce sync.Once
}

func (d *udisksDetector) Changes() <-chan VolumeChange {
	return d.changes
}

func (d *udisksDetector) Start() error {
	conn, err := dbus.SystemBus()
	if err != nil {
		return fmt.Errorf("failed to connect to system D-Bus: %w", err)
	}
	d.conn = conn

	for _, member := range []string{"InterfacesAdded", "InterfacesRemoved"} {
		err := d.conn.AddMatchSignal(
			dbus.WithMatchObjectPath(udisks2Path),
			dbus.WithMatchInterface(dbusObjectManager),
			dbus.WithMatchMember(member),
		)
		if err != nil {
			return fmt.Errorf("failed to subscribe to %s: %w", member, err)
		}
	}

	d.signals = make(chan *dbus.Signal, 10)
	d.conn.Signal(d.signals)

	d.wg.Add(1)
	go d.listen(d.signals)
	return nil
}

// Stop leaves the shared system bus connection open; dbus.SystemBus hands
// out one connection per process.
func (d *udisksDetector) Stop() {
	d.stopOnce.Do(func() {
		close(d.stop)
		if d.conn != nil {
			d.conn.RemoveSignal(d.signals)
		}
		d.wg.Wait()
		close(d.changes)
	})
}

func (d *udisksDetector) listen(signals chan *dbus.Signal) {
	defer d.wg.Done()
	for {
		select {
		case <-d.stop:
			return
		case sig, ok := <-signals:
			if !ok || sig == nil {
				return
			}
			switch sig.Name {
			case dbusObjectManager + ".InterfacesAdded":
				d.handleAdded(sig)
			case dbusObjectManager + ".InterfacesRemoved":
				d.handleRemoved(sig)
			}
		}
	}
}

func (d *udisksDetector) handleAdded(sig *dbus.Signal) {
	if len(sig.Body) < 2 {
		return
	}
	objPath, ok := sig.Body[0].(dbus.ObjectPath)
	if !ok {
		return
	}
	ifaces, ok := sig.Body[1].(map[string]map[string]dbus.Variant)
	if !ok {
		return
	}

	block, hasBlock := ifaces[udisks2BlockInterface]
	if _, hasFS := ifaces[udisks2FSInterface]; !hasBlock || !hasFS {
		return
	}
	if variantBool(block, "HintSystem") || variantBool(block, "HintIgnore") {
		return
	}

	mounts := d.mountPoints(objPath)
	if len(mounts) == 0 {
		return
	}

	fstype := variantString(block, "IdType")
	change := VolumeChange{
		DeviceID: udisksDeviceID(block),
		Root:     mounts[0],
		Label:    variantString(block, "IdLabel"),
		FSType:   fstype,
		Mounted:  true,
		Optical:  drives.IsOpticalFS(fstype),
	}
	if change.DeviceID == "" {
		change.DeviceID = change.Root
	}

	d.mu.Lock()
	d.byPath[objPath] = change
	d.mu.Unlock()

	d.emit(change)
}

func (d *udisksDetector) handleRemoved(sig *dbus.Signal) {
	if len(sig.Body) < 2 {
		return
	}
	objPath, ok := sig.Body[0].(dbus.ObjectPath)
	if !ok {
		return
	}
	ifaces, ok := sig.Body[1].([]string)
	if !ok || !slices.Contains(ifaces, udisks2FSInterface) {
		return
	}

	d.mu.Lock()
	change, known := d.byPath[objPath]
	delete(d.byPath, objPath)
	d.mu.Unlock()

	if known {
		change.Mounted = false
		d.emit(change)
	}
}

func (d *udisksDetector) emit(change VolumeChange) { //nolint:gocritic // sent by value
	select {
	case d.changes <- change:
		log.Debug().
			Str("device_id", change.DeviceID).
			Str("root", change.Root).
			Bool("mounted", change.Mounted).
			Msg("volume change detected")
	case <-d.stop:
	}
}

func (d *udisksDetector) mountPoints(objPath dbus.ObjectPath) []string {
	prop, err := d.conn.Object(udisks2Service, objPath).GetProperty(udisks2FSInterface + ".MountPoints")
	if err != nil {
		return nil
	}
	raw, ok := prop.Value().([][]byte)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, mp := range raw {
		if p := strings.TrimRight(string(mp), "\x00"); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func udisksDeviceID(props map[string]dbus.Variant) string {
	if id := variantString(props, "IdUUID"); id != "" {
		return id
	}
	if id := variantString(props, "IdSerial"); id != "" {
		return id
	}
	if dev, ok := props["Device"].Value().([]byte); ok {
		return strings.TrimRight(string(dev), "\x00")
	}
	return ""
}

func variantString(props map[string]dbus.Variant, key string) string {
	v, ok := props[key]
	if !ok {
		return ""
	}
	s, _ := v.Value().(string)
	return s
}

func variantBool(props map[string]dbus.Variant, key string) bool {
	v, ok := props[key]
	if !ok {
		return false
	}
	b, _ := v.Value().(bool)
	return b
}

// mountsDetector diffs /proc/mounts, woken by poll() POLLPRI and a periodic
// rescan for kernels that never signal.
type mountsDetector struct {
	lastScan time.Time
	file     *os.File
	changes  chan VolumeChange
	stop     chan struct{}
	mounted  map[string]VolumeChange
	path     string
	wg       sync.WaitGroup
	stopOnce sync.Once
}

func newMountsDetector(path string) *mountsDetector {
	return &mountsDetector{
		path:    path,
		changes: make(chan VolumeChange, 10),
		stop:    make(chan struct{}),
		mounted: make(map[string]VolumeChange),
	}
}

func (d *mountsDetector) Changes() <-chan VolumeChange {
	return d.changes
}

func (d *mountsDetector) Start() error {
	f, err := os.Open(d.path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", d.path, err)
	}
	d.file = f

	// Volumes present at startup are the scanner's job, not events.
	d.mounted = parseMounts(f)
	d.lastScan = time.Now()

	d.wg.Add(1)
	go d.poll()
	return nil
}

func (d *mountsDetector) Stop() {
	d.stopOnce.Do(func() {
		close(d.stop)
		d.wg.Wait()
		if d.file != nil {
			_ = d.file.Close()
		}
		close(d.changes)
	})
}

func (d *mountsDetector) poll() {
	defer d.wg.Done()

	fds := []unix.PollFd{{
		Fd:     int32(d.file.Fd()), //nolint:gosec // fd fits in int32
		Events: unix.POLLPRI | unix.POLLERR,
	}}

	for {
		select {
		case <-d.stop:
			return
		default:
		}

		n, err := unix.Poll(fds, 500)
		if err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			log.Warn().Err(err).Msgf("poll on %s failed", d.path)
			return
		}

		signalled := n > 0 && fds[0].Revents&(unix.POLLPRI|unix.POLLERR) != 0
		if !signalled && time.Since(d.lastScan) < mountsRescanInterval {
			continue
		}

		if _, err := d.file.Seek(0, io.SeekStart); err != nil {
			log.Warn().Err(err).Msgf("failed to rewind %s", d.path)
			continue
		}
		if !d.apply(parseMounts(d.file)) {
			return
		}
		d.lastScan = time.Now()
	}
}

// apply emits the difference between the last scan and current. It returns
// false if the detector was stopped mid-way.
func (d *mountsDetector) apply(current map[string]VolumeChange) bool {
	for id, change := range current {
		if _, ok := d.mounted[id]; ok {
			continue
		}
		d.mounted[id] = change
		if !d.send(change) {
			return false
		}
	}
	for id, change := range d.mounted {
		if _, ok := current[id]; ok {
			continue
		}
		delete(d.mounted, id)
		change.Mounted = false
		if !d.send(change) {
			return false
		}
	}
	return true
}

func (d *mountsDetector) send(change VolumeChange) bool { //nolint:gocritic // sent by value
	select {
	case d.changes <- change:
		log.Debug().
			Str("root", change.Root).
			Bool("mounted", change.Mounted).
			Msg("volume change detected (poll)")
		return true
	case <-d.stop:
		return false
	}
}

// parseMounts reads /proc/mounts formatted lines, keeping block devices
// mounted under the usual removable media locations.
func parseMounts(r io.Reader) map[string]VolumeChange {
	out := make(map[string]VolumeChange)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 3 {
			continue
		}
		device, root, fstype := fields[0], unescapeMountPath(fields[1]), fields[2]

		if slices.Contains(ignoredFSTypes, fstype) || !strings.HasPrefix(device, "/dev/") {
			continue
		}
		if !isRemovableMountPoint(root) {
			continue
		}

		out[device] = VolumeChange{
			DeviceID: device,
			Root:     root,
			Label:    filepath.Base(root),
			FSType:   fstype,
			Mounted:  true,
			Optical:  drives.IsOpticalFS(fstype),
		}
	}
	return out
}

func isRemovableMountPoint(root string) bool {
	for _, prefix := range []string{"/media/", "/mnt/", "/run/media/"} {
		if strings.HasPrefix(root, prefix) {
			return true
		}
	}
	return false
}

// unescapeMountPath decodes the octal escapes the kernel uses for spaces,
// tabs and backslashes in mount points.
func unescapeMountPath(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+3 < len(s) && isOctal(s[i+1]) && isOctal(s[i+2]) && isOctal(s[i+3]) {
			b.WriteByte((s[i+1]-'0')<<6 | (s[i+2]-'0')<<3 | (s[i+3] - '0'))
			i += 3
			continue
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

func isOctal(c byte) bool {
	return c >= '0' && c <= '7'
}
