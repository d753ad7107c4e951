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

//go:build windows

package watcher

import (
	"fmt"
	"strings"
	"sync"

	"github.com/ZaparooProject/zaparoo-dosdrives/pkg/drives"
	"github.com/ZaparooProject/zaparoo-dosdrives/pkg/helpers/syncutil"
	"github.com/go-ole/go-ole"
	"github.com/go-ole/go-ole/oleutil"
	"github.com/rs/zerolog/log"
	"golang.org/x/sys/windows"
)

const (
	wmiEventArrival = 2
	wmiEventRemoval = 3
	wmiNextEventMs  = 1000
)

// NewVolumeDetector subscribes to WMI Win32_VolumeChangeEvent.
func NewVolumeDetector() VolumeDetector {
	return &wmiDetector{
		changes: make(chan VolumeChange, 10),
		stop:    make(chan struct{}),
		mounted: make(map[string]VolumeChange),
	}
}

type wmiDetector struct {
	changes  chan VolumeChange
	stop     chan struct{}
	mounted  map[string]VolumeChange
	wg       sync.WaitGroup
	mu       syncutil.Mutex
	stopOnce sync.Once
}

func (d *wmiDetector) Changes() <-chan VolumeChange {
	return d.changes
}

func (d *wmiDetector) Start() error {
	ready := make(chan error, 1)
	d.wg.Add(1)
	go d.run(ready)
	return <-ready
}

func (d *wmiDetector) Stop() {
	d.stopOnce.Do(func() {
		close(d.stop)
		d.wg.Wait()
		close(d.changes)
	})
}

// run owns the COM apartment; every COM call happens on this goroutine.
func (d *wmiDetector) run(ready chan<- error) {
	defer d.wg.Done()

	if err := ole.CoInitializeEx(0, ole.COINIT_MULTITHREADED); err != nil {
		ready <- fmt.Errorf("failed to initialize COM: %w", err)
		return
	}
	defer ole.CoUninitialize()

	locator, err := oleutil.CreateObject("WbemScripting.SWbemLocator")
	if err != nil {
		ready <- fmt.Errorf("failed to create WMI locator: %w", err)
		return
	}
	defer locator.Release()

	wmi, err := locator.QueryInterface(ole.IID_IDispatch)
	if err != nil {
		ready <- fmt.Errorf("failed to query WMI interface: %w", err)
		return
	}
	defer wmi.Release()

	serviceRaw, err := oleutil.CallMethod(wmi, "ConnectServer")
	if err != nil {
		ready <- fmt.Errorf("failed to connect to WMI: %w", err)
		return
	}
	service := serviceRaw.ToIDispatch()
	defer service.Release()

	sinkRaw, err := oleutil.CallMethod(service, "ExecNotificationQuery",
		"SELECT * FROM Win32_VolumeChangeEvent WHERE EventType = 2 OR EventType = 3")
	if err != nil {
		ready <- fmt.Errorf("failed to subscribe to volume changes: %w", err)
		return
	}
	sink := sinkRaw.ToIDispatch()
	defer sink.Release()

	ready <- nil
	log.Debug().Msg("watching WMI volume change events")

	for {
		select {
		case <-d.stop:
			return
		default:
		}

		nextRaw, err := oleutil.CallMethod(sink, "NextEvent", wmiNextEventMs)
		if err != nil {
			// timeouts surface as errors
			continue
		}
		if nextRaw.VT == ole.VT_NULL || nextRaw.VT == ole.VT_EMPTY {
			continue
		}
		ev := nextRaw.ToIDispatch()
		ok := d.handle(ev)
		ev.Release()
		if !ok {
			return
		}
	}
}

func (d *wmiDetector) handle(ev *ole.IDispatch) bool {
	typeRaw, err := oleutil.GetProperty(ev, "EventType")
	if err != nil {
		return true
	}
	nameRaw, err := oleutil.GetProperty(ev, "DriveName")
	if err != nil {
		return true
	}
	root := nameRaw.ToString()
	if !strings.HasSuffix(root, `\`) {
		root += `\`
	}

	switch int(typeRaw.Val) {
	case wmiEventArrival:
		change, ok := describeDrive(root)
		if !ok {
			return true
		}
		d.mu.Lock()
		d.mounted[root] = change
		d.mu.Unlock()
		return d.send(change)
	case wmiEventRemoval:
		d.mu.Lock()
		change, ok := d.mounted[root]
		delete(d.mounted, root)
		d.mu.Unlock()
		if !ok {
			change = VolumeChange{DeviceID: root, Root: root}
		}
		change.Mounted = false
		return d.send(change)
	}
	return true
}

func (d *wmiDetector) send(change VolumeChange) bool { //nolint:gocritic // sent by value
	select {
	case d.changes <- change:
		log.Debug().Str("root", change.Root).Bool("mounted", change.Mounted).Msg("volume change detected")
		return true
	case <-d.stop:
		return false
	}
}

// describeDrive keeps removable and CD-ROM drives, which are the ones a
// DOS session would want as their own drive.
func describeDrive(root string) (VolumeChange, bool) {
	ptr, err := windows.UTF16PtrFromString(root)
	if err != nil {
		return VolumeChange{}, false
	}
	driveType := windows.GetDriveType(ptr)
	if driveType != windows.DRIVE_REMOVABLE && driveType != windows.DRIVE_CDROM {
		return VolumeChange{}, false
	}

	var (
		labelBuf [windows.MAX_PATH + 1]uint16
		fsBuf    [windows.MAX_PATH + 1]uint16
		serial   uint32
		maxComp  uint32
		fsFlags  uint32
	)
	change := VolumeChange{DeviceID: root, Root: root, Mounted: true}
	err = windows.GetVolumeInformation(ptr, &labelBuf[0], uint32(len(labelBuf)),
		&serial, &maxComp, &fsFlags, &fsBuf[0], uint32(len(fsBuf)))
	if err == nil {
		change.DeviceID = fmt.Sprintf("%X", serial)
		change.Label = windows.UTF16ToString(labelBuf[:])
		change.FSType = windows.UTF16ToString(fsBuf[:])
	}
	change.Optical = driveType == windows.DRIVE_CDROM || drives.IsOpticalFS(change.FSType)
	return change, true
}
