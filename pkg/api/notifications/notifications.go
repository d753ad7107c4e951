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

package notifications

import (
	"encoding/json"

	"github.com/ZaparooProject/zaparoo-dosdrives/pkg/api/models"
	"github.com/rs/zerolog/log"
)

func send(ns chan<- models.Notification, method string, payload any) {
	if ns == nil {
		return
	}
	params, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Str("method", method).Msg("failed to marshal notification params")
		return
	}
	ns <- models.Notification{
		Method: method,
		Params: params,
	}
}

func DrivesAdded(ns chan<- models.Notification, payload models.DriveResponse) {
	send(ns, models.NotificationDrivesAdded, payload)
}

func DrivesRemoved(ns chan<- models.Notification, payload models.DriveResponse) {
	send(ns, models.NotificationDrivesRemoved, payload)
}
