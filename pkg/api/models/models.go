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

package models

import (
	"encoding/json"
)

const (
	NotificationDrivesAdded   = "drives.added"
	NotificationDrivesRemoved = "drives.removed"
)

const (
	MethodDrives             = "drives"
	MethodDrivesAll          = "drives.all"
	MethodDrivesMount        = "drives.mount"
	MethodDrivesUnmount      = "drives.unmount"
	MethodDrivesUnmountAll   = "drives.unmount_all"
	MethodDrivesOpen         = "drives.open"
	MethodDrivesMountOptical = "drives.mount_optical"
	MethodVersion            = "version"
)

// JSON-RPC 2.0 error codes.
const (
	ErrCodeParse          = -32700
	ErrCodeInvalidRequest = -32600
	ErrCodeMethodNotFound = -32601
	ErrCodeInvalidParams  = -32602
	ErrCodeInternal       = -32603
	// ErrCodeServer is used for drive errors such as a missing path or a
	// busy drive.
	ErrCodeServer = -32000
)

type Notification struct {
	Method string
	Params json.RawMessage
}

type RequestObject struct {
	ID      RPCID           `json:"id"`
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type ErrorObject struct {
	Message string `json:"message"`
	Code    int    `json:"code"`
}

type ResponseObject struct {
	Result  any    `json:"result"`
	ID      RPCID  `json:"id"`
	JSONRPC string `json:"jsonrpc"`
}

// ResponseErrorObject omits result, as JSON-RPC requires for errors.
type ResponseErrorObject struct {
	Error   *ErrorObject `json:"error"`
	ID      RPCID        `json:"id"`
	JSONRPC string       `json:"jsonrpc"`
}

type NotificationObject struct {
	Params  json.RawMessage `json:"params,omitempty"`
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
}
