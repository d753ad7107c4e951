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

// Package client talks to a running daemon over its local API, so CLI
// invocations can mount and unmount drives without starting a second
// coordinator.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"

	"github.com/ZaparooProject/zaparoo-dosdrives/pkg/api/models"
	"github.com/ZaparooProject/zaparoo-dosdrives/pkg/config"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

var (
	ErrRequestTimeout   = errors.New("request timed out")
	ErrInvalidParams    = errors.New("invalid params")
	ErrRequestCancelled = errors.New("request cancelled")
)

const APIPath = "/api"

// RPCError is a JSON-RPC error returned by the daemon.
type RPCError struct {
	Message string
	Code    int
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.Code, e.Message)
}

type reply struct {
	Error   *models.ErrorObject `json:"error"`
	ID      json.RawMessage     `json:"id"`
	Result  json.RawMessage     `json:"result"`
	JSONRPC string              `json:"jsonrpc"`
}

// LocalClient sends one method call to the daemon on this machine, waits for
// its reply until config.APIRequestTimeout and disconnects. The result is
// returned as raw JSON.
func LocalClient(
	ctx context.Context,
	cfg *config.Instance,
	method string,
	params string,
) (string, error) {
	u := url.URL{
		Scheme: "ws",
		Host:   net.JoinHostPort("127.0.0.1", strconv.Itoa(cfg.APIPort())),
		Path:   APIPath,
	}

	idJSON, err := json.Marshal(uuid.New().String())
	if err != nil {
		return "", fmt.Errorf("encoding request id: %w", err)
	}
	req := models.RequestObject{
		JSONRPC: "2.0",
		ID:      models.RPCID{RawMessage: idJSON},
		Method:  method,
	}
	switch {
	case params == "":
	case json.Valid([]byte(params)):
		req.Params = json.RawMessage(params)
	default:
		return "", ErrInvalidParams
	}

	ctx, cancel := context.WithTimeout(ctx, config.APIRequestTimeout)
	defer cancel()

	c, resp, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return "", fmt.Errorf("connecting to %s: %w", u.String(), err)
	}
	defer func() {
		if err := c.Close(); err != nil {
			log.Warn().Err(err).Msg("error closing websocket")
		}
	}()

	done := make(chan *reply, 1)
	go func() {
		defer close(done)
		for {
			_, message, err := c.ReadMessage()
			if err != nil {
				log.Debug().Err(err).Msg("websocket read ended")
				return
			}
			var r reply
			if err := json.Unmarshal(message, &r); err != nil || r.JSONRPC != "2.0" {
				continue
			}
			// notifications broadcast to every client are skipped
			if string(r.ID) != string(idJSON) {
				continue
			}
			done <- &r
			return
		}
	}()

	if err := c.WriteJSON(req); err != nil {
		return "", fmt.Errorf("sending request: %w", err)
	}

	var r *reply
	select {
	case r = <-done:
	case <-ctx.Done():
		_ = c.Close()
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", ErrRequestTimeout
		}
		return "", ErrRequestCancelled
	}

	if r == nil {
		return "", ErrRequestTimeout
	}
	if r.Error != nil {
		return "", &RPCError{Code: r.Error.Code, Message: r.Error.Message}
	}
	return string(r.Result), nil
}
