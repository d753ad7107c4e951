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

package classifier

import (
	"bytes"
	"errors"
	"io"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
)

const (
	// iso9660SignatureOffset is where "CD001" sits in the first volume
	// descriptor: sector 16 (2048 * 16) plus the one byte type field.
	iso9660SignatureOffset = 32769
	// maxComSize is the largest .COM image DOS will load into one segment
	// after the PSP.
	maxComSize   = 65280
	batProbeSize = 512
)

var iso9660Signature = []byte("CD001")

// ExecutableDetector decides whether a host file is something the guest can
// run directly.
type ExecutableDetector interface {
	IsExecutable(path string) bool
}

// ContentDetector inspects file content rather than trusting extensions.
type ContentDetector struct {
	Fs afero.Fs
}

func (d ContentDetector) IsExecutable(path string) bool {
	info, err := d.Fs.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".exe":
		header, err := readAt(d.Fs, path, 0, 2)
		if err != nil {
			return false
		}
		return bytes.Equal(header, []byte("MZ")) || bytes.Equal(header, []byte("ZM"))
	case ".com":
		return info.Size() > 0 && info.Size() <= maxComSize
	case ".bat":
		n := min(info.Size(), batProbeSize)
		if n == 0 {
			return true
		}
		head, err := readAt(d.Fs, path, 0, int(n))
		if err != nil {
			return false
		}
		return !bytes.Contains(head, []byte{0})
	default:
		return false
	}
}

// hasISO9660Signature reports whether the file carries an ISO 9660 primary
// volume descriptor, regardless of its extension.
func hasISO9660Signature(fs afero.Fs, path string, size int64) bool {
	if size < iso9660SignatureOffset+int64(len(iso9660Signature)) {
		return false
	}
	sig, err := readAt(fs, path, iso9660SignatureOffset, len(iso9660Signature))
	if err != nil {
		log.Debug().Err(err).Str("path", path).Msg("failed to probe disc image signature")
		return false
	}
	return bytes.Equal(sig, iso9660Signature)
}

func readAt(fs afero.Fs, path string, offset int64, n int) ([]byte, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, err //nolint:wrapcheck // callers only care about success
	}
	defer func(f afero.File) {
		if closeErr := f.Close(); closeErr != nil {
			log.Warn().Err(closeErr).Str("path", path).Msg("failed to close probed file")
		}
	}(f)

	buf := make([]byte, n)
	read, err := f.ReadAt(buf, offset)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, err //nolint:wrapcheck // callers only care about success
	}
	return buf[:read], nil
}
