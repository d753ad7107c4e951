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

// Package classifier decides what kind of volume a host path is, whether it
// deserves its own drive, and which host folder or image backs that drive.
package classifier

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/ZaparooProject/zaparoo-dosdrives/pkg/drives"
	"github.com/ZaparooProject/zaparoo-dosdrives/pkg/helpers"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
)

const volumeListTimeout = 5 * time.Second

var (
	DefaultImageExtensions = []string{".iso", ".cdr", ".cue", ".toast", ".inst", ".gog"}
	DefaultSeparateKinds   = []drives.Kind{drives.KindDiscImage, drives.KindDriveFolder}
	driveFolderExtensions  = []string{".cdrom", ".floppy", ".harddisk"}
)

// VolumeLister reports the roots of currently mounted optical volumes.
type VolumeLister interface {
	OpticalVolumes(ctx context.Context) ([]string, error)
}

// SourceImageResolver finds the disc image a folder or file was extracted
// from, if one is known.
type SourceImageResolver interface {
	SourceImage(path string) (string, bool)
}

type Options struct {
	Volumes      VolumeLister
	Executables  ExecutableDetector
	SourceImages SourceImageResolver
	// ImageExtensions are lower case with a leading dot.
	ImageExtensions []string
	// SeparateKinds always get their own drive, even inside a mounted folder.
	SeparateKinds []drives.Kind
	// AllowSourceImages must be set for PreferredMountPoint to honour
	// preferSourceImage at all.
	AllowSourceImages bool
}

// Classifier holds no drive state; every answer depends only on the path,
// the filesystem and the drives passed in.
type Classifier struct {
	fs                afero.Fs
	volumes           VolumeLister
	executables       ExecutableDetector
	sourceImages      SourceImageResolver
	imageExts         []string
	separateKinds     []drives.Kind
	allowSourceImages bool
}

func New(fs afero.Fs, opts Options) *Classifier { //nolint:gocritic // options copied once
	c := &Classifier{
		fs:                fs,
		volumes:           opts.Volumes,
		executables:       opts.Executables,
		sourceImages:      opts.SourceImages,
		imageExts:         opts.ImageExtensions,
		separateKinds:     opts.SeparateKinds,
		allowSourceImages: opts.AllowSourceImages,
	}
	if c.executables == nil {
		c.executables = ContentDetector{Fs: fs}
	}
	if len(c.imageExts) == 0 {
		c.imageExts = DefaultImageExtensions
	}
	if c.separateKinds == nil {
		c.separateKinds = DefaultSeparateKinds
	}
	return c
}

// ParseSeparateKinds converts config kind names, skipping unknown ones.
func ParseSeparateKinds(names []string) []drives.Kind {
	kinds := make([]drives.Kind, 0, len(names))
	for _, name := range names {
		k, err := drives.ParseKind(name)
		if err != nil {
			log.Warn().Str("kind", name).Msg("ignoring unknown separate mount kind")
			continue
		}
		kinds = append(kinds, k)
	}
	return kinds
}

// Stat resolves path to a HostPath, failing with ErrClassification when it
// does not exist or cannot be read.
func (c *Classifier) Stat(path string) (drives.HostPath, error) {
	clean, err := helpers.CleanPath(path)
	if err != nil {
		return drives.HostPath{}, fmt.Errorf("%w: %w", drives.ErrClassification, err)
	}
	info, err := c.fs.Stat(clean)
	if err != nil {
		return drives.HostPath{}, fmt.Errorf("%w: %s: %w", drives.ErrClassification, clean, err)
	}
	return drives.HostPath{
		Path:     clean,
		Size:     info.Size(),
		IsDir:    info.IsDir(),
		IsBundle: info.IsDir() && isDriveFolderName(clean),
	}, nil
}

// Classify returns the kind of path. Disc images are checked first, so an
// image file sitting on a CD is an image, not an optical volume member.
func (c *Classifier) Classify(path string) (drives.Kind, error) {
	hp, err := c.Stat(path)
	if err != nil {
		return 0, err
	}
	return c.classify(hp), nil
}

func (c *Classifier) classify(hp drives.HostPath) drives.Kind {
	switch {
	case c.isDiscImage(hp):
		return drives.KindDiscImage
	case hp.IsBundle:
		return drives.KindDriveFolder
	case c.opticalRoot(hp.Path) != "":
		return drives.KindOpticalVolume
	case hp.IsDir:
		return drives.KindPlainFolder
	default:
		return drives.KindPlainFile
	}
}

func (c *Classifier) isDiscImage(hp drives.HostPath) bool {
	if hp.IsDir {
		return false
	}
	if slices.Contains(c.imageExts, strings.ToLower(filepath.Ext(hp.Path))) {
		return true
	}
	return hasISO9660Signature(c.fs, hp.Path, hp.Size)
}

func isDriveFolderName(path string) bool {
	return slices.Contains(driveFolderExtensions, strings.ToLower(filepath.Ext(path)))
}

// opticalRoot returns the root of the optical volume holding path, or "".
func (c *Classifier) opticalRoot(path string) string {
	if c.volumes == nil {
		return ""
	}
	ctx, cancel := context.WithTimeout(context.Background(), volumeListTimeout)
	defer cancel()

	roots, err := c.volumes.OpticalVolumes(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("failed to list optical volumes")
		return ""
	}
	return deepestRoot(path, roots)
}

// hostBundle returns the nearest drive folder bundle that is or contains the
// path, or "".
func hostBundle(hp drives.HostPath) string {
	dir := hp.Path
	if !hp.IsDir {
		dir = filepath.Dir(dir)
	}
	for {
		if isDriveFolderName(dir) {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

func deepestRoot(path string, roots []string) string {
	best := ""
	for _, root := range roots {
		if helpers.PathHasPrefix(path, root) && len(root) > len(best) {
			best = root
		}
	}
	return best
}

// IsExecutablePayload reports whether the guest should launch path rather
// than just change into its folder.
func (c *Classifier) IsExecutablePayload(path string) bool {
	return c.executables.IsExecutable(path)
}

// ShouldMountSeparately is the single eligibility gate for both manual and
// automatic mounts. A path gets its own drive when its kind is in the
// separately mounted set, when it is an optical volume root, or when no
// existing drive already reaches it.
func (c *Classifier) ShouldMountSeparately(path string, existing []drives.Drive) (bool, error) {
	hp, err := c.Stat(path)
	if err != nil {
		return false, err
	}

	if c.separateRoot(hp) {
		for i := range existing {
			if helpers.SamePath(existing[i].Root, hp.Path) {
				return false, nil
			}
		}
		return true, nil
	}

	// Anything inside a drive folder bundle is eligible until the bundle, or
	// something within it, owns the path.
	if bundle := hostBundle(hp); bundle != "" && slices.Contains(c.separateKinds, drives.KindDriveFolder) {
		for i := range existing {
			if existing[i].Contains(hp.Path) && helpers.PathHasPrefix(existing[i].Root, bundle) {
				return false, nil
			}
		}
		return true, nil
	}

	for i := range existing {
		if existing[i].Contains(hp.Path) {
			return false, nil
		}
	}
	return true, nil
}

// separateRoot reports whether hp always gets its own drive: its kind is in
// the separately mounted set, or it is the root of an optical volume. Discs
// mounted under a folder drive still get a letter of their own.
func (c *Classifier) separateRoot(hp drives.HostPath) bool {
	kind := c.classify(hp)
	if slices.Contains(c.separateKinds, kind) {
		return true
	}
	if kind != drives.KindOpticalVolume {
		return false
	}
	root := c.opticalRoot(hp.Path)
	return root != "" && helpers.SamePath(root, hp.Path)
}

// PreferredMountPoint returns the host path that should become the drive
// root for path.
//
// preferSourceImage only has an effect when source images are allowed in
// options and the resolver knows a backing image. The image path is all that
// is returned; bookkeeping for the extracted folder is left to the caller.
func (c *Classifier) PreferredMountPoint(path string, preferSourceImage bool) (string, error) {
	hp, err := c.Stat(path)
	if err != nil {
		return "", err
	}

	if c.isDiscImage(hp) {
		return hp.Path, nil
	}
	if root := c.opticalRoot(hp.Path); root != "" {
		return filepath.Clean(root), nil
	}

	if preferSourceImage && c.allowSourceImages && c.sourceImages != nil {
		if img, ok := c.sourceImages.SourceImage(hp.Path); ok {
			log.Debug().Str("path", hp.Path).Str("image", img).Msg("using source disc image")
			return img, nil
		}
	}

	if bundle := hostBundle(hp); bundle != "" {
		return bundle, nil
	}
	if hp.IsDir {
		return hp.Path, nil
	}
	return filepath.Dir(hp.Path), nil
}
