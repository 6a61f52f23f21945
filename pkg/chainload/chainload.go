/*
Copyright © 2022 - 2024 SUSE LLC

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package chainload hands control over to the next stage program.
package chainload

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/rancher/lkboot/pkg/types"
	"github.com/rancher/lkboot/pkg/utils"
)

const (
	ImageFile      = "image.bin"
	DescriptorFile = "handoff.yaml"
)

// Descriptor is everything the next stage receives: its entry point, the
// image it executes and the handoff machine words.
type Descriptor struct {
	Entry uint64
	Image []byte
	Args  [4]uint64
}

// Invoker transfers control to the next stage. Transfer never returns on
// success, a returned error means control was not transferred.
type Invoker interface {
	Transfer(d Descriptor) error
}

// ExitFunc terminates the current program
type ExitFunc func(code int)

type manifest struct {
	Entry     string    `yaml:"entry"`
	Args      [4]uint64 `yaml:"args,flow"`
	ImageSize int       `yaml:"image-size"`
	SHA256    string    `yaml:"sha256"`
}

// FileInvoker is the Invoker of a hosted loader: the image and the
// descriptor are left in a handoff directory for the next stage launcher
// and the loader terminates.
type FileInvoker struct {
	fs     types.FS
	logger types.Logger
	dir    string
	exit   ExitFunc
}

var _ Invoker = (*FileInvoker)(nil)

func NewFileInvoker(cfg *types.Config, exit ExitFunc) *FileInvoker {
	if exit == nil {
		exit = os.Exit
	}
	return &FileInvoker{fs: cfg.Fs, logger: cfg.Logger, dir: cfg.Handoff.Dir, exit: exit}
}

func (i *FileInvoker) Transfer(d Descriptor) error {
	if len(d.Image) == 0 {
		return fmt.Errorf("empty image at entry 0x%x", d.Entry)
	}
	sum := sha256.Sum256(d.Image)
	m := manifest{
		Entry:     fmt.Sprintf("0x%x", d.Entry),
		Args:      d.Args,
		ImageSize: len(d.Image),
		SHA256:    hex.EncodeToString(sum[:]),
	}
	data, err := yaml.Marshal(m)
	if err != nil {
		return err
	}
	if err = utils.WriteFileAtomic(i.fs, filepath.Join(i.dir, ImageFile), d.Image); err != nil {
		return fmt.Errorf("staging next stage image: %w", err)
	}
	if err = utils.WriteFileAtomic(i.fs, filepath.Join(i.dir, DescriptorFile), data); err != nil {
		return fmt.Errorf("staging handoff descriptor: %w", err)
	}
	i.logger.Infof("chain loading entry 0x%x, args 0x%x 0x%x 0x%x 0x%x", d.Entry, d.Args[0], d.Args[1], d.Args[2], d.Args[3])
	i.exit(0)
	return nil
}
