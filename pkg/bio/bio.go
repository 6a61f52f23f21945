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

package bio

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/rancher/lkboot/pkg/constants"
	"github.com/rancher/lkboot/pkg/types"
)

var ErrMemMapped = errors.New("device is in memory mapped mode")

// FileDevice is a flash device emulated on top of an image file
type FileDevice struct {
	mu        sync.Mutex
	name      string
	path      string
	size      uint64
	eraseSize uint64
	mmapBase  uint64
	file      *os.File
	fs        types.FS
	logger    types.Logger
	mapped    []byte
}

var _ types.BlockDevice = (*FileDevice)(nil)

type DeviceOptions func(d *FileDevice) error

func WithName(name string) func(d *FileDevice) error {
	return func(d *FileDevice) error {
		if name == "" {
			return fmt.Errorf("empty device name")
		}
		d.name = name
		return nil
	}
}

func WithEraseSize(size uint64) func(d *FileDevice) error {
	return func(d *FileDevice) error {
		if size == 0 {
			return fmt.Errorf("erase size can't be zero")
		}
		d.eraseSize = size
		return nil
	}
}

func WithMmapBase(base uint64) func(d *FileDevice) error {
	return func(d *FileDevice) error {
		d.mmapBase = base
		return nil
	}
}

func WithLogger(logger types.Logger) func(d *FileDevice) error {
	return func(d *FileDevice) error {
		d.logger = logger
		return nil
	}
}

// Create makes a new fully erased device image of the given size
func Create(fs types.FS, path string, size uint64) error {
	f, err := fs.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, constants.FilePerm)
	if err != nil {
		return err
	}
	defer f.Close()

	chunk := bytes.Repeat([]byte{constants.ErasedByte}, 64*1024)
	for left := size; left > 0; {
		n := uint64(len(chunk))
		if left < n {
			n = left
		}
		if _, err = f.Write(chunk[:n]); err != nil {
			return err
		}
		left -= n
	}
	return nil
}

// Open opens the device image at path
func Open(fs types.FS, path string, opts ...DeviceOptions) (*FileDevice, error) {
	dev := &FileDevice{
		name:      constants.BootDevice,
		path:      path,
		eraseSize: constants.DefaultEraseSize,
		mmapBase:  constants.DefaultMmapBase,
		fs:        fs,
	}
	for _, opt := range opts {
		if err := opt(dev); err != nil {
			return nil, err
		}
	}
	if dev.logger == nil {
		dev.logger = types.NewNullLogger()
	}

	f, err := fs.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, err
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	dev.file = f
	dev.size = uint64(fi.Size())
	dev.logger.Debugf("opened device %s (%s) of %d bytes", dev.name, path, dev.size)
	return dev, nil
}

func (d *FileDevice) Name() string {
	return d.name
}

func (d *FileDevice) Size() uint64 {
	return d.size
}

func (d *FileDevice) EraseSize() uint64 {
	return d.eraseSize
}

// clamp returns how many of length bytes starting at off are inside the device
func (d *FileDevice) clamp(off, length uint64) uint64 {
	if off >= d.size {
		return 0
	}
	if length > d.size-off {
		return d.size - off
	}
	return length
}

func (d *FileDevice) Read(p []byte, off uint64) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	n := d.clamp(off, uint64(len(p)))
	if n == 0 {
		return 0, io.EOF
	}
	return d.file.ReadAt(p[:n], int64(off))
}

// Write writes p at off, bytes past the end of the device are not written
func (d *FileDevice) Write(p []byte, off uint64) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.mapped != nil {
		return 0, ErrMemMapped
	}
	n := d.clamp(off, uint64(len(p)))
	if n == 0 {
		return 0, nil
	}
	return d.file.WriteAt(p[:n], int64(off))
}

// Erase sets length bytes at off to the erased value, bytes past the end
// of the device are not erased
func (d *FileDevice) Erase(off, length uint64) (uint64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.mapped != nil {
		return 0, ErrMemMapped
	}
	n := d.clamp(off, length)
	chunk := bytes.Repeat([]byte{constants.ErasedByte}, int(min(n, d.eraseSize)))
	var done uint64
	for done < n {
		c := min(n-done, uint64(len(chunk)))
		if _, err := d.file.WriteAt(chunk[:c], int64(off+done)); err != nil {
			return done, err
		}
		done += c
	}
	return done, nil
}

// MemMap loads the whole device into a read only view
func (d *FileDevice) MemMap() ([]byte, uint64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.mapped == nil {
		view := make([]byte, d.size)
		if _, err := d.file.ReadAt(view, 0); err != nil && err != io.EOF {
			return nil, 0, err
		}
		d.mapped = view
	}
	return d.mapped, d.mmapBase, nil
}

func (d *FileDevice) PutMemMap() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.mapped = nil
	return nil
}

func (d *FileDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.file.Close()
}

func (d *FileDevice) String() string {
	return fmt.Sprintf("%s:%s", d.name, d.path)
}
