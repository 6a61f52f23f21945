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

// Package ptable implements the partition table stored at the start of the
// boot device. The first reserved bytes of the device hold a small header
// followed by the yaml encoded list of entries:
//
//	[MAGIC 8][VERSION u32][LENGTH u32][yaml LENGTH bytes]
package ptable

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/rancher/lkboot/pkg/constants"
	"github.com/rancher/lkboot/pkg/types"
)

const headerSize = 16

var (
	ErrNoTable  = errors.New("no valid partition table")
	ErrNoSpace  = errors.New("no space left on device")
	ErrExists   = errors.New("partition already exists")
	ErrOverlaps = errors.New("partition overlaps an existing one")
	ErrBadEntry = errors.New("invalid partition entry")
)

type onDisk struct {
	Partitions []types.PartitionEntry `yaml:"partitions"`
}

// Table is a partition table backed by a block device
type Table struct {
	mu       sync.Mutex
	dev      types.BlockDevice
	logger   types.Logger
	reserved uint64
	valid    bool
	entries  []types.PartitionEntry
}

var _ types.PartitionTable = (*Table)(nil)

type TableOptions func(t *Table) error

func WithLogger(logger types.Logger) func(t *Table) error {
	return func(t *Table) error {
		t.logger = logger
		return nil
	}
}

// WithReservedSize sets the size of the region holding the table itself
func WithReservedSize(size uint64) func(t *Table) error {
	return func(t *Table) error {
		if size <= headerSize {
			return fmt.Errorf("reserved size %d too small", size)
		}
		t.reserved = size
		return nil
	}
}

// New returns a table for the given device and scans it. A device
// without a table is not an error, FoundValid reports it.
func New(dev types.BlockDevice, opts ...TableOptions) (*Table, error) {
	t := &Table{dev: dev, reserved: constants.PtableReservedSize}
	for _, opt := range opts {
		if err := opt(t); err != nil {
			return nil, err
		}
	}
	if t.logger == nil {
		t.logger = types.NewNullLogger()
	}
	if dev != nil {
		if err := t.Scan(); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// Scan reloads the table from the device
func (t *Table) Scan() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.valid = false
	t.entries = nil

	hdr := make([]byte, headerSize)
	if _, err := t.dev.Read(hdr, 0); err != nil {
		return fmt.Errorf("reading partition table header: %w", err)
	}
	if !bytes.Equal(hdr[:8], []byte(constants.PtableMagic)) {
		t.logger.Debugf("no partition table found on %s", t.dev.Name())
		return nil
	}
	if v := binary.LittleEndian.Uint32(hdr[8:]); v != constants.PtableVersion {
		t.logger.Warnf("unsupported partition table version %d on %s", v, t.dev.Name())
		return nil
	}
	length := uint64(binary.LittleEndian.Uint32(hdr[12:]))
	if length > t.reserved-headerSize {
		t.logger.Warnf("corrupted partition table on %s", t.dev.Name())
		return nil
	}
	data := make([]byte, length)
	if _, err := t.dev.Read(data, headerSize); err != nil {
		return fmt.Errorf("reading partition table: %w", err)
	}
	table := onDisk{}
	if err := yaml.Unmarshal(data, &table); err != nil {
		t.logger.Warnf("corrupted partition table on %s: %v", t.dev.Name(), err)
		return nil
	}
	t.entries = table.Partitions
	t.sort()
	t.valid = true
	return nil
}

// Init writes a new empty table to the device
func (t *Table) Init() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.dev == nil {
		return fmt.Errorf("no device")
	}
	if t.dev.Size() <= t.reserved {
		return fmt.Errorf("device %s too small for a partition table", t.dev.Name())
	}
	old := t.entries
	t.entries = nil
	if err := t.flush(); err != nil {
		t.entries = old
		return err
	}
	t.valid = true
	return nil
}

func (t *Table) sort() {
	sort.Slice(t.entries, func(i, j int) bool {
		return t.entries[i].Offset < t.entries[j].Offset
	})
}

// flush persists the in memory entries, caller holds the lock
func (t *Table) flush() error {
	data, err := yaml.Marshal(onDisk{Partitions: t.entries})
	if err != nil {
		return err
	}
	if uint64(len(data)) > t.reserved-headerSize {
		return fmt.Errorf("partition table does not fit in %d bytes", t.reserved)
	}
	buf := make([]byte, headerSize+len(data))
	copy(buf, constants.PtableMagic)
	binary.LittleEndian.PutUint32(buf[8:], constants.PtableVersion)
	binary.LittleEndian.PutUint32(buf[12:], uint32(len(data)))
	copy(buf[headerSize:], data)

	if n, err := t.dev.Erase(0, t.reserved); err != nil || n != t.reserved {
		return fmt.Errorf("erasing partition table region: %v", err)
	}
	if n, err := t.dev.Write(buf, 0); err != nil || n != len(buf) {
		return fmt.Errorf("writing partition table: %v", err)
	}
	return nil
}

func (t *Table) FoundValid() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.valid
}

func (t *Table) Device() types.BlockDevice {
	return t.dev
}

func (t *Table) Find(name string) (types.PartitionEntry, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.valid {
		return types.PartitionEntry{}, ErrNoTable
	}
	for _, e := range t.entries {
		if e.Name == name {
			return e, nil
		}
	}
	return types.PartitionEntry{}, fmt.Errorf("partition '%s': %w", name, types.ErrNotFound)
}

func (t *Table) List() []types.PartitionEntry {
	t.mu.Lock()
	defer t.mu.Unlock()

	return append([]types.PartitionEntry{}, t.entries...)
}

// Allocate finds the first free region of size bytes. Regions start at an
// erase block boundary. Nothing is reserved until Add is called.
func (t *Table) Allocate(size uint64, _ uint32) (uint64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.valid {
		return 0, ErrNoTable
	}
	align := t.dev.EraseSize()
	start := alignUp(t.reserved, align)
	for _, e := range t.entries {
		if start+size <= e.Offset {
			return start, nil
		}
		start = alignUp(e.Offset+e.Length, align)
	}
	if start+size <= t.dev.Size() {
		return start, nil
	}
	return 0, ErrNoSpace
}

func (t *Table) Add(name string, offset, length uint64, flags uint32) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.valid {
		return ErrNoTable
	}
	if name == "" || len(name) > constants.MaxPartitionNameLen {
		return fmt.Errorf("%w: bad name '%s'", ErrBadEntry, name)
	}
	if length == 0 || offset < t.reserved || offset+length > t.dev.Size() || offset+length < offset {
		return fmt.Errorf("%w: region %d+%d out of bounds", ErrBadEntry, offset, length)
	}
	for _, e := range t.entries {
		if e.Name == name {
			return fmt.Errorf("'%s': %w", name, ErrExists)
		}
		if offset < e.Offset+e.Length && e.Offset < offset+length {
			return fmt.Errorf("'%s' with '%s': %w", name, e.Name, ErrOverlaps)
		}
	}
	old := t.entries
	t.entries = append(append([]types.PartitionEntry{}, old...), types.PartitionEntry{
		Name: name, Offset: offset, Length: length, Flags: flags,
	})
	t.sort()
	if err := t.flush(); err != nil {
		t.entries = old
		return err
	}
	t.logger.Debugf("added partition %s at %d, %d bytes", name, offset, length)
	return nil
}

func (t *Table) Remove(name string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.valid {
		return ErrNoTable
	}
	for i, e := range t.entries {
		if e.Name != name {
			continue
		}
		old := t.entries
		t.entries = append(append([]types.PartitionEntry{}, old[:i]...), old[i+1:]...)
		if err := t.flush(); err != nil {
			t.entries = old
			return err
		}
		t.logger.Debugf("removed partition %s", name)
		return nil
	}
	return fmt.Errorf("partition '%s': %w", name, types.ErrNotFound)
}

func alignUp(v, align uint64) uint64 {
	if align <= 1 {
		return v
	}
	return (v + align - 1) / align * align
}
