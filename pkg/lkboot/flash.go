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

package lkboot

import (
	"github.com/docker/go-units"

	lkerror "github.com/rancher/lkboot/pkg/error"
	"github.com/rancher/lkboot/pkg/types"
)

// FlashManager resolves partitions, creating them on demand, and erases
// and writes them on the device backing the partition table.
//
// Creating a partition is not atomic against other table mutators, the
// entry is looked up again after creation and a vanished entry is
// reported as a failure.
type FlashManager struct {
	table  types.PartitionTable
	align  uint64
	logger types.Logger
}

func NewFlashManager(table types.PartitionTable, align uint64, logger types.Logger) *FlashManager {
	return &FlashManager{table: table, align: align, logger: logger}
}

func (f *FlashManager) roundUp(size uint64) uint64 {
	if f.align <= 1 {
		return size
	}
	return (size + f.align - 1) / f.align * f.align
}

// Resolve returns the entry of the named partition, allocating and
// creating it if absent. Partitions are never grown, an existing entry
// shorter than size is an error.
func (f *FlashManager) Resolve(name string, size uint64) (types.PartitionEntry, error) {
	entry, err := f.table.Find(name)
	if err != nil {
		plen := f.roundUp(size)
		f.logger.Debugf("partition '%s' not found, allocating %s", name, units.BytesSize(float64(plen)))

		off, err := f.table.Allocate(plen, 0)
		if err != nil {
			f.logger.Debugf("allocation failed: %s", err)
			return entry, lkerror.New("no space to allocate partition", lkerror.ResourceExhausted)
		}
		if err = f.table.Add(name, off, plen, 0); err != nil {
			f.logger.Debugf("adding partition failed: %s", err)
			return entry, lkerror.New("error creating partition", lkerror.ResourceExhausted)
		}
		entry, err = f.table.Find(name)
		if err != nil {
			return entry, lkerror.New("couldn't find partition after creating it", lkerror.LookupConsistency)
		}
	}
	if size > entry.Length {
		return entry, lkerror.New("partition too small", lkerror.ResourceExhausted)
	}
	return entry, nil
}

func (f *FlashManager) device() (types.BlockDevice, error) {
	dev := f.table.Device()
	if dev == nil {
		return nil, lkerror.New("ptable_get_device failed", lkerror.NotFound)
	}
	return dev, nil
}

// Erase erases the whole partition
func (f *FlashManager) Erase(entry types.PartitionEntry) error {
	dev, err := f.device()
	if err != nil {
		return err
	}
	f.logger.Infof("erasing partition of size %d", entry.Length)
	n, err := dev.Erase(entry.Offset, entry.Length)
	if err != nil || n != entry.Length {
		f.logger.Debugf("erased %d of %d bytes: %v", n, entry.Length, err)
		return lkerror.New("bio_erase failed", lkerror.StorageIO)
	}
	return nil
}

// Write writes data at the start of the partition
func (f *FlashManager) Write(entry types.PartitionEntry, data []byte) error {
	dev, err := f.device()
	if err != nil {
		return err
	}
	f.logger.Infof("writing to partition")
	n, err := dev.Write(data, entry.Offset)
	if err != nil || n != len(data) {
		f.logger.Debugf("wrote %d of %d bytes: %v", n, len(data), err)
		return lkerror.New("bio_write failed", lkerror.StorageIO)
	}
	return nil
}
