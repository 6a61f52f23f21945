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

package mocks

import (
	"errors"
	"fmt"

	"github.com/rancher/lkboot/pkg/types"
)

// FakePartitionTable is an in memory PartitionTable with error injection
type FakePartitionTable struct {
	Entries     []types.PartitionEntry
	Dev         types.BlockDevice
	Invalid     bool
	NextOffset  uint64
	ErrAllocate error
	ErrAdd      error
	// LoseAdds makes Add succeed without storing the entry, as if a
	// concurrent mutator removed it right after creation
	LoseAdds      bool
	AllocateCalls []uint64
	AddCalls      []types.PartitionEntry
}

var _ types.PartitionTable = (*FakePartitionTable)(nil)

func NewFakePartitionTable(dev types.BlockDevice) *FakePartitionTable {
	return &FakePartitionTable{Dev: dev, NextOffset: 64 * 1024}
}

func (t *FakePartitionTable) FoundValid() bool {
	return !t.Invalid
}

func (t *FakePartitionTable) Find(name string) (types.PartitionEntry, error) {
	for _, e := range t.Entries {
		if e.Name == name {
			return e, nil
		}
	}
	return types.PartitionEntry{}, fmt.Errorf("partition '%s': %w", name, types.ErrNotFound)
}

func (t *FakePartitionTable) Allocate(size uint64, _ uint32) (uint64, error) {
	t.AllocateCalls = append(t.AllocateCalls, size)
	if t.ErrAllocate != nil {
		return 0, t.ErrAllocate
	}
	return t.NextOffset, nil
}

func (t *FakePartitionTable) Add(name string, offset, length uint64, flags uint32) error {
	e := types.PartitionEntry{Name: name, Offset: offset, Length: length, Flags: flags}
	t.AddCalls = append(t.AddCalls, e)
	if t.ErrAdd != nil {
		return t.ErrAdd
	}
	if !t.LoseAdds {
		t.Entries = append(t.Entries, e)
	}
	t.NextOffset = offset + length
	return nil
}

func (t *FakePartitionTable) Remove(name string) error {
	for i, e := range t.Entries {
		if e.Name == name {
			t.Entries = append(t.Entries[:i], t.Entries[i+1:]...)
			return nil
		}
	}
	return errors.New("not found")
}

func (t *FakePartitionTable) List() []types.PartitionEntry {
	return t.Entries
}

func (t *FakePartitionTable) Device() types.BlockDevice {
	return t.Dev
}
