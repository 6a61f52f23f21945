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
	"fmt"

	"github.com/rancher/lkboot/pkg/bootargs"
	"github.com/rancher/lkboot/pkg/bootimage"
	"github.com/rancher/lkboot/pkg/chainload"
	"github.com/rancher/lkboot/pkg/constants"
	lkerror "github.com/rancher/lkboot/pkg/error"
	"github.com/rancher/lkboot/pkg/iobuf"
	"github.com/rancher/lkboot/pkg/types"
	"github.com/rancher/lkboot/pkg/utils"
)

// Booter chain loads the next stage, either from a payload staged in the
// shared buffer or straight from the system partition.
type Booter struct {
	buf     *iobuf.Buffer
	table   types.PartitionTable
	invoker chainload.Invoker
	cmdline string
	logger  types.Logger
}

func NewBooter(buf *iobuf.Buffer, table types.PartitionTable, invoker chainload.Invoker, cmdline string, logger types.Logger) *Booter {
	return &Booter{buf: buf, table: table, invoker: invoker, cmdline: cmdline, logger: logger}
}

// startArgs lays out a fresh boot arguments record in the argument region
func (b *Booter) startArgs() (*bootargs.Builder, [4]uint64, error) {
	args, err := bootargs.Start(b.buf.Args())
	if err != nil {
		return nil, [4]uint64{}, err
	}
	if err = args.AddCommandLine(b.cmdline); err != nil {
		return nil, [4]uint64{}, err
	}
	return args, bootargs.HandoffValues(b.buf.ArgsPhys()), nil
}

// BootStaged boots the length bytes staged in the payload region. A
// container is booted from its loader section. Anything else, a container
// without one included, is jumped to as a raw image. It does not return on
// success.
func (b *Booter) BootStaged(length uint64) error {
	args, handoff, err := b.startArgs()
	if err != nil {
		return fmt.Errorf("building boot arguments: %w", err)
	}

	payload := b.buf.Payload()[:length]
	d := chainload.Descriptor{Entry: b.buf.PayloadPhys(), Image: payload, Args: handoff}

	c := bootimage.Classify(payload)
	switch {
	case c.Kind == bootimage.Container && c.Loader != nil:
		b.logger.Debugf("detected bootimage, found %s section at offset 0x%x", bootimage.TypeLK, c.Loader.Offset)
		_, size := c.Image.Range()
		if err = args.AddBootImagePointer(constants.PmemTag, b.buf.Phys(), size); err != nil {
			return fmt.Errorf("adding boot image pointer: %w", err)
		}
		d.Entry += c.Loader.Offset
		d.Image = c.Loader.Data
	case c.Kind == bootimage.Container:
		b.logger.Debugf("bootimage has no %s section, chainloading the whole image", bootimage.TypeLK)
	default:
		b.logger.Debugf("raw image, chainloading (%v)", c.Err)
	}

	return b.invoker.Transfer(d)
}

// FlashBoot boots the container stored in the system partition through the
// memory mapped view of the device. There is no raw image fallback, and
// every lookup failure is reported as not found.
func (b *Booter) FlashBoot() (err error) {
	notFound := lkerror.New("not found", lkerror.NotFound)

	args, handoff, err := b.startArgs()
	if err != nil {
		return fmt.Errorf("building boot arguments: %w", err)
	}

	if !b.table.FoundValid() {
		b.logger.Debugf("ptable not found")
		return notFound
	}
	entry, err := b.table.Find(constants.SystemPartName)
	if err != nil {
		b.logger.Debugf("cannot find %s partition", constants.SystemPartName)
		return notFound
	}
	dev := b.table.Device()
	if dev == nil {
		b.logger.Debugf("error opening boot device")
		return notFound
	}
	view, base, err := dev.MemMap()
	if err != nil {
		b.logger.Debugf("error getting direct pointer to block device: %s", err)
		return notFound
	}

	cleanup := utils.NewCleanStack()
	cleanup.Push(dev.PutMemMap)
	defer func() { err = cleanup.Cleanup(err) }()

	if entry.Offset+entry.Length > uint64(len(view)) {
		b.logger.Debugf("partition %s exceeds the mapped device", entry.Name)
		return notFound
	}
	bi, err := bootimage.Open(view[entry.Offset : entry.Offset+entry.Length])
	if err != nil {
		b.logger.Debugf("no bootimage in %s: %s", entry.Name, err)
		return notFound
	}
	b.logger.Debugf("detected bootimage")
	loader, err := bi.Section(bootimage.TypeLK)
	if err != nil {
		b.logger.Debugf("bootimage has no %s section", bootimage.TypeLK)
		return notFound
	}
	_, size := bi.Range()
	if err = args.AddBootImagePointer(dev.Name(), entry.Offset, size); err != nil {
		return fmt.Errorf("adding boot image pointer: %w", err)
	}

	d := chainload.Descriptor{
		Entry: base + entry.Offset + loader.Offset,
		Image: loader.Data,
		Args:  handoff,
	}
	b.logger.Debugf("chain loading binary at 0x%x", d.Entry)
	return b.invoker.Transfer(d)
}
