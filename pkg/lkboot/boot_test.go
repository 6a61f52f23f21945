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

package lkboot_test

import (
	"bytes"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/rancher/lkboot/pkg/bootargs"
	"github.com/rancher/lkboot/pkg/bootimage"
	"github.com/rancher/lkboot/pkg/constants"
	lkerror "github.com/rancher/lkboot/pkg/error"
	"github.com/rancher/lkboot/pkg/iobuf"
	"github.com/rancher/lkboot/pkg/lkboot"
	"github.com/rancher/lkboot/pkg/mocks"
	"github.com/rancher/lkboot/pkg/types"
)

var _ = Describe("Booter", Label("lkboot", "boot"), func() {
	var dev *mocks.FakeBlockDevice
	var table *mocks.FakePartitionTable
	var inv *mocks.FakeInvoker
	var buf *iobuf.Buffer
	var b *lkboot.Booter
	var lk, img []byte

	const sysOffset = uint64(256 * 1024)

	BeforeEach(func() {
		var err error
		dev = mocks.NewFakeBlockDevice("spi0", 4*1024*1024)
		table = mocks.NewFakePartitionTable(dev)
		inv = &mocks.FakeInvoker{}
		buf, err = iobuf.New(bufSize, bufPhys, argsSize)
		Expect(err).ShouldNot(HaveOccurred())
		b = lkboot.NewBooter(buf, table, inv, constants.DefaultCommandLine, types.NewNullLogger())

		lk = bytes.Repeat([]byte{0x42}, 6000)
		img, err = bootimage.Build(bootimage.Section{Type: bootimage.TypeLK, Name: "lk.bin", Data: lk})
		Expect(err).ShouldNot(HaveOccurred())
	})

	Describe("FlashBoot", func() {
		expectNotFound := func(err error) {
			Expect(err).To(MatchError("not found"))
			Expect(lkerror.CodeOf(err)).To(Equal(lkerror.NotFound))
			Expect(inv.Transfers).To(BeEmpty())
		}

		It("requires a valid partition table", func() {
			table.Invalid = true
			expectNotFound(b.FlashBoot())
			Expect(dev.Touched()).To(BeFalse())
		})
		It("requires a system partition", func() {
			table.Entries = []types.PartitionEntry{{Name: "kernel", Offset: sysOffset, Length: 1024 * 1024}}
			expectNotFound(b.FlashBoot())
			Expect(dev.Touched()).To(BeFalse())
		})
		It("requires a device", func() {
			table.Dev = nil
			table.Entries = []types.PartitionEntry{{Name: constants.SystemPartName, Offset: sysOffset, Length: 1024 * 1024}}
			expectNotFound(b.FlashBoot())
		})
		It("requires a memory mapped view", func() {
			dev.ErrMemMap = errors.New("unsupported")
			table.Entries = []types.PartitionEntry{{Name: constants.SystemPartName, Offset: sysOffset, Length: 1024 * 1024}}
			expectNotFound(b.FlashBoot())
			Expect(dev.PutCalls).To(Equal(0))
		})
		It("does not fall back to raw images and releases the mapping", func() {
			copy(dev.Data[sysOffset:], []byte("raw executable image"))
			table.Entries = []types.PartitionEntry{{Name: constants.SystemPartName, Offset: sysOffset, Length: 1024 * 1024}}
			expectNotFound(b.FlashBoot())
			Expect(dev.PutCalls).To(Equal(1))
			Expect(dev.Mapped()).To(BeFalse())
		})
		It("fails on a container without loader and releases the mapping", func() {
			other, err := bootimage.Build(bootimage.Section{Type: bootimage.TypeFPGA, Data: []byte("bits")})
			Expect(err).ShouldNot(HaveOccurred())
			copy(dev.Data[sysOffset:], other)
			table.Entries = []types.PartitionEntry{{Name: constants.SystemPartName, Offset: sysOffset, Length: 1024 * 1024}}
			expectNotFound(b.FlashBoot())
			Expect(dev.Mapped()).To(BeFalse())
		})
		It("chain loads the loader section from the mapped device", func() {
			copy(dev.Data[sysOffset:], img)
			table.Entries = []types.PartitionEntry{{Name: constants.SystemPartName, Offset: sysOffset, Length: 1024 * 1024}}
			Expect(b.FlashBoot()).To(Succeed())

			Expect(inv.Transfers).To(HaveLen(1))
			t := inv.Last()
			Expect(t.Entry).To(Equal(dev.MmapBase + sysOffset + bootimage.SectionAlign))
			Expect(t.Image).To(Equal(lk))
			Expect(t.Args).To(Equal(bootargs.HandoffValues(buf.ArgsPhys())))

			rec, err := bootargs.Parse(buf.Args())
			Expect(err).ShouldNot(HaveOccurred())
			Expect(rec.CmdLine).To(Equal(constants.DefaultCommandLine))
			Expect(rec.BootImage).To(Equal(&bootargs.BootImagePointer{
				Device: "spi0",
				Offset: sysOffset,
				Length: uint64(len(img)),
			}))
			Expect(dev.PutCalls).To(Equal(1))
		})
		It("reports transfer failures and releases the mapping", func() {
			copy(dev.Data[sysOffset:], img)
			table.Entries = []types.PartitionEntry{{Name: constants.SystemPartName, Offset: sysOffset, Length: 1024 * 1024}}
			inv.ErrTransfer = errors.New("jump failed")
			Expect(b.FlashBoot()).To(MatchError("jump failed"))
			Expect(dev.Mapped()).To(BeFalse())
		})
	})

	Describe("BootStaged", func() {
		It("jumps to the start of a raw image", func() {
			copy(buf.Payload(), []byte("raw"))
			Expect(b.BootStaged(3)).To(Succeed())
			Expect(inv.Last().Entry).To(Equal(buf.PayloadPhys()))
			Expect(inv.Last().Image).To(Equal([]byte("raw")))
		})
		It("only looks at the staged bytes", func() {
			copy(buf.Payload(), img)
			Expect(b.BootStaged(32)).To(Succeed())
			Expect(inv.Last().Entry).To(Equal(buf.PayloadPhys()))
			rec, err := bootargs.Parse(buf.Args())
			Expect(err).ShouldNot(HaveOccurred())
			Expect(rec.BootImage).To(BeNil())
		})
	})
})
