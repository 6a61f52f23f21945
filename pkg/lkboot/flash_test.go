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
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/rancher/lkboot/pkg/config"
	"github.com/rancher/lkboot/pkg/constants"
	lkerror "github.com/rancher/lkboot/pkg/error"
	"github.com/rancher/lkboot/pkg/lkboot"
	"github.com/rancher/lkboot/pkg/mocks"
	"github.com/rancher/lkboot/pkg/ptable"
	"github.com/rancher/lkboot/pkg/types"
)

var _ = Describe("FlashManager", Label("lkboot", "flash"), func() {
	var dev *mocks.FakeBlockDevice
	var table *mocks.FakePartitionTable

	BeforeEach(func() {
		dev = mocks.NewFakeBlockDevice("spi0", 4*1024*1024)
		table = mocks.NewFakePartitionTable(dev)
	})

	It("rounds allocations up to the allocation granularity", func() {
		f := lkboot.NewFlashManager(table, constants.ZynqAllocAlign, types.NewNullLogger())
		entry, err := f.Resolve("kernel", 1000)
		Expect(err).ShouldNot(HaveOccurred())
		Expect(table.AllocateCalls).To(Equal([]uint64{constants.ZynqAllocAlign}))
		Expect(entry.Length).To(Equal(constants.ZynqAllocAlign))
	})
	It("does not round without granularity", func() {
		f := lkboot.NewFlashManager(table, 0, types.NewNullLogger())
		entry, err := f.Resolve("kernel", 1000)
		Expect(err).ShouldNot(HaveOccurred())
		Expect(entry.Length).To(Equal(uint64(1000)))
	})
	It("resolves existing partitions without allocating", func() {
		table.Entries = []types.PartitionEntry{{Name: "kernel", Offset: 128 * 1024, Length: 8192}}
		f := lkboot.NewFlashManager(table, 0, types.NewNullLogger())
		entry, err := f.Resolve("kernel", 8192)
		Expect(err).ShouldNot(HaveOccurred())
		Expect(entry.Offset).To(Equal(uint64(128 * 1024)))
		Expect(table.AllocateCalls).To(BeEmpty())

		_, err = f.Resolve("kernel", 8193)
		Expect(err).To(MatchError("partition too small"))
		Expect(lkerror.CodeOf(err)).To(Equal(lkerror.ResourceExhausted))
	})

	Describe("on a real partition table", func() {
		var pt *ptable.Table
		var d *lkboot.Dispatcher
		var sched *mocks.FakeScheduler

		newDispatcher := func(t types.PartitionTable) {
			var err error
			cfg := config.NewConfig(
				config.WithLogger(types.NewNullLogger()),
				config.WithIOBuffer(256*1024, 0x10000000),
			)
			sched = &mocks.FakeScheduler{}
			d, err = lkboot.NewDispatcher(cfg,
				lkboot.WithPartitionTable(t),
				lkboot.WithPlatform(&mocks.FakePlatform{}),
				lkboot.WithInvoker(&mocks.FakeInvoker{}),
				lkboot.WithScheduler(sched),
				lkboot.WithSysparams(mocks.FakeSysparams{}),
			)
			Expect(err).ShouldNot(HaveOccurred())
		}

		BeforeEach(func() {
			var err error
			pt, err = ptable.New(dev)
			Expect(err).ShouldNot(HaveOccurred())
			Expect(pt.Init()).To(Succeed())
			newDispatcher(pt)
		})

		It("leaves a partition holding the flashed payload", func() {
			payload := bytes.Repeat([]byte("lkboot"), 2000)
			s := mocks.NewFakeSession(payload)
			Expect(d.Dispatch(context.Background(), s, "flash", "kernel", uint32(len(payload)))).To(Succeed())

			entry, err := pt.Find("kernel")
			Expect(err).ShouldNot(HaveOccurred())
			Expect(entry.Length).To(BeNumerically(">=", len(payload)))
			Expect(dev.Data[entry.Offset : entry.Offset+uint64(len(payload))]).To(Equal(payload))

			reopened, err := ptable.New(dev)
			Expect(err).ShouldNot(HaveOccurred())
			Expect(reopened.List()).To(Equal(pt.List()))
		})
		It("leaves the table unchanged when allocation fails", func() {
			small := mocks.NewFakeBlockDevice("spi0", 128*1024)
			var err error
			pt, err = ptable.New(small)
			Expect(err).ShouldNot(HaveOccurred())
			Expect(pt.Init()).To(Succeed())
			newDispatcher(pt)

			payload := make([]byte, 100*1024)
			s := mocks.NewFakeSession(payload)
			err = d.Dispatch(context.Background(), s, "flash", "kernel", uint32(len(payload)))
			Expect(err).To(MatchError("no space to allocate partition"))
			Expect(pt.List()).To(BeEmpty())
			Expect(s.BytesRead).To(Equal(0))
		})
		It("allocates afresh after a partition is removed", func() {
			first := bytes.Repeat([]byte{0x01}, 10000)
			Expect(d.Dispatch(context.Background(), mocks.NewFakeSession(first), "flash", "kernel", uint32(len(first)))).To(Succeed())
			Expect(d.Dispatch(context.Background(), mocks.NewFakeSession(nil), "remove", "kernel", 0)).To(Succeed())
			_, err := pt.Find("kernel")
			Expect(err).To(MatchError(types.ErrNotFound))

			second := bytes.Repeat([]byte{0x02}, 50000)
			Expect(d.Dispatch(context.Background(), mocks.NewFakeSession(second), "flash", "kernel", uint32(len(second)))).To(Succeed())
			entry, err := pt.Find("kernel")
			Expect(err).ShouldNot(HaveOccurred())
			Expect(entry.Length).To(Equal(uint64(len(second))))
			Expect(dev.Data[entry.Offset : entry.Offset+entry.Length]).To(Equal(second))
		})
	})
})
