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

package cmd

import (
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/viper"

	lkerror "github.com/rancher/lkboot/pkg/error"
)

var _ = Describe("FlashBoot", Label("flash-boot", "cmd"), func() {
	var dir, device string
	BeforeEach(func() {
		viper.Reset()
		rootCmd = NewRootCmd()
		_ = NewPtableCmd(rootCmd)
		_ = NewFlashBootCmd(rootCmd)
		dir = GinkgoT().TempDir()
		device = filepath.Join(dir, "spi0.img")
	})
	It("fails without a system partition", func() {
		_, _, err := executeCommandC(rootCmd, "ptable", "init", "--quiet", "--config-dir", dir, "--device", device, "--size", "1MiB")
		Expect(err).ToNot(HaveOccurred())

		_, _, err = executeCommandC(
			rootCmd, "flash-boot", "--quiet", "--config-dir", dir, "--device", device,
			"--iobuffer-size", "256KiB", "--handoff-dir", filepath.Join(dir, "handoff"),
		)
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(Equal("not found"))
		Expect(lkerror.CodeOf(err)).To(Equal(lkerror.FlashBoot))
		Expect(filepath.Join(dir, "handoff")).ToNot(BeADirectory())
	})
	It("fails to open a missing device", func() {
		_, _, err := executeCommandC(rootCmd, "flash-boot", "--quiet", "--config-dir", dir, "--device", device)
		Expect(err).To(HaveOccurred())
		Expect(lkerror.CodeOf(err)).To(Equal(lkerror.OpeningDevice))
	})
})
