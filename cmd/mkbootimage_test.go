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
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/viper"

	"github.com/rancher/lkboot/pkg/bootimage"
	lkerror "github.com/rancher/lkboot/pkg/error"
)

var _ = Describe("MkBootImage", Label("mkbootimage", "cmd"), func() {
	var dir string
	BeforeEach(func() {
		viper.Reset()
		rootCmd = NewRootCmd()
		_ = NewMkBootImageCmd(rootCmd)
		dir = GinkgoT().TempDir()
		Expect(os.WriteFile(filepath.Join(dir, "lk.bin"), []byte("loader code"), 0o644)).To(Succeed())
		Expect(os.WriteFile(filepath.Join(dir, "system.bit"), []byte("bitstream"), 0o644)).To(Succeed())
	})
	It("outputs usage if no section is given", Label("args"), func() {
		_, output, err := executeCommandC(rootCmd, "mkbootimage", "--config-dir", dir)
		Expect(err).To(HaveOccurred())
		Expect(output).To(ContainSubstring("Usage:"))
		Expect(err.Error()).To(ContainSubstring("at least one section must be supplied"))
	})
	It("bundles the given sections", func() {
		out := filepath.Join(dir, "out", "boot.img")
		_, _, err := executeCommandC(
			rootCmd, "mkbootimage", "--quiet", "--config-dir", dir, "-o", out,
			"-s", "lk="+filepath.Join(dir, "lk.bin"),
			"-s", "fpga="+filepath.Join(dir, "system.bit"),
		)
		Expect(err).ToNot(HaveOccurred())

		data, err := os.ReadFile(out)
		Expect(err).ToNot(HaveOccurred())
		bi, err := bootimage.Open(data)
		Expect(err).ToNot(HaveOccurred())
		lk, err := bi.Section(bootimage.TypeLK)
		Expect(err).ToNot(HaveOccurred())
		Expect(lk.Name).To(Equal("lk.bin"))
		Expect(lk.Data).To(Equal([]byte("loader code")))
		fpga, err := bi.Section(bootimage.TypeFPGA)
		Expect(err).ToNot(HaveOccurred())
		Expect(fpga.Data).To(Equal([]byte("bitstream")))
	})
	It("fails on a malformed section", func() {
		_, _, err := executeCommandC(rootCmd, "mkbootimage", "--quiet", "--config-dir", dir, "-s", "lk")
		Expect(err).To(HaveOccurred())
		Expect(lkerror.CodeOf(err)).To(Equal(lkerror.CreateBootImage))
	})
	It("fails on a missing file", func() {
		_, _, err := executeCommandC(rootCmd, "mkbootimage", "--quiet", "--config-dir", dir, "-s", "lk="+filepath.Join(dir, "missing"))
		Expect(err).To(HaveOccurred())
		Expect(lkerror.CodeOf(err)).To(Equal(lkerror.CreateBootImage))
	})
})
