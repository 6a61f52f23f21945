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

	lkerror "github.com/rancher/lkboot/pkg/error"
)

var _ = Describe("Ptable", Label("ptable", "cmd"), func() {
	var dir, device string
	BeforeEach(func() {
		viper.Reset()
		rootCmd = NewRootCmd()
		_ = NewPtableCmd(rootCmd)
		dir = GinkgoT().TempDir()
		device = filepath.Join(dir, "spi0.img")
	})
	It("creates a device image and lists its empty table", func() {
		_, _, err := executeCommandC(rootCmd, "ptable", "init", "--quiet", "--config-dir", dir, "--device", device, "--size", "1MiB")
		Expect(err).ToNot(HaveOccurred())
		Expect(device).To(BeARegularFile())

		_, output, err := executeCommandC(rootCmd, "ptable", "list", "--quiet", "--config-dir", dir, "--device", device)
		Expect(err).ToNot(HaveOccurred())
		Expect(output).To(ContainSubstring("NAME"))
		Expect(output).To(ContainSubstring("OFFSET"))
	})
	It("does not overwrite an existing table without force", Label("flags"), func() {
		_, _, err := executeCommandC(rootCmd, "ptable", "init", "--quiet", "--config-dir", dir, "--device", device, "--size", "1MiB")
		Expect(err).ToNot(HaveOccurred())

		_, _, err = executeCommandC(rootCmd, "ptable", "init", "--quiet", "--config-dir", dir, "--device", device)
		Expect(err).To(HaveOccurred())
		Expect(lkerror.CodeOf(err)).To(Equal(lkerror.PartitionTable))

		_, _, err = executeCommandC(rootCmd, "ptable", "init", "--quiet", "--config-dir", dir, "--device", device, "--force")
		Expect(err).ToNot(HaveOccurred())
	})
	It("fails to list a device without table", func() {
		_, _, err := executeCommandC(rootCmd, "ptable", "init", "--quiet", "--config-dir", dir, "--device", device, "--size", "1MiB")
		Expect(err).ToNot(HaveOccurred())
		other := filepath.Join(dir, "blank.img")
		Expect(os.WriteFile(other, make([]byte, 1024*1024), 0o644)).To(Succeed())

		_, _, err = executeCommandC(rootCmd, "ptable", "list", "--quiet", "--config-dir", dir, "--device", other)
		Expect(err).To(HaveOccurred())
		Expect(lkerror.CodeOf(err)).To(Equal(lkerror.PartitionTable))
	})
	It("fails to open a missing device", func() {
		_, _, err := executeCommandC(rootCmd, "ptable", "list", "--quiet", "--config-dir", dir, "--device", device)
		Expect(err).To(HaveOccurred())
		Expect(lkerror.CodeOf(err)).To(Equal(lkerror.OpeningDevice))
	})
})
