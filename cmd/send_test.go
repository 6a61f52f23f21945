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
	"context"
	"errors"
	"io"
	"net"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/viper"

	"github.com/rancher/lkboot/pkg/config"
	lkerror "github.com/rancher/lkboot/pkg/error"
	"github.com/rancher/lkboot/pkg/mocks"
	"github.com/rancher/lkboot/pkg/transport"
	"github.com/rancher/lkboot/pkg/types"
)

var _ = Describe("Send", Label("send", "cmd"), func() {
	var dir string
	var addr string
	var cancel context.CancelFunc
	var done chan error

	BeforeEach(func() {
		viper.Reset()
		rootCmd = NewRootCmd()
		_ = NewSendCmd(rootCmd)
		dir = GinkgoT().TempDir()

		l, err := net.Listen("tcp", "127.0.0.1:0")
		Expect(err).ToNot(HaveOccurred())
		addr = l.Addr().String()

		echo := transport.DispatcherFunc(func(_ context.Context, s types.Session, name, arg string, length uint32) error {
			if name != "echo" {
				return errors.New("unknown command")
			}
			data := make([]byte, length)
			if _, err := io.ReadFull(s, data); err != nil {
				return err
			}
			_, err := s.Write(append(data, arg...))
			return err
		})
		var ctx context.Context
		ctx, cancel = context.WithCancel(context.Background())
		done = make(chan error, 1)
		go func() {
			done <- transport.NewServer(echo, types.NewNullLogger()).Serve(ctx, l)
		}()
	})
	AfterEach(func() {
		cancel()
		Eventually(done).Should(Receive(BeNil()))
	})
	It("outputs usage if no command is given", Label("args"), func() {
		_, output, err := executeCommandC(rootCmd, "send", addr)
		Expect(err).To(HaveOccurred())
		Expect(output).To(ContainSubstring("Usage:"))
	})
	It("sends a command without payload", func() {
		_, output, err := executeCommandC(rootCmd, "send", "--quiet", "--config-dir", dir, addr, "echo", "hello")
		Expect(err).ToNot(HaveOccurred())
		Expect(output).To(Equal("hello"))
	})
	It("sends a file payload and stores the response", Label("flags"), func() {
		payload := filepath.Join(dir, "lk.bin")
		Expect(os.WriteFile(payload, []byte("payload-"), 0o644)).To(Succeed())
		out := filepath.Join(dir, "response")

		_, _, err := executeCommandC(rootCmd, "send", "--quiet", "--config-dir", dir, "-f", payload, "-o", out, addr, "echo", "done")
		Expect(err).ToNot(HaveOccurred())
		data, err := os.ReadFile(out)
		Expect(err).ToNot(HaveOccurred())
		Expect(string(data)).To(Equal("payload-done"))
	})
	It("reports remote failures", func() {
		_, _, err := executeCommandC(rootCmd, "send", "--quiet", "--config-dir", dir, addr, "flash", "system")
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("unknown command"))
		Expect(lkerror.CodeOf(err)).To(Equal(lkerror.SendFailed))
	})
	It("fails on a missing payload file", func() {
		_, _, err := executeCommandC(rootCmd, "send", "--quiet", "--config-dir", dir, "-f", filepath.Join(dir, "missing"), addr, "echo")
		Expect(err).To(HaveOccurred())
		Expect(lkerror.CodeOf(err)).To(Equal(lkerror.OpenFile))
	})

	Describe("openPayload", func() {
		var cfg *types.Config
		BeforeEach(func() {
			cfg = config.NewConfig(config.WithLogger(types.NewNullLogger()))
		})
		It("downloads URLs before opening them", func() {
			client := &mocks.FakeHTTPClient{Content: []byte("remote image")}
			f, length, err := openPayload(context.Background(), cfg, client, "http://images.local/lk.bin", dir)
			Expect(err).ToNot(HaveOccurred())
			defer f.Close()
			Expect(client.WasGetCalledWith("http://images.local/lk.bin")).To(BeTrue())
			Expect(length).To(Equal(uint32(len("remote image"))))
			data, err := io.ReadAll(f)
			Expect(err).ToNot(HaveOccurred())
			Expect(string(data)).To(Equal("remote image"))
		})
		It("fails if the download fails", func() {
			client := &mocks.FakeHTTPClient{Error: true}
			_, _, err := openPayload(context.Background(), cfg, client, "https://images.local/lk.bin", dir)
			Expect(err).To(HaveOccurred())
		})
		It("returns no payload without source", func() {
			client := &mocks.FakeHTTPClient{}
			f, length, err := openPayload(context.Background(), cfg, client, "", dir)
			Expect(err).ToNot(HaveOccurred())
			Expect(f).To(BeNil())
			Expect(length).To(BeZero())
			Expect(client.ClientCalls).To(BeEmpty())
		})
	})
})
