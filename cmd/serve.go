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
	"fmt"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/rancher/lkboot/cmd/config"
	"github.com/rancher/lkboot/internal/version"
	lkerror "github.com/rancher/lkboot/pkg/error"
	"github.com/rancher/lkboot/pkg/lkboot"
	"github.com/rancher/lkboot/pkg/tracing"
	"github.com/rancher/lkboot/pkg/transport"
	"github.com/rancher/lkboot/pkg/types"
)

// versionCommand reports the loader version to the remote side
func versionCommand(_ context.Context, s types.Session, _ string, _ uint32, _ any) error {
	_, err := fmt.Fprintln(s, shortVersion(version.Get()))
	return err
}

func NewServeCmd(root *cobra.Command) *cobra.Command {
	c := &cobra.Command{
		Use:   "serve",
		Short: "Serve lkboot commands over the network",
		Args:  cobra.ExactArgs(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.ReadConfigRun(viper.GetString("config-dir"), cmd.Flags())
			if err != nil {
				if cfg != nil {
					cfg.Logger.Errorf("Error reading config: %s\n", err)
				}
				return lkerror.NewFromError(err, lkerror.ReadingConfig)
			}
			cmd.SilenceUsage = true

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			shutdown, err := tracing.Setup(ctx, cfg)
			if err != nil {
				return lkerror.NewFromError(err, lkerror.ServeFailed)
			}
			defer func() {
				if err := shutdown(context.Background()); err != nil {
					cfg.Logger.Warnf("failed flushing traces: %v", err)
				}
			}()

			dev, table, err := openDevice(cfg)
			if err != nil {
				return err
			}
			defer dev.Close()

			d, err := lkboot.NewDispatcher(cfg, lkboot.WithPartitionTable(table))
			if err != nil {
				return lkerror.NewFromError(err, lkerror.ServeFailed)
			}
			if err = d.Register("version", versionCommand, nil); err != nil {
				return lkerror.NewFromError(err, lkerror.ServeFailed)
			}
			cfg.Logger.Debugf("registered commands: %s", strings.Join(d.Commands(), ", "))

			if autoboot, _ := cmd.Flags().GetBool("autoboot"); autoboot {
				if err = d.FlashBoot(); err != nil {
					cfg.Logger.Warnf("autoboot failed: %v", err)
				}
			}

			l, err := net.Listen("tcp", cfg.Listen)
			if err != nil {
				return lkerror.NewFromError(err, lkerror.ServeFailed)
			}
			cfg.Logger.Debugf("lkboot %s serving %d partitions", version.GetVersion(), len(table.List()))

			err = transport.NewServer(d, cfg.Logger).Serve(ctx, l)
			if err != nil && !errors.Is(err, context.Canceled) {
				return lkerror.NewFromError(err, lkerror.ServeFailed)
			}
			return nil
		},
	}
	root.AddCommand(c)
	addServeFlags(c)
	return c
}

// register the subcommand into rootCmd
var _ = NewServeCmd(rootCmd)
