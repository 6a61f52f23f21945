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
	"fmt"
	"io"
	"math"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/rancher/lkboot/cmd/config"
	lkerror "github.com/rancher/lkboot/pkg/error"
	"github.com/rancher/lkboot/pkg/http"
	"github.com/rancher/lkboot/pkg/transport"
	"github.com/rancher/lkboot/pkg/types"
	"github.com/rancher/lkboot/pkg/utils"
)

// openPayload opens the payload to send, downloading it into tmpDir first
// if src is a URL. It returns the payload and its length.
func openPayload(ctx context.Context, cfg *types.Config, client types.HTTPClient, src, tmpDir string) (io.ReadCloser, uint32, error) {
	if src == "" {
		return nil, 0, nil
	}
	if http.IsURL(src) {
		path, err := client.GetURL(ctx, cfg.Logger, src, tmpDir)
		if err != nil {
			return nil, 0, err
		}
		src = path
	}
	f, err := cfg.Fs.Open(src)
	if err != nil {
		return nil, 0, err
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, err
	}
	if fi.Size() > math.MaxUint32 {
		f.Close()
		return nil, 0, fmt.Errorf("payload %s too large: %d bytes", src, fi.Size())
	}
	return f, uint32(fi.Size()), nil
}

func NewSendCmd(root *cobra.Command) *cobra.Command {
	c := &cobra.Command{
		Use:   "send ADDR COMMAND [ARG]",
		Short: "Send a command to a remote lkboot server",
		Args:  cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.ReadConfigRun(viper.GetString("config-dir"), cmd.Flags())
			if err != nil {
				if cfg != nil {
					cfg.Logger.Errorf("Error reading config: %s\n", err)
				}
				return lkerror.NewFromError(err, lkerror.ReadingConfig)
			}
			cmd.SilenceUsage = true

			var arg string
			if len(args) == 3 {
				arg = args[2]
			}
			timeout, _ := cmd.Flags().GetDuration("timeout")
			file, _ := cmd.Flags().GetString("file")
			output, _ := cmd.Flags().GetString("output")

			tmpDir, err := os.MkdirTemp("", "lkboot-send")
			if err != nil {
				return lkerror.NewFromError(err, lkerror.OpenFile)
			}
			defer os.RemoveAll(tmpDir)

			payload, length, err := openPayload(cmd.Context(), cfg, http.NewClient(timeout), file, tmpDir)
			if err != nil {
				cfg.Logger.Errorf("failed opening payload %s: %v", file, err)
				return lkerror.NewFromError(err, lkerror.OpenFile)
			}
			if payload != nil {
				defer payload.Close()
			}

			client, err := transport.NewClient(args[0], cfg.Logger, transport.WithTimeout(timeout))
			if err != nil {
				return lkerror.NewFromError(err, lkerror.SendFailed)
			}
			response, err := client.Command(cmd.Context(), args[1], arg, payload, length)
			if err != nil {
				return lkerror.NewFromError(err, lkerror.SendFailed)
			}

			if output != "" {
				err = utils.WriteFileAtomic(cfg.Fs, output, response)
				if err != nil {
					return lkerror.NewFromError(err, lkerror.OpenFile)
				}
				return nil
			}
			_, err = cmd.OutOrStdout().Write(response)
			return err
		},
	}
	root.AddCommand(c)
	c.Flags().StringP("file", "f", "", "File or http(s) URL to send as the command payload")
	c.Flags().StringP("output", "o", "", "Write the command response to this file instead of stdout")
	c.Flags().Duration("timeout", 5*time.Minute, "Timeout of the whole exchange")
	return c
}

// register the subcommand into rootCmd
var _ = NewSendCmd(rootCmd)
