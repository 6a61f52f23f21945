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

package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/sanity-io/litter"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/rancher/lkboot/pkg/config"
	"github.com/rancher/lkboot/pkg/constants"
	"github.com/rancher/lkboot/pkg/types"
)

// flagKeys maps command line flags to their config keys
var flagKeys = map[string]string{
	"device":         "device.path",
	"device-name":    "device.name",
	"erase-size":     "device.erase-size",
	"iobuffer-size":  "iobuffer.size",
	"alloc-align":    "alloc-align",
	"cmdline":        "cmdline",
	"listen":         "listen",
	"sysparam":       "sysparam.type",
	"sysparam-path":  "sysparam.path",
	"fpga-devcfg":    "fpga.devcfg",
	"handoff-dir":    "handoff.dir",
	"trace-endpoint": "tracing.endpoint",
}

// bindGivenFlags binds to viper only the flags set by the user, so defaults
// of unset flags don't override config file values
func bindGivenFlags(vp *viper.Viper, flagSet *pflag.FlagSet) {
	if flagSet == nil {
		return
	}
	flagSet.VisitAll(func(f *pflag.Flag) {
		key, ok := flagKeys[f.Name]
		if !ok || !f.Changed {
			return
		}
		_ = vp.BindPFlag(key, f)
	})
}

// byteSizeHook decodes human readable sizes such as "16MiB"
func byteSizeHook(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
	if from.Kind() != reflect.String || to != reflect.TypeOf(types.ByteSize(0)) {
		return data, nil
	}
	return types.ParseByteSize(data.(string))
}

func setupLogger(cfg *types.Config) {
	if viper.GetBool("debug") {
		cfg.Logger.SetLevel(types.DebugLevel())
	}

	// Set formatter so both file and stdout format are equal
	cfg.Logger.SetFormatter(&logrus.TextFormatter{
		ForceColors:      true,
		DisableColors:    false,
		DisableTimestamp: false,
		FullTimestamp:    true,
	})

	var out io.Writer = os.Stdout
	if viper.GetBool("quiet") {
		out = io.Discard
	}
	if logfile := viper.GetString("logfile"); logfile != "" {
		o, err := cfg.Fs.OpenFile(logfile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, fs.ModePerm)
		if err != nil {
			cfg.Logger.Errorf("Could not open %s for logging to file: %s", logfile, err.Error())
		} else if viper.GetBool("quiet") {
			out = o
		} else {
			out = io.MultiWriter(os.Stdout, o)
		}
	}
	cfg.Logger.SetOutput(out)
}

// ReadConfigRun loads the loader configuration from configDir/config.yaml,
// the files of configDir/config.d, LKBOOT_ environment variables and the
// flags set by the user, in increasing order of precedence.
func ReadConfigRun(configDir string, flags *pflag.FlagSet, opts ...config.GenericOptions) (*types.Config, error) {
	cfg := config.NewConfig(append([]config.GenericOptions{config.WithLogger(types.NewLogger())}, opts...)...)
	if cfg == nil {
		return nil, errors.New("invalid config options")
	}
	setupLogger(cfg)

	if configDir == "" {
		configDir = constants.ConfigDir
	}

	viper.AddConfigPath(configDir)
	viper.SetConfigType("yaml")
	viper.SetConfigName(constants.ConfigFile)
	// If a config file is found, read it in.
	if err := viper.MergeInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return cfg, fmt.Errorf("reading config file: %w", err)
		}
	}

	// Load extra config files on configdir/config.d/ so we can override config values
	cfgExtra := filepath.Join(configDir, "config.d")
	if _, err := cfg.Fs.Stat(cfgExtra); err == nil {
		entries, err := cfg.Fs.ReadDir(cfgExtra)
		if err != nil {
			return cfg, err
		}
		for _, e := range entries {
			if e.IsDir() || !strings.HasSuffix(e.Name(), ".yaml") {
				continue
			}
			viper.SetConfigFile(filepath.Join(cfgExtra, e.Name()))
			if err = viper.MergeInConfig(); err != nil {
				return cfg, fmt.Errorf("reading config file %s: %w", e.Name(), err)
			}
		}
	}

	bindGivenFlags(viper.GetViper(), flags)

	// Set the prefix for vars so we get only the ones starting with LKBOOT
	viper.SetEnvPrefix(constants.EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	for _, key := range flagKeys {
		_ = viper.BindEnv(key)
	}
	_ = viper.BindEnv("boot-delay")
	_ = viper.BindEnv("iobuffer.phys")
	_ = viper.BindEnv("iobuffer.args-size")
	_ = viper.BindEnv("device.mmap-base")
	_ = viper.BindEnv("device.size")
	viper.AutomaticEnv()

	err := viper.Unmarshal(cfg, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		byteSizeHook,
		mapstructure.StringToTimeDurationHookFunc(),
	)))
	if err != nil {
		return cfg, fmt.Errorf("decoding config: %w", err)
	}
	if err = cfg.Sanitize(); err != nil {
		return cfg, err
	}

	dump := *cfg
	dump.Logger = nil
	dump.Fs = nil
	cfg.Logger.Debugf("Full config loaded: %s", litter.Sdump(dump))
	return cfg, nil
}
