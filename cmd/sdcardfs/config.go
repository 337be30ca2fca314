// Copyright 2015 Google Inc. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// config mirrors the handful of knobs the original command line exposed.
// Every field but Path (taken from the first argument) has a flag, which an
// SDCARDFS_* environment variable can also set. No config file is read.
type config struct {
	Path           string `mapstructure:"path"`
	UID            uint32 `mapstructure:"uid"`
	GID            uint32 `mapstructure:"gid"`
	ForceLowerCase bool   `mapstructure:"force-lower-case"`
	FixFiles       bool   `mapstructure:"fix-files"`
	Foreground     bool   `mapstructure:"foreground"`
	Debug          bool   `mapstructure:"debug"`
}

func bindFlags(flags *pflag.FlagSet) error {
	flags.Uint32("uid", 0, "uid to mount as and drop privileges to (required, nonzero); entries still appear owned by uid 0")
	flags.Uint32("gid", 0, "group every entry in the tree appears to belong to (required, nonzero)")
	flags.Bool("force-lower-case", false, "case-fold every name to lower case, on disk and on the wire")
	flags.Bool("fix-files", false, "chown (and, with --force-lower-case, rename) the existing tree before serving it")
	flags.Bool("foreground", false, "run in the foreground instead of daemonizing")
	flags.Bool("debug", false, "log every incoming request (replies are not logged)")

	return viper.BindPFlags(flags)
}

// loadConfig decodes viper's merged flag/env/file view into a config,
// failing loudly on a key with the wrong type rather than ignoring it.
func loadConfig() (config, error) {
	var c config
	if err := viper.Unmarshal(&c, viper.DecodeHook(mapstructure.StringToTimeDurationHookFunc())); err != nil {
		return config{}, fmt.Errorf("decoding configuration: %w", err)
	}
	return c, nil
}
