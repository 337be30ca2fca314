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

// Command sdcardfs mounts a host directory as a FUSE filesystem in which
// every entry appears to be owned by a fixed uid/gid and carries a fixed
// pair of permission bits, regardless of what's actually recorded on disk.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/jacobsa/daemonize"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sys/unix"

	"github.com/aosp-mirror/sdcardfs"
	"github.com/aosp-mirror/sdcardfs/internal/fixup"
)

var rootCmd = &cobra.Command{
	Use:   "sdcardfs [flags] path mountpoint",
	Short: "Mount a directory tree with a fixed owner and permission policy",
	Args:  cobra.ExactArgs(2),
	RunE:  run,
}

func init() {
	viper.SetEnvPrefix("sdcardfs")
	viper.AutomaticEnv()

	cobra.CheckErr(bindFlags(rootCmd.Flags()))
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	path, err := filepath.Abs(args[0])
	if err != nil {
		return fmt.Errorf("resolving path: %w", err)
	}
	target := args[1]

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	cfg.Path = path

	// Reject both an unset uid/gid and an explicit zero: running the mount
	// as root would defeat the entire point of the policy it enforces.
	if cfg.UID == 0 {
		return fmt.Errorf("--uid must be nonzero")
	}
	if cfg.GID == 0 {
		return fmt.Errorf("--gid must be nonzero")
	}

	if !cfg.Foreground {
		return daemonize.Run(os.Args[0], append(os.Args[1:], "--foreground"), os.Environ(), os.Stdout)
	}

	err = serve(cfg, target)
	if reportErr := daemonize.SignalOutcome(err); reportErr != nil {
		fmt.Fprintf(os.Stderr, "signaling daemonize outcome: %v\n", reportErr)
	}
	return err
}

// serve performs the original program's umount-mount-fixup-drop-serve
// sequence, in the same order: clean up a stale mount, open the kernel
// channel, mount it, optionally fix up the tree while still running as
// root, then permanently drop to the configured uid/gid before the
// dispatcher ever touches a single byte a caller controls.
func serve(cfg config, target string) error {
	_ = unix.Unmount(target, unix.MNT_DETACH)

	dev, err := os.OpenFile("/dev/fuse", os.O_RDWR, 0)
	if err != nil {
		return fmt.Errorf("opening /dev/fuse: %w", err)
	}

	opts := fmt.Sprintf(
		"fd=%d,rootmode=40000,default_permissions,allow_other,user_id=%d,group_id=%d",
		dev.Fd(), cfg.UID, cfg.GID)

	if err := unix.Mount("/dev/fuse", target, "fuse", unix.MS_NOSUID|unix.MS_NODEV, opts); err != nil {
		dev.Close()
		return fmt.Errorf("mounting fuse at %s: %w", target, err)
	}

	if cfg.FixFiles {
		fixup.Walk(cfg.Path, int(cfg.UID), int(cfg.GID), cfg.ForceLowerCase, func(format string, args ...interface{}) {
			fmt.Fprintf(os.Stderr, "sdcardfs: fixup: "+format+"\n", args...)
		})
	}

	if err := unix.Setgid(int(cfg.GID)); err != nil {
		return fmt.Errorf("setgid: %w", err)
	}
	if err := unix.Setuid(int(cfg.UID)); err != nil {
		return fmt.Errorf("setuid: %w", err)
	}
	unix.Umask(0)

	policy := sdcardfs.Policy{
		ForceLowerCase: cfg.ForceLowerCase,
		SdcardGID:      cfg.GID,
	}

	var opt []sdcardfs.Option
	if cfg.Debug {
		opt = append(opt, sdcardfs.WithDebugLog(os.Stderr))
	}

	session := sdcardfs.New(dev, cfg.Path, policy, opt...)
	return session.Serve()
}
