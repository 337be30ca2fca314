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

// Package fixup implements the one-time offline walk that brings a host
// directory tree in line with a mount's policy before the mount is served:
// it corrects ownership on every entry and, when case folding is enabled,
// renames any entry whose name is not already lower case.
//
// This only needs to run once, before the dispatcher starts accepting
// requests: every subsequent LOOKUP and MKNOD/MKDIR already applies the
// same policy going forward, so the tree never drifts back out of line on
// its own.
package fixup

import (
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// needsNormalizing reports whether name contains an upper-case ASCII byte.
func needsNormalizing(name string) bool {
	for i := 0; i < len(name); i++ {
		c := name[i]
		if c >= 'A' && c <= 'Z' {
			return true
		}
	}
	return false
}

func normalize(name string) string {
	b := []byte(name)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}

// Walk recursively chowns every entry under root to uid:gid and, if
// foldCase is set, renames any entry whose name isn't already lower case.
// It keeps going past errors on individual entries, logging each one to
// errLog rather than aborting the whole walk partway through a tree that
// may be large and is, at this point, not yet being served to anyone.
func Walk(root string, uid, gid int, foldCase bool, errLog func(format string, args ...interface{})) error {
	entries, err := os.ReadDir(root)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		name := entry.Name()
		if name == "." || name == ".." {
			continue
		}

		path := filepath.Join(root, name)

		if err := unix.Chown(path, uid, gid); err != nil && errLog != nil {
			errLog("chown %s: %v", path, err)
		}

		if foldCase && needsNormalizing(name) {
			newPath := filepath.Join(root, normalize(name))
			if err := os.Rename(path, newPath); err != nil {
				if errLog != nil {
					errLog("rename %s -> %s: %v", path, newPath, err)
				}
			} else {
				path = newPath
			}
		}

		info, err := os.Lstat(path)
		if err != nil {
			if errLog != nil {
				errLog("stat %s: %v", path, err)
			}
			continue
		}

		if info.IsDir() {
			if err := Walk(path, uid, gid, foldCase, errLog); err != nil && errLog != nil {
				errLog("walk %s: %v", path, err)
			}
		}
	}

	return nil
}
