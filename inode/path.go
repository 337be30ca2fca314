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

package inode

import "fmt"

// PathBufferSize is the size of the scratch buffer Path uses to assemble a
// host path. A path (including a trailing child name) that does not fit
// fails with an error rather than being silently truncated.
const PathBufferSize = 1024

// ErrPathTooLong is returned by Path when the composed path does not fit in
// PathBufferSize bytes.
var ErrPathTooLong = fmt.Errorf("inode: composed path exceeds %d bytes", PathBufferSize)

// Path reconstructs the absolute host path of n, optionally with a trailing
// child name appended (for operations like LOOKUP or MKDIR that name a
// not-yet-looked-up child). It walks parent pointers root-ward, assembling
// the path from its tail toward its head exactly as a stack of path
// components would, then case-folds the result in place if foldCase is set.
//
// Case folding only ever touches ASCII: bytes >= 0x80 pass through
// unchanged, so multi-byte UTF-8 sequences are never corrupted by it.
func Path(n *Node, child string, foldCase bool) (string, error) {
	buf := make([]byte, PathBufferSize)
	out := PathBufferSize

	pushComponent := func(name string) bool {
		l := len(name)
		if l+1 > out {
			return false
		}
		out -= l
		copy(buf[out:], name)
		out--
		buf[out] = '/'
		return true
	}

	if child != "" {
		if !pushComponent(child) {
			return "", ErrPathTooLong
		}
	}

	for cur := n; cur != nil; cur = cur.parent {
		if cur.parent == nil {
			// The root's name is already an absolute path; splice it in
			// directly rather than treating it as one more path component,
			// so we don't introduce a spurious leading slash.
			root := []byte(cur.name)
			if len(root) > out {
				return "", ErrPathTooLong
			}
			out -= len(root)
			copy(buf[out:], root)
			break
		}

		if !pushComponent(cur.name) {
			return "", ErrPathTooLong
		}
	}

	result := buf[out:]
	if foldCase {
		foldASCII(result)
	}

	return string(result), nil
}

// foldASCII lowercases b in place, leaving bytes >= 0x80 untouched.
func foldASCII(b []byte) {
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
}
