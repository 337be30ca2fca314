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

// Package sdcardfs implements the FUSE request dispatcher that re-exports a
// host directory subtree under a fixed, caller-supplied owner and a fixed
// set of permission bits.
//
// The package is given an already-opened kernel channel, a root directory
// and a Policy, and does nothing else: it does not parse flags, mount
// /dev/fuse, or drop privileges. See cmd/sdcardfs for the program that does.
package sdcardfs

import (
	"fmt"
	"io"
	"log"
	"os"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/aosp-mirror/sdcardfs/handle"
	"github.com/aosp-mirror/sdcardfs/inode"
	"github.com/aosp-mirror/sdcardfs/wire"
)

// Session owns the kernel channel, the node table, the handle table and the
// policy for a single mount. It is not safe for concurrent use: Serve reads
// and handles one request at a time on the calling goroutine, which is the
// whole of the concurrency model this dispatcher offers (see the package's
// design notes on why: no opcode handler ever suspends, so there is nothing
// for a second goroutine to usefully overlap with).
type Session struct {
	dev    *os.File
	table  *inode.Table
	handle *handle.Table
	policy Policy

	errorLog *log.Logger
	debugLog *log.Logger // nil unless debugging was requested
}

// Option configures a Session at construction time.
type Option func(*Session)

// WithDebugLog enables verbose per-request logging to w.
func WithDebugLog(w io.Writer) Option {
	return func(s *Session) {
		s.debugLog = log.New(w, "sdcardfs: ", log.Lmicroseconds)
	}
}

// New creates a Session bound to an already-opened kernel channel and a host
// root directory. It performs no syscalls beyond what's needed to build its
// initial state; Serve is what actually talks to the kernel.
func New(channel *os.File, rootPath string, policy Policy, opts ...Option) *Session {
	s := &Session{
		dev:      channel,
		table:    inode.NewTable(rootPath),
		handle:   handle.NewTable(),
		policy:   policy,
		errorLog: log.New(os.Stderr, "sdcardfs: ", log.Lmicroseconds),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Serve repeatedly reads requests from the kernel channel, dispatches each
// to its opcode handler and writes exactly one reply, until the channel is
// closed (io.EOF, reported as a nil error) or an unrecoverable error occurs.
//
// Requests are handled one at a time, in the order the kernel delivers
// them: there is no internal queue and no opcode handler runs concurrently
// with another.
func (s *Session) Serve() error {
	var in wire.InMessage
	var out wire.OutMessage

	for {
		if err := s.readMessage(&in); err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}

		hdr := in.Header()
		if s.debugLog != nil {
			s.debugLog.Printf("-> op=%d unique=%#x nodeid=%#x", hdr.Opcode, hdr.Unique, hdr.Nodeid)
		}

		var node *inode.Node
		if hdr.Nodeid != 0 {
			var ok bool
			node, ok = s.table.Find(hdr.Nodeid)
			if !ok {
				// FORGET never gets a reply, not even a status one, whether
				// or not the nodeid it names still resolves.
				if wire.Opcode(hdr.Opcode) == wire.OpForget {
					continue
				}
				if err := s.writeStatus(hdr.Unique, -int32(unix.ENOENT)); err != nil {
					return err
				}
				continue
			}
		}

		out.Reset()
		r := s.dispatch(hdr, node, &in, &out)

		if !r.hasReply {
			continue
		}

		data := out.Finish(hdr.Unique, r.errno)
		if _, err := s.dev.Write(data); err != nil {
			if r.onWriteFailure != nil {
				r.onWriteFailure()
			}
			if s.errorLog != nil {
				s.errorLog.Printf("write reply for unique=%#x: %v", hdr.Unique, err)
			}
			return err
		}
	}
}

// readMessage reads the next request into in, retrying transparently on
// EINTR and translating ENODEV (the kernel has unmounted us) into io.EOF.
func (s *Session) readMessage(in *wire.InMessage) error {
	for {
		err := in.Init(s.dev)
		if err == nil {
			return nil
		}

		var pe *os.PathError
		if errorsAsPathError(err, &pe) {
			switch pe.Err {
			case syscall.ENODEV:
				return io.EOF
			case syscall.EINTR:
				continue
			}
		}

		return err
	}
}

func errorsAsPathError(err error, target **os.PathError) bool {
	if pe, ok := err.(*os.PathError); ok {
		*target = pe
		return true
	}
	return false
}

// writeStatus writes a status-only reply (no body) with the given negated
// errno.
func (s *Session) writeStatus(unique uint64, errnoVal int32) error {
	var out wire.OutMessage
	out.Reset()
	_, err := s.dev.Write(out.Finish(unique, errnoVal))
	return err
}

// String implements fmt.Stringer for debug logging.
func (s *Session) String() string {
	return fmt.Sprintf("sdcardfs.Session{root=%q}", s.table.Root().Name())
}
