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

package wire

// Opcode identifies the kind of request or notification carried by a
// message's InHeader.
type Opcode uint32

// Opcodes supported by the dispatcher. Values match the kernel ABI; opcodes
// the kernel can send that this package does not name (e.g. FUSE_SYMLINK,
// FUSE_LINK, FUSE_GETXATTR) fall through to the dispatcher's default case and
// are answered with ENOSYS.
const (
	OpLookup      Opcode = 1
	OpForget      Opcode = 2 // no reply
	OpGetattr     Opcode = 3
	OpSetattr     Opcode = 4
	OpMknod       Opcode = 8
	OpMkdir       Opcode = 9
	OpUnlink      Opcode = 10
	OpRmdir       Opcode = 11
	OpRename      Opcode = 12
	OpOpen        Opcode = 14
	OpRead        Opcode = 15
	OpWrite       Opcode = 16
	OpStatfs      Opcode = 17
	OpRelease     Opcode = 18
	OpFlush       Opcode = 25
	OpInit        Opcode = 26
	OpOpendir     Opcode = 27
	OpReaddir     Opcode = 28
	OpReleasedir  Opcode = 29
)

// RootNodeID is the nodeid the kernel uses to refer to the mount's root.
const RootNodeID uint64 = 1

// UnknownIno is reported as the Ino of every READDIR entry; the host
// filesystem's own inode numbers are not exposed to the kernel.
const UnknownIno uint64 = 0xFFFFFFFF

// EntryValidSeconds and AttrValidSeconds are the cache timeouts advertised on
// every LOOKUP/GETATTR/MKNOD/MKDIR reply.
const (
	EntryValidSeconds = 10
	AttrValidSeconds  = 10
)

// Negotiated at INIT time.
const (
	MaxWrite            = 256 * 1024
	MaxBackground       = 32
	CongestionThreshold = 32
)

// MaxReadSize is the largest READ payload the dispatcher will service; larger
// requests fail with EINVAL before any host syscall is attempted.
const MaxReadSize = 128 * 1024

// InitFlagAtomicOTrunc tells the kernel that O_TRUNC opens may be served
// atomically by the OPEN handler rather than via a separate SETATTR.
const InitFlagAtomicOTrunc = 1 << 3

// ProtocolVersion is the FUSE major/minor version advertised at INIT.
type ProtocolVersion struct {
	Major uint32
	Minor uint32
}

// KernelVersion is the protocol version this package speaks.
var KernelVersion = ProtocolVersion{Major: 7, Minor: 22}
