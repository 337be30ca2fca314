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

// All structs below are padded to 64-bit boundaries so that 32-bit userspace
// would agree with a 64-bit kernel; we only ever run 64-bit, but the layout
// has to match the kernel's regardless.

// InHeader is the fixed 8-field header that precedes every request.
type InHeader struct {
	Len     uint32
	Opcode  uint32
	Unique  uint64
	Nodeid  uint64
	Uid     uint32
	Gid     uint32
	Pid     uint32
	Padding uint32
}

// InHeaderSize is sizeof(InHeader).
const InHeaderSize = 40

// OutHeader is the fixed header that precedes every reply.
type OutHeader struct {
	Len    uint32
	Error  int32
	Unique uint64
}

// OutHeaderSize is sizeof(OutHeader).
const OutHeaderSize = 16

// Attr is the kernel's view of an inode's attributes.
type Attr struct {
	Ino       uint64
	Size      uint64
	Blocks    uint64
	Atime     uint64
	Mtime     uint64
	Ctime     uint64
	AtimeNsec uint32
	MtimeNsec uint32
	CtimeNsec uint32
	Mode      uint32
	Nlink     uint32
	Uid       uint32
	Gid       uint32
	Rdev      uint32
	Blksize   uint32
	Padding   uint32
}

// EntryOut is the reply body for LOOKUP, MKNOD and MKDIR.
type EntryOut struct {
	Nodeid         uint64
	Generation     uint64
	EntryValid     uint64
	AttrValid      uint64
	EntryValidNsec uint32
	AttrValidNsec  uint32
	Attr           Attr
}

// AttrOut is the reply body for GETATTR and SETATTR.
type AttrOut struct {
	AttrValid     uint64
	AttrValidNsec uint32
	Dummy         uint32
	Attr          Attr
}

// InitIn is the request body of the INIT handshake.
type InitIn struct {
	Major        uint32
	Minor        uint32
	MaxReadahead uint32
	Flags        uint32
}

// InitOut is the reply body of the INIT handshake.
type InitOut struct {
	Major                uint32
	Minor                uint32
	MaxReadahead         uint32
	Flags                uint32
	MaxBackground        uint16
	CongestionThreshold  uint16
	MaxWrite             uint32
}

// ForgetIn is the request body of FORGET.
type ForgetIn struct {
	Nlookup uint64
}

// FATTR_* bits, used to interpret SetattrIn.Valid. Only FattrSize is ever
// honored; every other bit is read and silently discarded.
const (
	FattrMode = 1 << 0
	FattrUID  = 1 << 1
	FattrGID  = 1 << 2
	FattrSize = 1 << 3
)

// SetattrIn is the request body of SETATTR.
type SetattrIn struct {
	Valid     uint32
	Padding   uint32
	Fh        uint64
	Size      uint64
	LockOwner uint64
	Atime     uint64
	Mtime     uint64
	Unused2   uint64
	AtimeNsec uint32
	MtimeNsec uint32
	Unused3   uint32
	Mode      uint32
	Unused4   uint32
	UID       uint32
	GID       uint32
	Unused5   uint32
}

// MknodIn is the fixed-size prefix of a MKNOD request; the target name
// follows as a NUL-terminated string.
type MknodIn struct {
	Mode    uint32
	Rdev    uint32
	Umask   uint32
	Padding uint32
}

// MkdirIn is the fixed-size prefix of a MKDIR request; the target name
// follows as a NUL-terminated string.
type MkdirIn struct {
	Mode  uint32
	Umask uint32
}

// RenameIn is the fixed-size prefix of a RENAME request; the old and new
// names follow as back-to-back NUL-terminated strings.
type RenameIn struct {
	Newdir uint64
}

// OpenIn is the request body of OPEN and OPENDIR.
type OpenIn struct {
	Flags  uint32
	Unused uint32
}

// OpenOut is the reply body of OPEN and OPENDIR.
type OpenOut struct {
	Fh        uint64
	OpenFlags uint32
	Padding   uint32
}

// ReadIn is the request body of READ and READDIR.
type ReadIn struct {
	Fh        uint64
	Offset    uint64
	Size      uint32
	ReadFlags uint32
	LockOwner uint64
	Flags     uint32
	Padding   uint32
}

// WriteIn is the fixed-size prefix of a WRITE request; the bytes to write
// follow immediately after.
type WriteIn struct {
	Fh         uint64
	Offset     uint64
	Size       uint32
	WriteFlags uint32
	LockOwner  uint64
	Flags      uint32
	Padding    uint32
}

// WriteOut is the reply body of WRITE.
type WriteOut struct {
	Size    uint32
	Padding uint32
}

// FlushIn is the request body of FLUSH.
type FlushIn struct {
	Fh        uint64
	Unused    uint32
	Padding   uint32
	LockOwner uint64
}

// ReleaseIn is the request body of RELEASE and RELEASEDIR.
type ReleaseIn struct {
	Fh           uint64
	Flags        uint32
	ReleaseFlags uint32
	LockOwner    uint64
}

// Kstatfs mirrors struct statfs as reported to the kernel.
type Kstatfs struct {
	Blocks  uint64
	Bfree   uint64
	Bavail  uint64
	Files   uint64
	Ffree   uint64
	Bsize   uint32
	Namelen uint32
	Frsize  uint32
	Padding uint32
	Spare   [6]uint32
}

// StatfsOut is the reply body of STATFS.
type StatfsOut struct {
	St Kstatfs
}

// Dirent is the fixed-size prefix of a single READDIR entry; the entry's
// name follows immediately, padded to an 8-byte boundary.
type Dirent struct {
	Ino     uint64
	Off     uint64
	Namelen uint32
	Typ     uint32
}
