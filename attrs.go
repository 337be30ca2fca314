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

package sdcardfs

import (
	"os"

	"golang.org/x/sys/unix"

	"github.com/aosp-mirror/sdcardfs/wire"
)

// modePermBits masks the low nine permission bits out of a raw host mode,
// leaving the file-type and setuid/setgid/sticky bits untouched.
const modePermBits = 0777

// modeExecBit is S_IXUSR: if it's set on the host mode we treat the entry as
// an executable and keep its permissions "loose" (0775) rather than the
// 0664 every other regular file gets.
const modeExecBit = 0100

// dirPerm and filePerm are the fixed low-nine-bit permissions every
// directory and (non-executable) regular file appears to have, regardless
// of what's actually recorded on the host filesystem.
const (
	dirPerm  = 0775
	filePerm = 0664
)

// attrFromStat fills out a wire.Attr from a host lstat result, applying the
// mount's ownership and permission policy. ino is overwritten with the
// node's own nodeid by the caller; attrFromStat fills it from the host stat
// only as a placeholder.
func attrFromStat(st *unix.Stat_t, policy Policy) wire.Attr {
	var a wire.Attr

	a.Ino = uint64(st.Ino)
	a.Size = uint64(st.Size)
	a.Blocks = uint64(st.Blocks)
	a.Atime = uint64(st.Atim.Sec)
	a.AtimeNsec = uint32(st.Atim.Nsec)
	a.Mtime = uint64(st.Mtim.Sec)
	a.MtimeNsec = uint32(st.Mtim.Nsec)
	a.Ctime = uint64(st.Ctim.Sec)
	a.CtimeNsec = uint32(st.Ctim.Nsec)
	a.Nlink = uint32(st.Nlink)

	mode := uint32(st.Mode)
	if mode&modeExecBit != 0 {
		mode = (mode &^ modePermBits) | dirPerm
	} else {
		mode = (mode &^ modePermBits) | filePerm
	}
	a.Mode = mode

	a.Uid = 0
	a.Gid = policy.SdcardGID

	return a
}

// POSIX DT_* constants, as used in struct dirent and FUSE's wire.Dirent.Typ.
const (
	dtUnknown = 0
	dtFifo    = 1
	dtChr     = 2
	dtDir     = 4
	dtBlk     = 6
	dtReg     = 8
	dtLnk     = 10
	dtSock    = 12
)

// dtypeFromFileMode maps an os.FileInfo/fs.DirEntry mode's type bits (as
// returned by os.ReadDir, which already resolves the type without a second
// stat in the common case) to the POSIX DT_* constants.
func dtypeFromFileMode(m os.FileMode) uint32 {
	switch {
	case m&os.ModeDir != 0:
		return dtDir
	case m&os.ModeSymlink != 0:
		return dtLnk
	case m&os.ModeNamedPipe != 0:
		return dtFifo
	case m&os.ModeSocket != 0:
		return dtSock
	case m&os.ModeDevice != 0:
		if m&os.ModeCharDevice != 0 {
			return dtChr
		}
		return dtBlk
	case m&os.ModeType == 0:
		return dtReg
	default:
		return dtUnknown
	}
}
