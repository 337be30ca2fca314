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
	"io"
	"os"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/aosp-mirror/sdcardfs/handle"
	"github.com/aosp-mirror/sdcardfs/inode"
	"github.com/aosp-mirror/sdcardfs/wire"
)

// direntHeaderSize is sizeof(wire.Dirent).
const direntHeaderSize = 24

// reply is what an opcode handler hands back to Serve: whether to write
// anything at all (FORGET never does), the errno to stamp into the header,
// and an optional cleanup to run if the write itself fails after a handler
// has already mutated shared state on the assumption the kernel received
// the reply (LOOKUP's refcount bump, chiefly).
type reply struct {
	hasReply       bool
	errno          int32
	onWriteFailure func()
}

func statusReply(errnoVal int32) reply {
	return reply{hasReply: true, errno: errnoVal}
}

// dispatch routes a single request to its opcode handler. node is nil only
// for opcodes that address no nodeid, namely INIT.
func (s *Session) dispatch(hdr *wire.InHeader, node *inode.Node, in *wire.InMessage, out *wire.OutMessage) reply {
	switch wire.Opcode(hdr.Opcode) {
	case wire.OpInit:
		return s.handleInit(in, out)
	case wire.OpLookup:
		return s.handleLookup(node, in, out)
	case wire.OpForget:
		return s.handleForget(node, in)
	case wire.OpGetattr:
		return s.handleGetattr(node, out)
	case wire.OpSetattr:
		return s.handleSetattr(node, in, out)
	case wire.OpMknod:
		return s.handleMknod(node, in, out)
	case wire.OpMkdir:
		return s.handleMkdir(node, in, out)
	case wire.OpUnlink:
		return s.handleUnlink(node, in)
	case wire.OpRmdir:
		return s.handleRmdir(node, in)
	case wire.OpRename:
		return s.handleRename(node, in)
	case wire.OpOpen:
		return s.handleOpen(node, in, out)
	case wire.OpRead:
		return s.handleRead(in, out)
	case wire.OpWrite:
		return s.handleWrite(in, out)
	case wire.OpStatfs:
		return s.handleStatfs(node, out)
	case wire.OpRelease:
		return s.handleRelease(in)
	case wire.OpReleasedir:
		return s.handleReleasedir(in)
	case wire.OpFlush:
		return s.handleFlush(in)
	case wire.OpOpendir:
		return s.handleOpendir(node, in, out)
	case wire.OpReaddir:
		return s.handleReaddir(in, out)
	default:
		return statusReply(-int32(unix.ENOSYS))
	}
}

func (s *Session) handleInit(in *wire.InMessage, out *wire.OutMessage) reply {
	req := (*wire.InitIn)(in.Consume(unsafe.Sizeof(wire.InitIn{})))
	if req == nil {
		return statusReply(-int32(unix.EINVAL))
	}

	resp := (*wire.InitOut)(out.Grow(unsafe.Sizeof(wire.InitOut{})))
	resp.Major = wire.KernelVersion.Major
	resp.Minor = wire.KernelVersion.Minor
	resp.MaxReadahead = req.MaxReadahead
	resp.Flags = wire.InitFlagAtomicOTrunc
	resp.MaxBackground = wire.MaxBackground
	resp.CongestionThreshold = wire.CongestionThreshold
	resp.MaxWrite = wire.MaxWrite

	return statusReply(0)
}

// foldName applies the mount's case-folding policy to a single path
// component, the same way inode.Path folds whole paths -- a folded name is
// what gets stored on a Node and compared against by FindChild.
func (s *Session) foldName(name string) string {
	if !s.policy.ForceLowerCase {
		return name
	}
	b := []byte(name)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}

func (s *Session) handleLookup(parent *inode.Node, in *wire.InMessage, out *wire.OutMessage) reply {
	name, ok := in.ConsumeCString()
	if !ok {
		return statusReply(-int32(unix.EINVAL))
	}

	path, err := inode.Path(parent, name, s.policy.ForceLowerCase)
	if err != nil {
		return statusReply(-int32(unix.ENAMETOOLONG))
	}

	var st unix.Stat_t
	if err := unix.Lstat(path, &st); err != nil {
		return statusReply(errno(err))
	}

	folded := s.foldName(name)
	child, existed := s.table.FindChild(parent, folded)
	if existed {
		s.table.AddRef(child)
	} else {
		child = s.table.CreateChild(parent, folded)
	}

	s.fillEntry(out, child, &st)

	return reply{
		hasReply: true,
		errno:    0,
		onWriteFailure: func() {
			s.table.Release(child, 1)
		},
	}
}

func (s *Session) fillEntry(out *wire.OutMessage, n *inode.Node, st *unix.Stat_t) {
	resp := (*wire.EntryOut)(out.Grow(unsafe.Sizeof(wire.EntryOut{})))
	resp.Nodeid = n.ID()
	resp.Generation = n.Generation()
	resp.EntryValid = wire.EntryValidSeconds
	resp.AttrValid = wire.AttrValidSeconds
	resp.Attr = attrFromStat(st, s.policy)
	resp.Attr.Ino = n.ID()
}

func (s *Session) handleForget(node *inode.Node, in *wire.InMessage) reply {
	req := (*wire.ForgetIn)(in.Consume(unsafe.Sizeof(wire.ForgetIn{})))
	if req != nil && node != nil {
		s.table.Release(node, uint32(req.Nlookup))
	}
	return reply{hasReply: false}
}

func (s *Session) handleGetattr(node *inode.Node, out *wire.OutMessage) reply {
	path, err := inode.Path(node, "", s.policy.ForceLowerCase)
	if err != nil {
		return statusReply(-int32(unix.ENAMETOOLONG))
	}

	var st unix.Stat_t
	if err := unix.Lstat(path, &st); err != nil {
		return statusReply(errno(err))
	}

	resp := (*wire.AttrOut)(out.Grow(unsafe.Sizeof(wire.AttrOut{})))
	resp.AttrValid = wire.AttrValidSeconds
	resp.Attr = attrFromStat(&st, s.policy)
	resp.Attr.Ino = node.ID()

	return statusReply(0)
}

func (s *Session) handleSetattr(node *inode.Node, in *wire.InMessage, out *wire.OutMessage) reply {
	req := (*wire.SetattrIn)(in.Consume(unsafe.Sizeof(wire.SetattrIn{})))
	if req == nil {
		return statusReply(-int32(unix.EINVAL))
	}

	path, err := inode.Path(node, "", s.policy.ForceLowerCase)
	if err != nil {
		return statusReply(-int32(unix.ENAMETOOLONG))
	}

	// Every other FATTR_* bit (mode, uid, gid, timestamps) is silently
	// accepted and discarded: this mount's ownership and permissions are
	// fixed by policy, not by what a caller asks to set.
	if req.Valid&wire.FattrSize != 0 {
		if err := unix.Truncate(path, int64(req.Size)); err != nil {
			return statusReply(errno(err))
		}
	}

	var st unix.Stat_t
	if err := unix.Lstat(path, &st); err != nil {
		return statusReply(errno(err))
	}

	resp := (*wire.AttrOut)(out.Grow(unsafe.Sizeof(wire.AttrOut{})))
	resp.AttrValid = wire.AttrValidSeconds
	resp.Attr = attrFromStat(&st, s.policy)
	resp.Attr.Ino = node.ID()

	return statusReply(0)
}

func (s *Session) handleMknod(parent *inode.Node, in *wire.InMessage, out *wire.OutMessage) reply {
	_ = (*wire.MknodIn)(in.Consume(unsafe.Sizeof(wire.MknodIn{})))
	name, ok := in.ConsumeCString()
	if !ok {
		return statusReply(-int32(unix.EINVAL))
	}

	path, err := inode.Path(parent, name, s.policy.ForceLowerCase)
	if err != nil {
		return statusReply(-int32(unix.ENAMETOOLONG))
	}

	// Only plain regular files are ever created here: this mount has no use
	// for device nodes or FIFOs, and a caller-supplied mode is not honored
	// for the same reason attrFromStat never trusts the host's mode bits.
	if err := unix.Mknod(path, unix.S_IFREG|filePerm, 0); err != nil {
		return statusReply(errno(err))
	}

	return s.replyNewEntry(parent, name, out)
}

func (s *Session) handleMkdir(parent *inode.Node, in *wire.InMessage, out *wire.OutMessage) reply {
	_ = (*wire.MkdirIn)(in.Consume(unsafe.Sizeof(wire.MkdirIn{})))
	name, ok := in.ConsumeCString()
	if !ok {
		return statusReply(-int32(unix.EINVAL))
	}

	path, err := inode.Path(parent, name, s.policy.ForceLowerCase)
	if err != nil {
		return statusReply(-int32(unix.ENAMETOOLONG))
	}

	if err := unix.Mkdir(path, dirPerm); err != nil {
		return statusReply(errno(err))
	}

	return s.replyNewEntry(parent, name, out)
}

// replyNewEntry lstats the freshly created path, creates its Node and fills
// an EntryOut reply, shared by MKNOD and MKDIR.
func (s *Session) replyNewEntry(parent *inode.Node, name string, out *wire.OutMessage) reply {
	folded := s.foldName(name)

	path, err := inode.Path(parent, name, s.policy.ForceLowerCase)
	if err != nil {
		return statusReply(-int32(unix.ENAMETOOLONG))
	}

	var st unix.Stat_t
	if err := unix.Lstat(path, &st); err != nil {
		return statusReply(errno(err))
	}

	child := s.table.CreateChild(parent, folded)
	s.fillEntry(out, child, &st)

	return reply{
		hasReply: true,
		errno:    0,
		onWriteFailure: func() {
			s.table.Release(child, 1)
		},
	}
}

func (s *Session) handleUnlink(parent *inode.Node, in *wire.InMessage) reply {
	name, ok := in.ConsumeCString()
	if !ok {
		return statusReply(-int32(unix.EINVAL))
	}

	path, err := inode.Path(parent, name, s.policy.ForceLowerCase)
	if err != nil {
		return statusReply(-int32(unix.ENAMETOOLONG))
	}

	if err := unix.Unlink(path); err != nil {
		return statusReply(errno(err))
	}

	if child, existed := s.table.FindChild(parent, s.foldName(name)); existed {
		s.table.Detach(parent, child.ID())
	}

	return statusReply(0)
}

func (s *Session) handleRmdir(parent *inode.Node, in *wire.InMessage) reply {
	name, ok := in.ConsumeCString()
	if !ok {
		return statusReply(-int32(unix.EINVAL))
	}

	path, err := inode.Path(parent, name, s.policy.ForceLowerCase)
	if err != nil {
		return statusReply(-int32(unix.ENAMETOOLONG))
	}

	if err := unix.Rmdir(path); err != nil {
		return statusReply(errno(err))
	}

	if child, existed := s.table.FindChild(parent, s.foldName(name)); existed {
		s.table.Detach(parent, child.ID())
	}

	return statusReply(0)
}

func (s *Session) handleRename(oldParent *inode.Node, in *wire.InMessage) reply {
	req := (*wire.RenameIn)(in.Consume(unsafe.Sizeof(wire.RenameIn{})))
	if req == nil {
		return statusReply(-int32(unix.EINVAL))
	}

	oldName, ok := in.ConsumeCString()
	if !ok {
		return statusReply(-int32(unix.EINVAL))
	}
	newName, ok := in.ConsumeCString()
	if !ok {
		return statusReply(-int32(unix.EINVAL))
	}

	newParent, ok := s.table.Find(req.Newdir)
	if !ok {
		return statusReply(-int32(unix.ENOENT))
	}

	oldPath, err := inode.Path(oldParent, oldName, s.policy.ForceLowerCase)
	if err != nil {
		return statusReply(-int32(unix.ENAMETOOLONG))
	}
	newPath, err := inode.Path(newParent, newName, s.policy.ForceLowerCase)
	if err != nil {
		return statusReply(-int32(unix.ENAMETOOLONG))
	}

	if err := unix.Rename(oldPath, newPath); err != nil {
		return statusReply(errno(err))
	}

	foldedOld := s.foldName(oldName)
	foldedNew := s.foldName(newName)

	if child, existed := s.table.FindChild(oldParent, foldedOld); existed {
		// A pre-existing node at the destination name is left to whatever
		// the kernel already holds a reference to; it becomes unreachable
		// by path the same way an unlinked-but-open file does, and is
		// reclaimed on its own FORGET.
		if victim, ok := s.table.FindChild(newParent, foldedNew); ok && victim != child {
			s.table.Detach(newParent, victim.ID())
		}
		s.table.Detach(oldParent, child.ID())
		s.table.Rename(child, foldedNew)
		s.table.Attach(child, newParent)
	}

	return statusReply(0)
}

func (s *Session) handleOpen(node *inode.Node, in *wire.InMessage, out *wire.OutMessage) reply {
	req := (*wire.OpenIn)(in.Consume(unsafe.Sizeof(wire.OpenIn{})))
	if req == nil {
		return statusReply(-int32(unix.EINVAL))
	}

	path, err := inode.Path(node, "", s.policy.ForceLowerCase)
	if err != nil {
		return statusReply(-int32(unix.ENAMETOOLONG))
	}

	fd, err := unix.Open(path, int(req.Flags)&^unix.O_CREAT, 0)
	if err != nil {
		return statusReply(errno(err))
	}

	id := s.handle.NewFile(os.NewFile(uintptr(fd), path))

	resp := (*wire.OpenOut)(out.Grow(unsafe.Sizeof(wire.OpenOut{})))
	resp.Fh = uint64(id)

	return statusReply(0)
}

// handleFlush has nothing to do: there is no write-back cache sitting
// between a write and the host filesystem for it to flush. It consumes its
// fixed-size request body and ignores it.
func (s *Session) handleFlush(in *wire.InMessage) reply {
	_ = (*wire.FlushIn)(in.Consume(unsafe.Sizeof(wire.FlushIn{})))
	return statusReply(0)
}

func (s *Session) handleOpendir(node *inode.Node, in *wire.InMessage, out *wire.OutMessage) reply {
	_ = (*wire.OpenIn)(in.Consume(unsafe.Sizeof(wire.OpenIn{})))

	path, err := inode.Path(node, "", s.policy.ForceLowerCase)
	if err != nil {
		return statusReply(-int32(unix.ENAMETOOLONG))
	}

	f, err := os.Open(path)
	if err != nil {
		return statusReply(errno(err))
	}

	id := s.handle.NewDir(f)

	resp := (*wire.OpenOut)(out.Grow(unsafe.Sizeof(wire.OpenOut{})))
	resp.Fh = uint64(id)

	return statusReply(0)
}

func (s *Session) handleRead(in *wire.InMessage, out *wire.OutMessage) reply {
	req := (*wire.ReadIn)(in.Consume(unsafe.Sizeof(wire.ReadIn{})))
	if req == nil {
		return statusReply(-int32(unix.EINVAL))
	}
	if req.Size > wire.MaxReadSize {
		return statusReply(-int32(unix.EINVAL))
	}

	f, ok := s.handle.File(handle.ID(req.Fh))
	if !ok {
		return statusReply(-int32(unix.EBADF))
	}

	buf := make([]byte, req.Size)
	n, err := f.FD.ReadAt(buf, int64(req.Offset))
	if err != nil && err != io.EOF {
		return statusReply(errno(err))
	}

	out.Append(buf[:n])
	return statusReply(0)
}

func (s *Session) handleWrite(in *wire.InMessage, out *wire.OutMessage) reply {
	req := (*wire.WriteIn)(in.Consume(unsafe.Sizeof(wire.WriteIn{})))
	if req == nil {
		return statusReply(-int32(unix.EINVAL))
	}

	data := in.ConsumeBytes(uintptr(req.Size))
	if data == nil {
		return statusReply(-int32(unix.EINVAL))
	}

	f, ok := s.handle.File(handle.ID(req.Fh))
	if !ok {
		return statusReply(-int32(unix.EBADF))
	}

	n, err := f.FD.WriteAt(data, int64(req.Offset))
	if err != nil {
		return statusReply(errno(err))
	}

	resp := (*wire.WriteOut)(out.Grow(unsafe.Sizeof(wire.WriteOut{})))
	resp.Size = uint32(n)

	return statusReply(0)
}

func (s *Session) handleStatfs(node *inode.Node, out *wire.OutMessage) reply {
	path, err := inode.Path(node, "", s.policy.ForceLowerCase)
	if err != nil {
		return statusReply(-int32(unix.ENAMETOOLONG))
	}

	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return statusReply(errno(err))
	}

	resp := (*wire.StatfsOut)(out.Grow(unsafe.Sizeof(wire.StatfsOut{})))
	resp.St.Blocks = st.Blocks
	resp.St.Bfree = st.Bfree
	resp.St.Bavail = st.Bavail
	resp.St.Files = st.Files
	resp.St.Ffree = st.Ffree
	resp.St.Bsize = uint32(st.Bsize)
	resp.St.Namelen = uint32(st.Namelen)
	resp.St.Frsize = uint32(st.Frsize)

	return statusReply(0)
}

func (s *Session) handleRelease(in *wire.InMessage) reply {
	req := (*wire.ReleaseIn)(in.Consume(unsafe.Sizeof(wire.ReleaseIn{})))
	if req == nil {
		return statusReply(-int32(unix.EINVAL))
	}

	s.handle.ReleaseFile(handle.ID(req.Fh))
	return statusReply(0)
}

func (s *Session) handleReleasedir(in *wire.InMessage) reply {
	req := (*wire.ReleaseIn)(in.Consume(unsafe.Sizeof(wire.ReleaseIn{})))
	if req == nil {
		return statusReply(-int32(unix.EINVAL))
	}

	s.handle.ReleaseDir(handle.ID(req.Fh))
	return statusReply(0)
}

// handleReaddir replies with exactly one directory entry per call, an
// offset of 0 and the sentinel ino wire.UnknownIno -- this mount never
// exposes a real nodeid through a dirent, and never supports seeking a
// directory stream by offset. "." and ".." are synthesized first, since
// os.ReadDir (unlike the host's own readdir(3)) never returns them itself.
func (s *Session) handleReaddir(in *wire.InMessage, out *wire.OutMessage) reply {
	req := (*wire.ReadIn)(in.Consume(unsafe.Sizeof(wire.ReadIn{})))
	if req == nil {
		return statusReply(-int32(unix.EINVAL))
	}

	d, ok := s.handle.Dir(handle.ID(req.Fh))
	if !ok {
		return statusReply(-int32(unix.EBADF))
	}

	if name, ok := d.NextDot(); ok {
		writeDirent(out, wire.UnknownIno, 0, dtDir, name)
		return statusReply(0)
	}

	ent, ok, err := d.Next()
	if err != nil {
		return statusReply(errno(err))
	}
	if !ok {
		return statusReply(0)
	}

	writeDirent(out, wire.UnknownIno, 0, dtypeFromFileMode(ent.Type()), ent.Name())
	return statusReply(0)
}

// direntSize reports how many bytes writeDirent will append for name,
// including padding to an 8-byte boundary.
func direntSize(name string) int {
	n := direntHeaderSize + len(name)
	if pad := n % 8; pad != 0 {
		n += 8 - pad
	}
	return n
}

func writeDirent(out *wire.OutMessage, ino, off uint64, typ uint32, name string) {
	d := (*wire.Dirent)(out.Grow(direntHeaderSize))
	d.Ino = ino
	d.Off = off
	d.Namelen = uint32(len(name))
	d.Typ = typ

	out.Append([]byte(name))
	if pad := direntSize(name) - (direntHeaderSize + len(name)); pad > 0 {
		out.Append(make([]byte, pad))
	}
}
