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
	"bytes"
	"os"
	"testing"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/aosp-mirror/sdcardfs/wire"
)

// buildRequest assembles a complete wire frame (header + body) the way the
// kernel would, so dispatch can be driven the same way Serve drives it.
func buildRequest(t *testing.T, opcode wire.Opcode, nodeid uint64, body []byte) *wire.InMessage {
	t.Helper()

	buf := make([]byte, wire.InHeaderSize+len(body))
	hdr := (*wire.InHeader)(unsafe.Pointer(&buf[0]))
	hdr.Opcode = uint32(opcode)
	hdr.Nodeid = nodeid
	hdr.Unique = 1
	hdr.Len = uint32(len(buf))
	copy(buf[wire.InHeaderSize:], body)

	var m wire.InMessage
	if err := m.Init(bytes.NewReader(buf)); err != nil {
		t.Fatalf("Init: %v", err)
	}
	return &m
}

func cstr(s string) []byte {
	return append([]byte(s), 0)
}

func newTestSession(t *testing.T) (*Session, string) {
	t.Helper()
	root := t.TempDir()
	s := New(nil, root, Policy{SdcardGID: 1023})
	return s, root
}

func TestDispatchMkdirLookupGetattr(t *testing.T) {
	s, _ := newTestSession(t)

	var mkdirBody []byte
	mkdirBody = append(mkdirBody, make([]byte, unsafe.Sizeof(wire.MkdirIn{}))...)
	mkdirBody = append(mkdirBody, cstr("Pictures")...)

	in := buildRequest(t, wire.OpMkdir, wire.RootNodeID, mkdirBody)
	var out wire.OutMessage
	out.Reset()

	r := s.dispatch(in.Header(), s.table.Root(), in, &out)
	if r.errno != 0 {
		t.Fatalf("MKDIR errno = %d", r.errno)
	}

	entry := (*wire.EntryOut)(unsafe.Pointer(&out.Finish(1, r.errno)[wire.OutHeaderSize]))
	childID := entry.Nodeid

	// LOOKUP the same child by name and confirm it resolves to the same id.
	in2 := buildRequest(t, wire.OpLookup, wire.RootNodeID, cstr("Pictures"))
	var out2 wire.OutMessage
	out2.Reset()
	r2 := s.dispatch(in2.Header(), s.table.Root(), in2, &out2)
	if r2.errno != 0 {
		t.Fatalf("LOOKUP errno = %d", r2.errno)
	}
	data2 := out2.Finish(2, r2.errno)
	entry2 := (*wire.EntryOut)(unsafe.Pointer(&data2[wire.OutHeaderSize]))
	if entry2.Nodeid != childID {
		t.Fatalf("LOOKUP nodeid = %d, want %d", entry2.Nodeid, childID)
	}
	if entry2.Attr.Gid != 1023 {
		t.Fatalf("Attr.Gid = %d, want 1023", entry2.Attr.Gid)
	}
	if entry2.Attr.Mode&0777 != dirPerm {
		t.Fatalf("Attr.Mode&0777 = %#o, want %#o", entry2.Attr.Mode&0777, dirPerm)
	}

	node, ok := s.table.Find(childID)
	if !ok {
		t.Fatalf("child %d not found in table", childID)
	}

	// GETATTR against the resolved node.
	in3 := buildRequest(t, wire.OpGetattr, childID, nil)
	var out3 wire.OutMessage
	out3.Reset()
	r3 := s.dispatch(in3.Header(), node, in3, &out3)
	if r3.errno != 0 {
		t.Fatalf("GETATTR errno = %d", r3.errno)
	}
}

func TestDispatchWriteThenRead(t *testing.T) {
	s, root := newTestSession(t)

	if err := os.WriteFile(root+"/data.bin", nil, 0664); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	child := s.table.CreateChild(s.table.Root(), "data.bin")

	openIn := wire.OpenIn{Flags: unix.O_RDWR}
	inOpen := buildRequest(t, wire.OpOpen, child.ID(), asBytes(unsafe.Pointer(&openIn), unsafe.Sizeof(openIn)))
	var outOpen wire.OutMessage
	outOpen.Reset()
	rOpen := s.dispatch(inOpen.Header(), child, inOpen, &outOpen)
	if rOpen.errno != 0 {
		t.Fatalf("OPEN errno = %d", rOpen.errno)
	}
	fh := (*wire.OpenOut)(unsafe.Pointer(&outOpen.Finish(1, rOpen.errno)[wire.OutHeaderSize])).Fh

	payload := []byte("hello, sdcard")
	writeIn := wire.WriteIn{Fh: fh, Offset: 0, Size: uint32(len(payload))}
	writeBody := append(asBytes(unsafe.Pointer(&writeIn), unsafe.Sizeof(writeIn)), payload...)

	inWrite := buildRequest(t, wire.OpWrite, child.ID(), writeBody)
	var outWrite wire.OutMessage
	outWrite.Reset()
	rWrite := s.dispatch(inWrite.Header(), child, inWrite, &outWrite)
	if rWrite.errno != 0 {
		t.Fatalf("WRITE errno = %d", rWrite.errno)
	}
	written := (*wire.WriteOut)(unsafe.Pointer(&outWrite.Finish(1, rWrite.errno)[wire.OutHeaderSize])).Size
	if int(written) != len(payload) {
		t.Fatalf("WRITE wrote %d bytes, want %d", written, len(payload))
	}

	readIn := wire.ReadIn{Fh: fh, Offset: 0, Size: uint32(len(payload))}
	inRead := buildRequest(t, wire.OpRead, child.ID(), asBytes(unsafe.Pointer(&readIn), unsafe.Sizeof(readIn)))
	var outRead wire.OutMessage
	outRead.Reset()
	rRead := s.dispatch(inRead.Header(), child, inRead, &outRead)
	if rRead.errno != 0 {
		t.Fatalf("READ errno = %d", rRead.errno)
	}
	data := outRead.Finish(1, rRead.errno)
	if got := string(data[wire.OutHeaderSize:]); got != string(payload) {
		t.Fatalf("READ returned %q, want %q", got, string(payload))
	}
}

func TestDispatchUnlink(t *testing.T) {
	s, root := newTestSession(t)
	if err := os.WriteFile(root+"/gone.txt", nil, 0664); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	s.table.CreateChild(s.table.Root(), "gone.txt")

	in := buildRequest(t, wire.OpUnlink, wire.RootNodeID, cstr("gone.txt"))
	var out wire.OutMessage
	out.Reset()
	r := s.dispatch(in.Header(), s.table.Root(), in, &out)
	if r.errno != 0 {
		t.Fatalf("UNLINK errno = %d", r.errno)
	}

	if _, err := os.Stat(root + "/gone.txt"); !os.IsNotExist(err) {
		t.Fatalf("gone.txt still exists on disk: %v", err)
	}
	if _, ok := s.table.FindChild(s.table.Root(), "gone.txt"); ok {
		t.Fatalf("gone.txt is still a child of root in the table")
	}
}

func TestDispatchUnknownOpcodeIsENOSYS(t *testing.T) {
	s, _ := newTestSession(t)
	in := buildRequest(t, wire.Opcode(999), wire.RootNodeID, nil)
	var out wire.OutMessage
	out.Reset()
	r := s.dispatch(in.Header(), s.table.Root(), in, &out)
	if r.errno != -int32(unix.ENOSYS) {
		t.Fatalf("unknown opcode errno = %d, want %d (ENOSYS)", r.errno, -int32(unix.ENOSYS))
	}
}

// asBytes copies size bytes starting at p into a fresh slice, the same
// layout Consume expects on the way in.
func asBytes(p unsafe.Pointer, size uintptr) []byte {
	b := make([]byte, size)
	copy(b, unsafe.Slice((*byte)(p), size))
	return b
}
