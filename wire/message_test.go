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

import (
	"bytes"
	"testing"
	"unsafe"

	"github.com/kylelemons/godebug/pretty"
)

func TestInMessageInitRejectsShortRead(t *testing.T) {
	r := bytes.NewReader([]byte{1, 2, 3})

	var m InMessage
	if err := m.Init(r); err == nil {
		t.Fatalf("Init succeeded on a %d-byte read, want an error", 3)
	}
}

func TestInMessageInitRejectsLengthMismatch(t *testing.T) {
	buf := make([]byte, InHeaderSize+8)
	hdr := (*InHeader)(unsafe.Pointer(&buf[0]))
	hdr.Len = InHeaderSize // disagrees with the 48 bytes actually available
	hdr.Opcode = uint32(OpGetattr)

	var m InMessage
	if err := m.Init(bytes.NewReader(buf)); err == nil {
		t.Fatalf("Init succeeded despite a header/read length mismatch")
	}
}

func TestInMessageHeaderAndPayload(t *testing.T) {
	buf := make([]byte, InHeaderSize+4)
	hdr := (*InHeader)(unsafe.Pointer(&buf[0]))
	hdr.Len = uint32(len(buf))
	hdr.Opcode = uint32(OpLookup)
	hdr.Unique = 0xCAFE
	hdr.Nodeid = RootNodeID
	copy(buf[InHeaderSize:], []byte("foo\x00"))

	var m InMessage
	if err := m.Init(bytes.NewReader(buf)); err != nil {
		t.Fatalf("Init: %v", err)
	}

	got := m.Header()
	want := &InHeader{
		Len:    uint32(len(buf)),
		Opcode: uint32(OpLookup),
		Unique: 0xCAFE,
		Nodeid: RootNodeID,
	}
	if diff := pretty.Compare(want, got); diff != "" {
		t.Fatalf("Header() mismatch (-want +got):\n%s", diff)
	}

	name, ok := m.ConsumeCString()
	if !ok {
		t.Fatalf("ConsumeCString: no terminator found")
	}
	if name != "foo" {
		t.Fatalf("ConsumeCString() = %q, want %q", name, "foo")
	}
	if m.Remaining() != 0 {
		t.Fatalf("Remaining() = %d, want 0", m.Remaining())
	}
}

func TestOutMessageFinish(t *testing.T) {
	var m OutMessage
	m.Reset()

	resp := (*EntryOut)(m.Grow(unsafe.Sizeof(EntryOut{})))
	resp.Nodeid = 42

	data := m.Finish(0x1234, -5)

	hdr := (*OutHeader)(unsafe.Pointer(&data[0]))
	if hdr.Unique != 0x1234 {
		t.Errorf("Unique = %#x, want %#x", hdr.Unique, 0x1234)
	}
	if hdr.Error != -5 {
		t.Errorf("Error = %d, want -5", hdr.Error)
	}
	if int(hdr.Len) != len(data) {
		t.Errorf("Len = %d, want %d", hdr.Len, len(data))
	}

	gotEntry := (*EntryOut)(unsafe.Pointer(&data[OutHeaderSize]))
	if gotEntry.Nodeid != 42 {
		t.Errorf("Nodeid = %d, want 42", gotEntry.Nodeid)
	}
}

func TestOutMessageAppend(t *testing.T) {
	var m OutMessage
	m.Reset()
	m.Append([]byte("hello"))

	data := m.Finish(1, 0)
	if got, want := string(data[OutHeaderSize:]), "hello"; got != want {
		t.Fatalf("appended payload = %q, want %q", got, want)
	}
}
