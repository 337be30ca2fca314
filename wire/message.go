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
	"fmt"
	"io"
	"unsafe"
)

// MaxMessageSize is the scratch buffer size every InMessage reserves: the
// largest possible WRITE payload plus room for the header and the fixed
// WriteIn prefix. The kernel never sends a message larger than this.
const MaxMessageSize = MaxWrite + 128

// InMessage holds a single request read from the kernel: the leading
// InHeader plus whatever payload follows it. Reuse a single InMessage across
// requests with Init to avoid re-allocating the scratch buffer.
type InMessage struct {
	buf  [MaxMessageSize]byte
	n    int // bytes actually read, including the header
	read int // Consume cursor, relative to buf[InHeaderSize:]
}

// Init reads a single message from r into m, discarding any previous
// contents. It returns an error for short reads, oversized messages, or a
// header whose declared length disagrees with what was actually read.
func (m *InMessage) Init(r io.Reader) error {
	n, err := r.Read(m.buf[:])
	if err != nil {
		return err
	}

	if n < InHeaderSize {
		return fmt.Errorf("wire: short read (%d bytes, need at least %d)", n, InHeaderSize)
	}

	m.n = n
	m.read = 0

	hdr := m.Header()
	if int(hdr.Len) != n {
		return fmt.Errorf("wire: header length %d does not match bytes read %d", hdr.Len, n)
	}

	return nil
}

// Header returns the InHeader at the front of the message.
func (m *InMessage) Header() *InHeader {
	return (*InHeader)(unsafe.Pointer(&m.buf[0]))
}

// Payload returns the bytes following the header, un-consumed.
func (m *InMessage) Payload() []byte {
	return m.buf[InHeaderSize:m.n]
}

// Remaining reports how many payload bytes have not yet been consumed.
func (m *InMessage) Remaining() int {
	return (m.n - InHeaderSize) - m.read
}

// Consume returns a pointer to the next n un-consumed payload bytes and
// advances the cursor past them, or nil if fewer than n bytes remain.
func (m *InMessage) Consume(n uintptr) unsafe.Pointer {
	if uintptr(m.Remaining()) < n {
		return nil
	}

	p := unsafe.Pointer(&m.buf[InHeaderSize+m.read])
	m.read += int(n)
	return p
}

// ConsumeBytes returns the next n un-consumed payload bytes as a slice and
// advances the cursor, or nil if fewer than n bytes remain.
func (m *InMessage) ConsumeBytes(n uintptr) []byte {
	if uintptr(m.Remaining()) < n {
		return nil
	}

	start := InHeaderSize + m.read
	m.read += int(n)
	return m.buf[start : start+int(n)]
}

// ConsumeCString consumes a NUL-terminated string from the remaining
// payload, returning it without the trailing NUL. It returns false if no NUL
// byte is found in what remains.
func (m *InMessage) ConsumeCString() (string, bool) {
	rest := m.buf[InHeaderSize+m.read : m.n]
	for i, b := range rest {
		if b == 0 {
			s := string(rest[:i])
			m.read += i + 1
			return s, true
		}
	}
	return "", false
}

// OutMessage accumulates a reply header plus an optional fixed-size or
// variable-length body in a single contiguous buffer, so the slice Finish
// returns can be handed to a single write call.
type OutMessage struct {
	buf [OutHeaderSize + MaxMessageSize]byte
	n   int
}

// Reset clears m and reserves room for the OutHeader, which Finish fills in.
func (m *OutMessage) Reset() {
	m.n = OutHeaderSize
}

// Grow appends n zeroed bytes to the message and returns a pointer to them,
// suitable for casting to a fixed-size reply struct.
func (m *OutMessage) Grow(n uintptr) unsafe.Pointer {
	start := m.n
	end := start + int(n)
	for i := start; i < end; i++ {
		m.buf[i] = 0
	}
	m.n = end
	return unsafe.Pointer(&m.buf[start])
}

// Append appends raw bytes (e.g. a READ/READDIR payload) to the message.
func (m *OutMessage) Append(b []byte) {
	m.n += copy(m.buf[m.n:m.n+len(b)], b)
}

// Finish stamps the OutHeader with the final length, unique id and errno,
// and returns the complete message ready to write.
func (m *OutMessage) Finish(unique uint64, errno int32) []byte {
	hdr := (*OutHeader)(unsafe.Pointer(&m.buf[0]))
	hdr.Len = uint32(m.n)
	hdr.Error = errno
	hdr.Unique = unique
	return m.buf[:m.n]
}
