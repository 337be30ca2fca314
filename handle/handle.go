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

// Package handle owns the kernel-visible 64-bit handle ids the dispatcher
// hands out for OPEN and OPENDIR, and the open *os.File / *os.File-backed
// directory stream each one wraps.
package handle

import (
	"fmt"
	"os"

	"github.com/jacobsa/syncutil"
)

// ID is the wire-visible handle id (the FUSE "fh" field).
type ID uint64

// File is a kernel-held open regular file.
type File struct {
	FD *os.File
}

// Dir is a kernel-held open directory stream.
type Dir struct {
	Entries *os.File // the directory, opened for ReadDir
	cursor  []os.DirEntry
	read    int
	eof     bool

	// dotsRead counts how many of the synthetic "." and ".." entries this
	// stream still owes the kernel have already been handed back via
	// NextDot: os.ReadDir never returns them itself, unlike the host's own
	// readdir(3).
	dotsRead int
}

// Table hands out Ids for open files and directories and owns their
// lifetime. Ids come from a counter and are never handed out twice: RELEASE
// and RELEASEDIR are the only ways an id leaves the table, and they do so
// by deletion from the map rather than a free list, so a stale id after
// release simply fails to resolve instead of silently aliasing a new file.
type Table struct {
	mu syncutil.InvariantMutex

	nextID ID // GUARDED_BY(mu)
	files  map[ID]*File // GUARDED_BY(mu)
	dirs   map[ID]*Dir  // GUARDED_BY(mu)
}

// NewTable creates an empty handle table.
func NewTable() *Table {
	t := &Table{
		nextID: 1,
		files:  make(map[ID]*File),
		dirs:   make(map[ID]*Dir),
	}
	t.mu = syncutil.NewInvariantMutex(t.checkInvariants)
	return t
}

func (t *Table) checkInvariants() {
	for id := range t.files {
		if _, collide := t.dirs[id]; collide {
			panic(fmt.Sprintf("handle id %d used for both a file and a directory", id))
		}
	}
}

// NewFile allocates a handle wrapping fd.
func (t *Table) NewFile(fd *os.File) ID {
	t.mu.Lock()
	defer t.mu.Unlock()

	id := t.nextID
	t.nextID++
	t.files[id] = &File{FD: fd}
	return id
}

// NewDir allocates a handle wrapping a directory stream.
func (t *Table) NewDir(dir *os.File) ID {
	t.mu.Lock()
	defer t.mu.Unlock()

	id := t.nextID
	t.nextID++
	t.dirs[id] = &Dir{Entries: dir}
	return id
}

// File looks up an open-file handle.
func (t *Table) File(id ID) (*File, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	f, ok := t.files[id]
	return f, ok
}

// Dir looks up an open-directory handle.
func (t *Table) Dir(id ID) (*Dir, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	d, ok := t.dirs[id]
	return d, ok
}

// ReleaseFile closes and frees a file handle. It is a no-op if id is
// unknown, which can happen if RELEASE races a prior RELEASE (it shouldn't,
// under the kernel's contract, but the dispatcher must not panic if it does).
func (t *Table) ReleaseFile(id ID) error {
	t.mu.Lock()
	f, ok := t.files[id]
	delete(t.files, id)
	t.mu.Unlock()

	if !ok {
		return nil
	}
	return f.FD.Close()
}

// ReleaseDir closes and frees a directory handle.
func (t *Table) ReleaseDir(id ID) error {
	t.mu.Lock()
	d, ok := t.dirs[id]
	delete(t.dirs, id)
	t.mu.Unlock()

	if !ok {
		return nil
	}
	return d.Entries.Close()
}

// NextDot returns the next synthetic "." or ".." entry this stream still
// owes the kernel, in order, and reports ok == false once both have been
// handed back. Each READDIR reply carries at most one directory entry, so
// the dispatcher calls this once per request before ever touching Next.
func (d *Dir) NextDot() (name string, ok bool) {
	switch d.dotsRead {
	case 0:
		d.dotsRead = 1
		return ".", true
	case 1:
		d.dotsRead = 2
		return "..", true
	default:
		return "", false
	}
}

// Next returns the directory's next entry, reading a fresh batch from the
// host via ReadDir(-1) the first time it is called or whenever the
// previously-read batch is exhausted. It reports ok == false at end of
// stream, which the caller must turn into an empty, successful READDIR
// reply rather than an error.
func (d *Dir) Next() (os.DirEntry, bool, error) {
	if d.eof {
		return nil, false, nil
	}

	if d.read >= len(d.cursor) {
		entries, err := d.Entries.ReadDir(-1)
		if err != nil {
			return nil, false, err
		}
		d.cursor = entries
		d.read = 0
	}

	if d.read >= len(d.cursor) {
		d.eof = true
		return nil, false, nil
	}

	e := d.cursor[d.read]
	d.read++
	return e, true, nil
}
