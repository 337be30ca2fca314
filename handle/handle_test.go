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

package handle

import (
	"os"
	"testing"
)

func TestNewFileAndRelease(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "sdcardfs")
	if err != nil {
		t.Fatalf("CreateTemp: %v", err)
	}

	table := NewTable()
	id := table.NewFile(f)

	got, ok := table.File(id)
	if !ok || got.FD != f {
		t.Fatalf("File(%d) = (%v, %v), want (%v, true)", id, got, ok, f)
	}

	if err := table.ReleaseFile(id); err != nil {
		t.Fatalf("ReleaseFile: %v", err)
	}

	if _, ok := table.File(id); ok {
		t.Fatalf("File(%d) still resolves after ReleaseFile", id)
	}
}

func TestReleaseUnknownIsNoop(t *testing.T) {
	table := NewTable()
	if err := table.ReleaseFile(12345); err != nil {
		t.Fatalf("ReleaseFile on unknown id: %v", err)
	}
	if err := table.ReleaseDir(12345); err != nil {
		t.Fatalf("ReleaseDir on unknown id: %v", err)
	}
}

func TestDirNext(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a", "b", "c"} {
		if err := os.WriteFile(dir+"/"+name, nil, 0664); err != nil {
			t.Fatalf("WriteFile: %v", err)
		}
	}

	f, err := os.Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	table := NewTable()
	id := table.NewDir(f)
	d, ok := table.Dir(id)
	if !ok {
		t.Fatalf("Dir(%d) not found", id)
	}

	seen := map[string]bool{}
	for {
		ent, ok, err := d.Next()
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if !ok {
			break
		}
		seen[ent.Name()] = true
	}

	for _, name := range []string{"a", "b", "c"} {
		if !seen[name] {
			t.Errorf("Next() never returned %q", name)
		}
	}
}

func TestDirNextDot(t *testing.T) {
	dir := t.TempDir()
	f, err := os.Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	table := NewTable()
	id := table.NewDir(f)
	d, _ := table.Dir(id)

	name, ok := d.NextDot()
	if !ok || name != "." {
		t.Fatalf("NextDot() = (%q, %v), want (\".\", true)", name, ok)
	}
	name, ok = d.NextDot()
	if !ok || name != ".." {
		t.Fatalf("NextDot() = (%q, %v), want (\"..\", true)", name, ok)
	}
	if _, ok := d.NextDot(); ok {
		t.Fatalf("NextDot() returned a third entry")
	}
}
