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

package inode_test

import (
	"testing"

	. "github.com/jacobsa/oglematchers"
	. "github.com/jacobsa/ogletest"

	"github.com/aosp-mirror/sdcardfs/inode"
)

func TestOgletest(t *testing.T) { RunTests(t) }

type TableTest struct {
	table *inode.Table
}

func init() { RegisterTestSuite(&TableTest{}) }

func (t *TableTest) SetUp(ti *TestInfo) {
	t.table = inode.NewTable("/mnt/sdcard")
}

func (t *TableTest) LookupByNameThenByID() {
	child := t.table.CreateChild(t.table.Root(), "dir")

	found, ok := t.table.FindChild(t.table.Root(), "dir")
	AssertTrue(ok)
	ExpectEq(child, found)

	byID, ok := t.table.Find(child.ID())
	AssertTrue(ok)
	ExpectEq(child, byID)
}

func (t *TableTest) NewChildHasRefcountOne() {
	child := t.table.CreateChild(t.table.Root(), "dir")
	ExpectEq(1, child.Refcount())
}

func (t *TableTest) ReleaseToZeroRemovesNode() {
	child := t.table.CreateChild(t.table.Root(), "dir")
	t.table.Release(child, 1)

	_, ok := t.table.Find(child.ID())
	ExpectFalse(ok)
}

func (t *TableTest) ChildrenHaveDistinctIDs() {
	a := t.table.CreateChild(t.table.Root(), "a")
	b := t.table.CreateChild(t.table.Root(), "b")

	ExpectNe(a.ID(), b.ID())
	ExpectThat(a.Name(), Equals("a"))
	ExpectThat(b.Name(), Equals("b"))
}
