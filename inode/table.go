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

package inode

import (
	"fmt"

	"github.com/jacobsa/syncutil"
)

// rootRefcount seeds the root's refcount high enough that no sequence of
// FORGETs the kernel is entitled to send can ever free it: the root is
// never looked up by name, so it never accumulates the lookup references an
// ordinary node would.
const rootRefcount = 2

// Table owns the in-memory inode graph: the root, the id allocator, and the
// map from kernel-visible nodeid to *Node.
//
// A Table is not safe for concurrent use by multiple goroutines calling
// mutating methods at once; it is guarded by an InvariantMutex purely so
// that a future multi-threaded dispatcher (see design note on concurrency)
// has a lock to take and a standing set of invariants to check when it does.
// The single-threaded dispatcher this package ships with takes the lock on
// every call but never contends on it.
type Table struct {
	mu syncutil.InvariantMutex

	root *Node

	nextNid uint64 // GUARDED_BY(mu)
	nextGen uint64 // GUARDED_BY(mu)

	byID map[uint64]*Node // GUARDED_BY(mu)
}

// NewTable creates a Table whose root node's Name is rootPath: the absolute
// host directory this mount re-exports.
func NewTable(rootPath string) *Table {
	root := &Node{
		nid:      RootNodeID,
		name:     rootPath,
		children: make(map[uint64]*Node),
		refcount: rootRefcount,
	}

	t := &Table{
		root:    root,
		nextNid: 2,
		nextGen: 0,
		byID:    map[uint64]*Node{RootNodeID: root},
	}
	t.mu = syncutil.NewInvariantMutex(t.checkInvariants)

	return t
}

// RootNodeID is the nodeid the kernel uses to address the mount's root. It
// mirrors wire.RootNodeID; kept local so callers needn't import wire just to
// recognize the root id.
const RootNodeID = 1

// Root returns the table's root node.
func (t *Table) Root() *Node {
	return t.root
}

func (t *Table) checkInvariants() {
	if t.root.parent != nil {
		panic("root has a parent")
	}
	if t.root.nid != RootNodeID {
		panic(fmt.Sprintf("root nid is %d, not %d", t.root.nid, RootNodeID))
	}

	for nid, n := range t.byID {
		if n.nid != nid {
			panic(fmt.Sprintf("byID[%d] has nid %d", nid, n.nid))
		}
		// A parentless node other than the root is one that Detach unlinked;
		// it stays in byID until its own FORGET releases it.
		if n.parent != nil {
			if n.parent.children[n.nid] != n {
				panic(fmt.Sprintf("node %d is not a child of its own parent", n.nid))
			}
		}

		names := make(map[string]bool)
		for _, c := range n.children {
			if names[c.name] {
				panic(fmt.Sprintf("duplicate child name %q under node %d", c.name, n.nid))
			}
			names[c.name] = true
		}
	}
}

// Find resolves a kernel-visible nodeid to its Node. nid == RootNodeID
// always resolves to the root, regardless of whether it is present in byID.
func (t *Table) Find(nid uint64) (*Node, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if nid == RootNodeID {
		return t.root, true
	}

	n, ok := t.byID[nid]
	return n, ok
}

// FindChild performs a linear scan of parent's children looking for name,
// compared by exact byte equality. The caller is responsible for applying
// any case-folding policy to name before calling this.
func (t *Table) FindChild(parent *Node, name string) (*Node, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, c := range parent.children {
		if c.name == name {
			return c, true
		}
	}
	return nil, false
}

// CreateChild allocates a new node named name under parent, links it into
// parent's children, and bumps parent's refcount by one to account for the
// new child's hold on it. The new node starts with a refcount of one: the
// reference of the reply that advertises it to the kernel. The caller must
// have already verified that no child of parent is named name.
func (t *Table) CreateChild(parent *Node, name string) *Node {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := &Node{
		nid:      t.nextNid,
		gen:      t.nextGen,
		name:     name,
		children: make(map[uint64]*Node),
		refcount: 1,
	}
	t.nextNid++
	t.nextGen++

	t.addToParentLocked(n, parent)
	t.byID[n.nid] = n

	return n
}

func (t *Table) addToParentLocked(n, parent *Node) {
	n.parent = parent
	parent.children[n.nid] = n
	parent.refcount++
}

// AddRef bumps n's refcount by one, for a LOOKUP that resolves to a node
// that was already present in the table rather than newly created by
// CreateChild.
func (t *Table) AddRef(n *Node) {
	t.mu.Lock()
	defer t.mu.Unlock()

	n.refcount++
}

// Rename updates node's stored name in place. It does not move node between
// parents; pair it with Detach/Attach for a cross-directory rename.
func (t *Table) Rename(n *Node, newName string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	n.name = newName
}

// Detach unlinks nid from parent's children and decrements parent's
// refcount by one, balancing the increment CreateChild performed. It
// returns false if nid is not a direct child of parent, in which case
// nothing is modified.
func (t *Table) Detach(parent *Node, nid uint64) (*Node, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	n, ok := parent.children[nid]
	if !ok {
		return nil, false
	}

	delete(parent.children, nid)
	n.parent = nil
	if parent.refcount > 0 {
		parent.refcount--
	}

	return n, true
}

// Attach links an already-detached node into newParent's children,
// incrementing newParent's refcount by one. It is the caller's
// responsibility to ensure no child of newParent is already named n.Name().
func (t *Table) Attach(n, newParent *Node) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.addToParentLocked(n, newParent)
}

// Release decrements n's refcount by count (FORGET may forget more than one
// lookup at a time). If the refcount reaches zero, n is detached from its
// parent, removed from the table, and its parent is released by one in
// turn -- the parent held exactly one reference on n's behalf, and that
// reference is now gone too. Release on the root is a no-op past keeping its
// refcount from underflowing: the root is seeded with a refcount no
// sequence of FORGETs can reach.
func (t *Table) Release(n *Node, count uint32) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.releaseLocked(n, count)
}

func (t *Table) releaseLocked(n *Node, count uint32) {
	if count > n.refcount {
		count = n.refcount
	}
	n.refcount -= count

	if n.refcount > 0 || n == t.root {
		return
	}

	parent := n.parent
	if parent != nil {
		delete(parent.children, n.nid)
	}
	delete(t.byID, n.nid)
	n.parent = nil

	if parent != nil {
		t.releaseLocked(parent, 1)
	}
}
