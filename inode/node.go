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

// Package inode implements the in-memory graph of nodes the kernel has
// looked up, the path-reconstruction algorithm built on top of it, and the
// 64-bit id allocation the kernel uses to address nodes across requests.
//
// Unlike the program this package is modeled on, a node's kernel-visible id
// is never a reinterpreted pointer: a Table owns a map from id to *Node, and
// ids are handed out from a monotonic counter. The kernel only requires that
// ids be opaque and stable for the node's lifetime; a map gives us that
// without the memory-safety hazard of punning a pointer into a uint64.
package inode

// Node represents a single name in the virtual tree: a file, a directory, or
// the mount root.
//
// INVARIANT: refcount > 0 for any Node reachable from a Table's root
// INVARIANT: a Node with a non-nil parent appears exactly once in
//            parent.children, keyed by its own nid
type Node struct {
	nid uint64
	gen uint64

	name   string
	parent *Node

	// children of this node, keyed by nid. Every node gets an empty map at
	// creation, directory or not; READDIR doesn't care, since it walks the
	// host directory stream directly rather than this map.
	children map[uint64]*Node

	refcount uint32
}

// ID returns the node's kernel-visible nodeid.
func (n *Node) ID() uint64 { return n.nid }

// Generation returns the node's generation, paired with ID to detect stale
// references across id reuse (which this implementation never does within a
// process lifetime, but the kernel ABI still carries the field).
func (n *Node) Generation() uint64 { return n.gen }

// Name returns the node's last path component as stored on the host
// filesystem (after case folding, if the policy enabled it at creation).
func (n *Node) Name() string { return n.name }

// Parent returns the containing directory node, or nil for the root.
func (n *Node) Parent() *Node { return n.parent }

// Refcount returns the node's current outstanding-lookup count.
func (n *Node) Refcount() uint32 { return n.refcount }

// IsRoot reports whether n is the table's root node.
func (n *Node) IsRoot() bool { return n.nid == RootNodeID }
