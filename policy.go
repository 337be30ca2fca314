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

// Policy carries the ownership/permission overrides the dispatcher applies
// on every attribute reply and every create operation. It is threaded
// through Session explicitly rather than read from mutable package-level
// globals, so that a process hosting more than one session never has one
// mount's policy bleed into another's.
type Policy struct {
	// ForceLowerCase, when set, case-folds new file names at creation time
	// and every path the dispatcher composes, so that a case-sensitive host
	// filesystem still presents a case-insensitive (lower-case) view.
	ForceLowerCase bool

	// SdcardGID is the group every file and directory appears to belong to,
	// regardless of what the host filesystem actually records.
	SdcardGID uint32
}
