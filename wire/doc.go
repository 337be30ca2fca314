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

// Package wire defines the on-the-wire layout of the FUSE kernel <-> userspace
// protocol: opcodes, the fixed structs the kernel prepends to requests and
// expects to find in replies, and the InMessage/OutMessage helpers used to
// read and write them without copying more than once.
//
// Struct field order and sizes mirror include/uapi/linux/fuse.h. Nothing here
// is safe to reorder.
package wire
