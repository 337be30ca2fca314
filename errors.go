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
	"errors"
	"syscall"

	"golang.org/x/sys/unix"
)

// errno converts an error returned by a host syscall (or by this package's
// own code) into the negated errno the wire protocol expects in an
// OutHeader. Framing errors are not handled here: those terminate the
// session rather than producing a reply.
func errno(err error) int32 {
	if err == nil {
		return 0
	}

	var e unix.Errno
	if errors.As(err, &e) {
		return -int32(e)
	}

	var se syscall.Errno
	if errors.As(err, &se) {
		return -int32(se)
	}

	// Anything else (a logic error surfacing as a plain error value) is
	// reported as I/O error rather than panicking the dispatcher.
	return -int32(unix.EIO)
}
