//
// Copyright (c) 2014-2019 Cesanta Software Limited
// All rights reserved
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
//
package memimage

import "fmt"

// MalformedAddressError is returned for an address-set line whose address is
// not valid hex or lies outside the segment.
type MalformedAddressError struct {
	Line   int
	Text   string
	Reason string
}

func (e *MalformedAddressError) Error() string {
	return fmt.Sprintf("line %d: malformed address %q: %s", e.Line, e.Text, e.Reason)
}

// MalformedByteError is returned for a data token that is not a hex byte.
type MalformedByteError struct {
	Line  int
	Token string
}

func (e *MalformedByteError) Error() string {
	return fmt.Sprintf("line %d: malformed byte %q", e.Line, e.Token)
}
