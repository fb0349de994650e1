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
package picorv32

import "fmt"

// DeviceNotDetectedError is returned when the device did not answer any sync probe.
type DeviceNotDetectedError struct {
	Attempts int
}

func (e *DeviceNotDetectedError) Error() string {
	return fmt.Sprintf("device not detected or not in ISP mode (no answer to %d sync probes)", e.Attempts)
}

// ProtocolTimeoutError is returned when the expected ack did not arrive within the read budget.
type ProtocolTimeoutError struct {
	Page     int
	Step     string
	Expected byte
	Reads    int
}

func (e *ProtocolTimeoutError) Error() string {
	return fmt.Sprintf("page %d: %s: no ack 0x%02x after %d reads", e.Page, e.Step, e.Expected, e.Reads)
}
