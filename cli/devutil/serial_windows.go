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
package devutil

import (
	"sort"

	"golang.org/x/sys/windows/registry"
)

func EnumerateSerialPorts() []string {
	emptyList := []string{}
	k, err := registry.OpenKey(registry.LOCAL_MACHINE, `HARDWARE\DEVICEMAP\SERIALCOMM\`, registry.QUERY_VALUE)
	if err != nil {
		return emptyList
	}
	defer k.Close()
	names, err := k.ReadValueNames(0)
	if err != nil {
		return emptyList
	}
	var ports []string
	for _, n := range names {
		if val, _, err := k.GetStringValue(n); err == nil {
			ports = append(ports, val)
		}
	}
	sort.Sort(byCOMNumber(ports))
	return ports
}

func getDefaultPort() string {
	for _, p := range EnumerateSerialPorts() {
		// COM1 and COM2 are usually on-board ports, the board is on a USB adapter.
		if p != "COM1" && p != "COM2" {
			return p
		}
	}
	return ""
}
