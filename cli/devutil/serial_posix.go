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
// +build !windows

package devutil

import (
	"path/filepath"
	"runtime"
	"sort"
)

func EnumerateSerialPorts() []string {
	var list []string
	if runtime.GOOS == "darwin" {
		list, _ = filepath.Glob("/dev/cu.*")
	} else {
		for _, p := range []string{"/dev/ttyUSB*", "/dev/ttyACM*"} {
			l, _ := filepath.Glob(p)
			list = append(list, l...)
		}
	}
	list = filterPorts(list)
	sort.Strings(list)
	return list
}

func getDefaultPort() string {
	ports := EnumerateSerialPorts()
	if len(ports) == 0 {
		return ""
	}
	return ports[0]
}
