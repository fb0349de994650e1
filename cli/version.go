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
package main

import (
	"context"
	"fmt"

	"github.com/picorv32-tang/picoprog/version"
)

func versionCmd(ctx context.Context, args []string) error {
	v := version.Get()
	fmt.Printf("%s\nVersion: %s\nBuild ID: %s\n", "PicoRV32 firmware programmer", version.Version, v.BuildId)
	if !v.BuildTimestamp.IsZero() {
		fmt.Printf("Built: %s\n", v.BuildTimestamp.Format("2006-01-02 15:04:05 MST"))
	}
	return nil
}
