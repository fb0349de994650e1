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
	"github.com/juju/errors"

	"github.com/picorv32-tang/picoprog/common/memimage"
)

// loadDump reads the single <file> argument of a command.
func loadDump(cmd string, args []string) (string, *memimage.Dump, error) {
	if len(args) != 1 {
		return "", nil, errors.Errorf("%s: expected exactly one <file> argument, got %d", cmd, len(args))
	}
	d, err := memimage.ReadFile(args[0])
	if err != nil {
		return "", nil, errors.Annotatef(err, "failed to load %s", args[0])
	}
	return args[0], d, nil
}

func bootloaderImage(d *memimage.Dump) (*memimage.Image, error) {
	img, err := memimage.BuildImage(d.Bootloader, 0)
	return img, errors.Trace(err)
}

// programImage returns nil, nil if the dump has no program segment.
func programImage(d *memimage.Dump) (*memimage.Image, error) {
	if !d.HasProgram() {
		return nil, nil
	}
	img, err := memimage.BuildImage(d.Program, memimage.FlashBase)
	return img, errors.Trace(err)
}
