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

	"github.com/juju/errors"

	"github.com/picorv32-tang/picoprog/cli/flags"
	"github.com/picorv32-tang/picoprog/cli/ourutil"
	"github.com/picorv32-tang/picoprog/common/coe"
	"github.com/picorv32-tang/picoprog/common/ourio"
)

const defaultCOEFile = "bootloader.coe"

func coeCmd(ctx context.Context, args []string) error {
	fname, d, err := loadDump("coe", args)
	if err != nil {
		return errors.Trace(err)
	}
	img, err := bootloaderImage(d)
	if err != nil {
		return errors.Annotatef(err, "%s", fname)
	}
	if img.Empty() {
		ourutil.Warnf("%s: bootloader segment is empty, the ROM will be all zeroes", fname)
	}
	ourutil.Reportf("Building COE file from %d bytes of bootloader...", img.Len())
	data, err := coe.Encode(img.Data, coe.DefaultSize)
	if err != nil {
		return errors.Annotatef(err, "%s", fname)
	}
	out := *flags.Output
	if out == "" {
		out = defaultCOEFile
	}
	changed, err := ourio.WriteFileIfDifferent(out, data, 0644)
	if err != nil {
		return errors.Annotatef(err, "failed to write %s", out)
	}
	if changed {
		ourutil.Successf("Wrote %s", out)
	} else {
		ourutil.Successf("%s is up to date", out)
	}
	return nil
}
