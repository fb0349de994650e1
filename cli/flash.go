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
// +build !noflash

package main

import (
	"context"

	"github.com/juju/errors"

	"github.com/picorv32-tang/picoprog/cli/common/paths"
	"github.com/picorv32-tang/picoprog/cli/devutil"
	"github.com/picorv32-tang/picoprog/cli/flags"
	"github.com/picorv32-tang/picoprog/cli/flash/picorv32"
	"github.com/picorv32-tang/picoprog/cli/ourutil"
)

func flashOptsFromFlags() picorv32.FlashOpts {
	return picorv32.FlashOpts{
		BaudRate:             *flags.BaudRate,
		ReadTimeout:          *flags.ReadTimeout,
		InvertedControlLines: *flags.InvertedControlLines,
		LockDir:              paths.LockDir,
		ResetHold:            *flags.ResetHold,
		SyncAttempts:         *flags.SyncAttempts,
		SyncInterval:         *flags.SyncInterval,
		AckAttempts:          *flags.AckAttempts,
		PageSize:             *flags.PageSize,
	}
}

func flashCmd(ctx context.Context, args []string) error {
	fname, d, err := loadDump("flash", args)
	if err != nil {
		return errors.Trace(err)
	}
	img, err := programImage(d)
	if err != nil {
		return errors.Annotatef(err, "%s", fname)
	}
	if img == nil || img.Empty() {
		ourutil.Warnf("%s: no program segment, nothing to upload", fname)
		return nil
	}
	ourutil.Reportf("Read program with %d bytes", img.Len())

	port, err := devutil.GetPort()
	if err != nil {
		return errors.Trace(err)
	}
	opts := flashOptsFromFlags()
	err = picorv32.Flash(ctx, port, img, &opts)
	if _, ok := errors.Cause(err).(*picorv32.DeviceNotDetectedError); ok {
		return errors.Annotatef(err, "check the serial port and the reset button")
	}
	if err != nil {
		return errors.Annotatef(err, "flashing failed")
	}
	ourutil.Successf("All done!")
	return nil
}
