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

import (
	"context"
	"time"

	"github.com/golang/glog"
	"github.com/juju/errors"

	"github.com/picorv32-tang/picoprog/cli/flash/common"
	"github.com/picorv32-tang/picoprog/cli/ourutil"
	"github.com/picorv32-tang/picoprog/common/memimage"
)

// FlashOpts configures the serial line and the ISP session.
// LockDir is where the port lock file is created, empty - system temp dir.
// PageSize must divide the 256-byte flash page.
type FlashOpts struct {
	BaudRate             uint
	ReadTimeout          time.Duration
	InvertedControlLines bool
	LockDir              string
	ResetHold            time.Duration
	SyncAttempts         int
	SyncInterval         time.Duration
	AckAttempts          int
	PageSize             int
}

func DefaultFlashOpts() FlashOpts {
	return FlashOpts{
		BaudRate:     115200,
		ReadTimeout:  100 * time.Millisecond,
		ResetHold:    10 * time.Millisecond,
		SyncAttempts: 100,
		SyncInterval: 100 * time.Millisecond,
		AckAttempts:  300,
		PageSize:     memimage.PageSize,
	}
}

func (opts *FlashOpts) validate() error {
	if opts.SyncAttempts <= 0 {
		return errors.Errorf("invalid number of sync attempts (%d)", opts.SyncAttempts)
	}
	if err := memimage.CheckPageSize(opts.PageSize); err != nil {
		return errors.Trace(err)
	}
	if opts.ResetHold < 10*time.Millisecond {
		return errors.Errorf("reset hold time must be at least 10ms, got %s", opts.ResetHold)
	}
	return nil
}

// Flash opens port and uploads img to the external flash.
func Flash(ctx context.Context, port string, img *memimage.Image, opts *FlashOpts) error {
	if err := opts.validate(); err != nil {
		return errors.Trace(err)
	}
	if img.Empty() {
		return errors.Errorf("%s image is empty, nothing to flash", img.Name)
	}
	t, err := common.OpenSerial(port, &common.SerialOpts{
		BaudRate:             opts.BaudRate,
		ReadTimeout:          opts.ReadTimeout,
		InvertedControlLines: opts.InvertedControlLines,
		LockDir:              opts.LockDir,
	})
	if err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(FlashImage(ctx, t, img, opts))
}

// FlashImage uploads img over t. t is closed when done, whatever the outcome.
func FlashImage(ctx context.Context, t common.Transport, img *memimage.Image, opts *FlashOpts) (err error) {
	defer func() {
		if cerr := t.Close(); cerr != nil && err == nil {
			err = errors.Annotatef(cerr, "failed to close port")
		}
	}()
	if err := opts.validate(); err != nil {
		return errors.Trace(err)
	}

	c := NewISPClient(t, opts)
	if err := c.Reset(ctx); err != nil {
		return errors.Trace(err)
	}
	ourutil.Reportf("Waiting for the bootloader...")
	if err := c.Sync(ctx); err != nil {
		return errors.Trace(err)
	}

	pages := img.Pages(opts.PageSize)
	ourutil.Reportf("Writing %d bytes in %d pages...", img.Len(), len(pages))
	start := time.Now()
	for i, p := range pages {
		if err := ctx.Err(); err != nil {
			return errors.Annotatef(err, "interrupted at page %d", i)
		}
		glog.V(1).Infof("  %7d @ 0x%08x", len(p.Data), img.Base+p.Offset)
		if err := c.WritePage(i, p); err != nil {
			return errors.Trace(err)
		}
		if (i+1)%16 == 0 || i == len(pages)-1 {
			ourutil.Reportf("  %d/%d pages, 0x%08x", i+1, len(pages), img.Base+p.Offset+uint32(len(p.Data)))
		}
	}
	seconds := time.Since(start).Seconds()
	bytesPerSecond := float64(img.Len()) / seconds
	ourutil.Reportf("Wrote %d bytes in %.2f seconds (%.2f KBit/sec)", img.Len(), seconds, bytesPerSecond*8/1024)

	ourutil.Reportf("Booting firmware...")
	if err := c.Run(); err != nil {
		return errors.Trace(err)
	}
	return nil
}
