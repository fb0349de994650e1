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
	"github.com/picorv32-tang/picoprog/common/memimage"
)

// Wire protocol of the ISP bootloader. All commands and acks are single bytes.
const (
	cmdSync      = 0x55
	ackSync      = 0x56
	cmdOpenBuf   = 0x10
	ackOpenBuf   = 0x11
	cmdCommit    = 0x40
	ackCommit    = 0x41
	ackProgramed = 0x42
	cmdRun       = 0xF0
)

type State int

const (
	StateReset State = iota
	StateHandshaking
	StateUploading
	StateFinalizing
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateReset:
		return "reset"
	case StateHandshaking:
		return "handshaking"
	case StateUploading:
		return "uploading"
	case StateFinalizing:
		return "finalizing"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	}
	return "???"
}

// ISPClient talks to the ISP bootloader over t. It does not own t.
type ISPClient struct {
	t     common.Transport
	opts  *FlashOpts
	state State
	page  int
}

func NewISPClient(t common.Transport, opts *FlashOpts) *ISPClient {
	return &ISPClient{t: t, opts: opts, state: StateReset}
}

func (c *ISPClient) State() State {
	return c.state
}

func (c *ISPClient) setState(s State) {
	glog.V(1).Infof("%s -> %s (page %d)", c.state, s, c.page)
	c.state = s
}

// Reset pulses DTR to reset the target into the bootloader.
func (c *ISPClient) Reset(ctx context.Context) error {
	if err := c.t.SetDTR(true); err != nil {
		return errors.Annotatef(err, "failed to assert reset")
	}
	select {
	case <-time.After(c.opts.ResetHold):
	case <-ctx.Done():
		if err := c.t.SetDTR(false); err != nil {
			glog.Warningf("failed to release reset: %s", err)
		}
		return ctx.Err()
	}
	if err := c.t.SetDTR(false); err != nil {
		return errors.Annotatef(err, "failed to release reset")
	}
	c.setState(StateHandshaking)
	return nil
}

// Sync probes the device until it answers or SyncAttempts probes have been sent.
func (c *ISPClient) Sync(ctx context.Context) error {
	for i := 1; i <= c.opts.SyncAttempts; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := c.t.ClearInput(); err != nil {
			return errors.Trace(err)
		}
		if _, err := c.t.Write([]byte{cmdSync, cmdSync}); err != nil {
			return errors.Trace(err)
		}
		if err := c.t.Drain(); err != nil {
			return errors.Trace(err)
		}
		b, ok, err := c.t.ReadOne()
		if err != nil {
			return errors.Trace(err)
		}
		if ok && b == ackSync {
			glog.V(1).Infof("sync after %d attempts", i)
			c.setState(StateUploading)
			return nil
		}
		if ok {
			glog.V(2).Infof("sync %d: got 0x%02x", i, b)
		}
		if i%10 == 0 {
			glog.Infof("no sync after %d attempts", i)
		}
		if c.opts.SyncInterval > 0 && i < c.opts.SyncAttempts {
			select {
			case <-time.After(c.opts.SyncInterval):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	c.setState(StateFailed)
	return &DeviceNotDetectedError{Attempts: c.opts.SyncAttempts}
}

// expect reads until want arrives. Other bytes are line noise and are skipped.
// AckAttempts <= 0 means wait forever.
func (c *ISPClient) expect(want byte, step string, onOther func(b byte)) error {
	for n := 1; c.opts.AckAttempts <= 0 || n <= c.opts.AckAttempts; n++ {
		b, ok, err := c.t.ReadOne()
		if err != nil {
			return errors.Annotatef(err, "page %d: %s", c.page, step)
		}
		if !ok {
			continue
		}
		if b == want {
			return nil
		}
		if onOther != nil {
			onOther(b)
		} else {
			glog.V(2).Infof("page %d: %s: skipping 0x%02x", c.page, step, b)
		}
	}
	c.setState(StateFailed)
	return &ProtocolTimeoutError{Page: c.page, Step: step, Expected: want, Reads: c.opts.AckAttempts}
}

func (c *ISPClient) command(cmd []byte, want byte, step string, onOther func(b byte)) error {
	if _, err := c.t.Write(cmd); err != nil {
		return errors.Annotatef(err, "page %d: %s", c.page, step)
	}
	if err := c.t.Drain(); err != nil {
		return errors.Trace(err)
	}
	return c.expect(want, step, onOther)
}

// WritePage transfers, commits and programs a single page.
func (c *ISPClient) WritePage(idx int, p memimage.Page) error {
	if len(p.Data) == 0 || len(p.Data) > memimage.PageSize {
		return errors.Errorf("page %d: invalid length %d", idx, len(p.Data))
	}
	if p.Offset >= memimage.MaxOffset {
		return errors.Errorf("page %d: offset 0x%x does not fit in 24 bits", idx, p.Offset)
	}
	c.page = idx
	if err := c.command([]byte{cmdOpenBuf}, ackOpenBuf, "open buffer", nil); err != nil {
		return errors.Trace(err)
	}

	payload := make([]byte, 0, len(p.Data)+1)
	payload = append(payload, byte(len(p.Data)-1))
	payload = append(payload, p.Data...)
	cs := memimage.Checksum(p.Data)
	glog.V(2).Infof("page %d: %d @ 0x%06x, checksum 0x%02x", idx, len(p.Data), p.Offset, cs)
	if err := c.command(payload, cs, "checksum", func(b byte) {
		glog.Warningf("page %d: bad checksum 0x%02x, want 0x%02x", idx, b, cs)
	}); err != nil {
		return errors.Trace(err)
	}

	if err := c.command([]byte{cmdCommit}, ackCommit, "commit", nil); err != nil {
		return errors.Trace(err)
	}

	addr := []byte{byte(p.Offset >> 16), byte(p.Offset >> 8), byte(p.Offset)}
	if err := c.command(addr, ackProgramed, "program", nil); err != nil {
		return errors.Trace(err)
	}
	return nil
}

// Run tells the bootloader to start the application.
func (c *ISPClient) Run() error {
	c.setState(StateFinalizing)
	if _, err := c.t.Write([]byte{cmdRun}); err != nil {
		return errors.Annotatef(err, "failed to start firmware")
	}
	if err := c.t.Drain(); err != nil {
		return errors.Trace(err)
	}
	// The response carries no information, and may not come at all.
	if _, _, err := c.t.ReadOne(); err != nil {
		return errors.Trace(err)
	}
	c.setState(StateDone)
	return nil
}
