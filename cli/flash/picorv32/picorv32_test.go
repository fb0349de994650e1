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
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/juju/errors"

	"github.com/picorv32-tang/picoprog/common/memimage"
)

// fakeDevice simulates the ISP bootloader on the other end of the line.
type fakeDevice struct {
	// Answer the N-th sync probe (1-based), 0 - never answer.
	syncAt int
	// Bytes sent ahead of every ack.
	noise []byte
	// Command that is never acknowledged.
	silentOn byte
	// Fail the N-th Write call (1-based), 0 - never.
	failWriteAt int
	// Fail reads once N bytes have been read, 0 - never.
	failReadAfter int
	// Called every time a page has been programmed.
	onProgramed func()
	// Fail releasing the reset line.
	failRelease bool

	synced  bool
	probes  int
	pending int // 0x55 bytes seen in the current probe
	state   int
	need    int
	buf     []byte
	data    []byte

	rx      []byte
	reads   int
	writes  int
	written []byte
	dtr     []bool
	pages   map[uint32][]byte
	cleared int
	ran     bool
	closed  bool
}

// Pseudo commands used as silentOn keys for the data-carrying steps.
const (
	keyPayload byte = 0xa0
	keyAddress byte = 0xa1
)

const (
	devIdle = iota
	devLen
	devData
	devAddr
)

func newFakeDevice(syncAt int) *fakeDevice {
	return &fakeDevice{syncAt: syncAt, pages: map[uint32][]byte{}}
}

func (d *fakeDevice) respond(cmd, b byte) {
	if d.silentOn != 0 && cmd == d.silentOn {
		return
	}
	d.rx = append(d.rx, d.noise...)
	d.rx = append(d.rx, b)
}

func (d *fakeDevice) handle(b byte) {
	if !d.synced {
		if b != cmdSync {
			d.pending = 0
			return
		}
		d.pending++
		if d.pending == 2 {
			d.pending = 0
			d.probes++
			if d.probes == d.syncAt {
				d.synced = true
				d.rx = append(d.rx, ackSync)
			}
		}
		return
	}
	switch d.state {
	case devIdle:
		switch b {
		case cmdOpenBuf:
			d.state = devLen
			d.respond(b, ackOpenBuf)
		case cmdCommit:
			d.state = devAddr
			d.need = 3
			d.buf = nil
			d.respond(b, ackCommit)
		case cmdRun:
			d.ran = true
			d.respond(b, 0x00)
		}
	case devLen:
		d.need = int(b) + 1
		d.buf = nil
		d.state = devData
	case devData:
		d.buf = append(d.buf, b)
		if len(d.buf) == d.need {
			d.data = d.buf
			d.state = devIdle
			d.respond(keyPayload, memimage.Checksum(d.data))
		}
	case devAddr:
		d.buf = append(d.buf, b)
		if len(d.buf) == d.need {
			addr := uint32(d.buf[0])<<16 | uint32(d.buf[1])<<8 | uint32(d.buf[2])
			d.pages[addr] = d.data
			d.state = devIdle
			d.respond(keyAddress, ackProgramed)
			if d.onProgramed != nil {
				d.onProgramed()
			}
		}
	}
}

func (d *fakeDevice) SetDTR(level bool) error {
	d.dtr = append(d.dtr, level)
	if !level && d.failRelease {
		return errors.New("port vanished")
	}
	return nil
}

func (d *fakeDevice) Write(data []byte) (int, error) {
	if d.closed {
		return 0, errors.New("closed")
	}
	d.writes++
	if d.writes == d.failWriteAt {
		return 0, errors.New("port vanished")
	}
	d.written = append(d.written, data...)
	for _, b := range data {
		d.handle(b)
	}
	return len(data), nil
}

func (d *fakeDevice) Drain() error {
	return nil
}

func (d *fakeDevice) ReadOne() (byte, bool, error) {
	if d.closed {
		return 0, false, errors.New("closed")
	}
	if d.failReadAfter > 0 && d.reads >= d.failReadAfter {
		return 0, false, errors.New("port vanished")
	}
	if len(d.rx) == 0 {
		return 0, false, nil
	}
	b := d.rx[0]
	d.rx = d.rx[1:]
	d.reads++
	return b, true, nil
}

func (d *fakeDevice) ClearInput() error {
	d.cleared++
	d.rx = nil
	return nil
}

func (d *fakeDevice) Close() error {
	d.closed = true
	return nil
}

func testOpts() *FlashOpts {
	opts := DefaultFlashOpts()
	opts.SyncInterval = 0
	opts.AckAttempts = 20
	return &opts
}

func testImage(n int) *memimage.Image {
	img := &memimage.Image{Name: "program", Base: memimage.FlashBase, Data: make([]byte, n)}
	for i := range img.Data {
		img.Data[i] = byte(i*7 + i/256)
	}
	return img
}

func TestFlashImage(t *testing.T) {
	dev := newFakeDevice(3)
	img := testImage(600)
	if err := FlashImage(context.Background(), dev, img, testOpts()); err != nil {
		t.Fatalf("%s", err)
	}
	if !dev.closed || !dev.ran {
		t.Errorf("closed: %t, ran: %t", dev.closed, dev.ran)
	}
	if len(dev.dtr) != 2 || !dev.dtr[0] || dev.dtr[1] {
		t.Errorf("unexpected DTR sequence %v", dev.dtr)
	}
	if dev.probes != 3 {
		t.Errorf("expected 3 probes, got %d", dev.probes)
	}
	if len(dev.pages) != 3 {
		t.Fatalf("expected 3 pages, got %d", len(dev.pages))
	}
	for i, c := range []struct {
		addr uint32
		n    int
	}{{0, 256}, {256, 256}, {512, 88}} {
		p := dev.pages[c.addr]
		if len(p) != c.n {
			t.Errorf("%d: page @ 0x%x: expected %d bytes, got %d", i, c.addr, c.n, len(p))
		}
		if !bytes.Equal(p, img.Data[c.addr:int(c.addr)+c.n]) {
			t.Errorf("%d: page @ 0x%x: data mismatch", i, c.addr)
		}
	}
}

func TestFlashImageWire(t *testing.T) {
	dev := newFakeDevice(1)
	img := &memimage.Image{Name: "program", Base: memimage.FlashBase, Data: []byte{0x01, 0x02, 0x03}}
	if err := FlashImage(context.Background(), dev, img, testOpts()); err != nil {
		t.Fatalf("%s", err)
	}
	exp := []byte{
		0x55, 0x55,
		0x10, 0x02, 0x01, 0x02, 0x03,
		0x40, 0x00, 0x00, 0x00,
		0xf0,
	}
	if !bytes.Equal(dev.written, exp) {
		t.Errorf("expected % x, got % x", exp, dev.written)
	}
}

func TestFlashPageAddresses(t *testing.T) {
	dev := newFakeDevice(1)
	opts := testOpts()
	opts.PageSize = 16
	img := testImage(0x10010)
	if err := FlashImage(context.Background(), dev, img, opts); err != nil {
		t.Fatalf("%s", err)
	}
	if len(dev.pages) != 0x1001 {
		t.Fatalf("expected 0x1001 pages, got 0x%x", len(dev.pages))
	}
	if p, ok := dev.pages[0x010000]; !ok || !bytes.Equal(p, img.Data[0x10000:]) {
		t.Errorf("page @ 0x010000 missing or wrong")
	}
}

func TestHandshakeBound(t *testing.T) {
	dev := newFakeDevice(0)
	err := FlashImage(context.Background(), dev, testImage(10), testOpts())
	e, ok := errors.Cause(err).(*DeviceNotDetectedError)
	if !ok {
		t.Fatalf("expected DeviceNotDetectedError, got %v", err)
	}
	if e.Attempts != 100 || dev.probes != 100 {
		t.Errorf("expected exactly 100 probes, got %d (reported %d)", dev.probes, e.Attempts)
	}
	if dev.cleared != 100 {
		t.Errorf("expected input cleared before every probe, got %d", dev.cleared)
	}
	if !dev.closed {
		t.Errorf("port not closed")
	}
	if len(dev.pages) != 0 {
		t.Errorf("nothing should be written")
	}
}

func TestHandshakeLastAttempt(t *testing.T) {
	dev := newFakeDevice(100)
	if err := FlashImage(context.Background(), dev, testImage(10), testOpts()); err != nil {
		t.Fatalf("%s", err)
	}
	if dev.probes != 100 {
		t.Errorf("expected 100 probes, got %d", dev.probes)
	}
}

func TestAckNoiseIgnored(t *testing.T) {
	dev := newFakeDevice(2)
	dev.noise = []byte{0x00, 0x42, 0x99}
	img := testImage(300)
	if err := FlashImage(context.Background(), dev, img, testOpts()); err != nil {
		t.Fatalf("%s", err)
	}
	if len(dev.pages) != 2 || !bytes.Equal(dev.pages[256], img.Data[256:]) {
		t.Errorf("unexpected pages: %d", len(dev.pages))
	}
}

func TestProtocolTimeout(t *testing.T) {
	for i, c := range []struct {
		silentOn byte
		step     string
		expected byte
	}{
		{cmdOpenBuf, "open buffer", ackOpenBuf},
		{keyPayload, "checksum", 0},
		{cmdCommit, "commit", ackCommit},
		{keyAddress, "program", ackProgramed},
	} {
		dev := newFakeDevice(1)
		dev.silentOn = c.silentOn
		opts := testOpts()
		err := FlashImage(context.Background(), dev, testImage(4), opts)
		e, ok := errors.Cause(err).(*ProtocolTimeoutError)
		if !ok {
			t.Errorf("%d: expected ProtocolTimeoutError, got %v", i, err)
			continue
		}
		if e.Page != 0 || e.Step != c.step || e.Reads != opts.AckAttempts {
			t.Errorf("%d: unexpected error %+v", i, e)
		}
		if c.step != "checksum" && e.Expected != c.expected {
			t.Errorf("%d: expected ack 0x%02x, got 0x%02x", i, c.expected, e.Expected)
		}
		if !dev.closed {
			t.Errorf("%d: port not closed", i)
		}
	}
}

func TestClientStates(t *testing.T) {
	dev := newFakeDevice(1)
	c := NewISPClient(dev, testOpts())
	ctx := context.Background()
	if c.State() != StateReset {
		t.Fatalf("initial state %s", c.State())
	}
	if err := c.Reset(ctx); err != nil || c.State() != StateHandshaking {
		t.Fatalf("%v %s", err, c.State())
	}
	if err := c.Sync(ctx); err != nil || c.State() != StateUploading {
		t.Fatalf("%v %s", err, c.State())
	}
	if err := c.WritePage(0, memimage.Page{Offset: 0x100, Data: []byte{1}}); err != nil {
		t.Fatalf("%s", err)
	}
	if err := c.Run(); err != nil || c.State() != StateDone {
		t.Fatalf("%v %s", err, c.State())
	}
	if !bytes.Equal(dev.pages[0x100], []byte{1}) {
		t.Errorf("page not written")
	}
}

func TestWritePageInvalid(t *testing.T) {
	c := NewISPClient(newFakeDevice(1), testOpts())
	for i, p := range []memimage.Page{
		{Offset: 0},
		{Offset: 0, Data: make([]byte, 257)},
		{Offset: memimage.MaxOffset, Data: []byte{1}},
	} {
		if err := c.WritePage(i, p); err == nil {
			t.Errorf("%d: expected error", i)
		}
	}
}

func TestFlashCancelled(t *testing.T) {
	dev := newFakeDevice(0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := FlashImage(ctx, dev, testImage(10), testOpts())
	if errors.Cause(err) != context.Canceled {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if !dev.closed {
		t.Errorf("port not closed")
	}
}

func TestResetCancelledReleaseFailure(t *testing.T) {
	dev := newFakeDevice(1)
	dev.failRelease = true
	opts := testOpts()
	opts.ResetHold = time.Hour
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c := NewISPClient(dev, opts)
	if err := c.Reset(ctx); err != context.Canceled {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if len(dev.dtr) != 2 || !dev.dtr[0] || dev.dtr[1] {
		t.Errorf("unexpected DTR sequence %v", dev.dtr)
	}
	if c.State() != StateReset {
		t.Errorf("unexpected state %s", c.State())
	}
}

func TestFlashTransportFailure(t *testing.T) {
	// With an immediate sync, Write calls are: probe, then
	// open buffer, payload, commit, address for every page.
	for i, c := range []struct {
		failWriteAt   int
		failReadAfter int
		msg           string
		pages         int
	}{
		{failWriteAt: 2, msg: "page 0: open buffer: port vanished"},
		{failWriteAt: 3, msg: "page 0: checksum: port vanished"},
		{failWriteAt: 7, msg: "page 1: checksum: port vanished", pages: 1},
		{failReadAfter: 2, msg: "page 0: checksum: port vanished"},
		{failReadAfter: 5, msg: "page 1: open buffer: port vanished", pages: 1},
	} {
		dev := newFakeDevice(1)
		dev.failWriteAt = c.failWriteAt
		dev.failReadAfter = c.failReadAfter
		err := FlashImage(context.Background(), dev, testImage(600), testOpts())
		if err == nil {
			t.Errorf("%d: expected error", i)
			continue
		}
		if !strings.Contains(err.Error(), c.msg) {
			t.Errorf("%d: expected %q in %q", i, c.msg, err)
		}
		if c.failWriteAt > 0 && dev.writes != c.failWriteAt {
			t.Errorf("%d: expected no writes after the failure, got %d calls", i, dev.writes)
		}
		if len(dev.pages) != c.pages {
			t.Errorf("%d: expected %d pages, got %d", i, c.pages, len(dev.pages))
		}
		if dev.ran {
			t.Errorf("%d: firmware started after a failure", i)
		}
		if !dev.closed {
			t.Errorf("%d: port not closed", i)
		}
	}
}

func TestFlashCancelledBetweenPages(t *testing.T) {
	dev := newFakeDevice(1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	dev.onProgramed = func() {
		cancel()
		dev.onProgramed = nil
	}
	err := FlashImage(ctx, dev, testImage(600), testOpts())
	if errors.Cause(err) != context.Canceled {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if !strings.Contains(err.Error(), "interrupted at page 1") {
		t.Errorf("unexpected error %q", err)
	}
	if len(dev.pages) != 1 {
		t.Errorf("expected 1 page, got %d", len(dev.pages))
	}
	if dev.ran || !dev.closed {
		t.Errorf("ran: %t, closed: %t", dev.ran, dev.closed)
	}
}

func TestFlashOptsValidate(t *testing.T) {
	for i, mod := range []func(o *FlashOpts){
		func(o *FlashOpts) { o.SyncAttempts = 0 },
		func(o *FlashOpts) { o.PageSize = 0 },
		func(o *FlashOpts) { o.PageSize = 512 },
		func(o *FlashOpts) { o.PageSize = 100 },
		func(o *FlashOpts) { o.PageSize = 255 },
		func(o *FlashOpts) { o.ResetHold = 0 },
	} {
		opts := DefaultFlashOpts()
		mod(&opts)
		if err := opts.validate(); err == nil {
			t.Errorf("%d: expected error", i)
		}
	}
	opts := DefaultFlashOpts()
	if err := opts.validate(); err != nil {
		t.Errorf("defaults: %s", err)
	}
	for _, n := range []int{1, 2, 16, 128} {
		opts.PageSize = n
		if err := opts.validate(); err != nil {
			t.Errorf("page size %d: %s", n, err)
		}
	}
}
