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
package common

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cesanta/go-serial/serial"
	"github.com/golang/glog"
	"github.com/juju/errors"
	flock "github.com/theckman/go-flock"
)

// Transport is the byte-level link to a device bootloader.
type Transport interface {
	// SetDTR sets the level of the data-terminal-ready line (true - asserted).
	SetDTR(level bool) error
	Write(data []byte) (int, error)
	// Drain waits until previously written data has been handed to the line.
	Drain() error
	// ReadOne reads a single byte. ok is false if nothing arrived within the read timeout.
	ReadOne() (b byte, ok bool, err error)
	// ClearInput discards any received but not yet read data.
	ClearInput() error
	Close() error
}

type SerialOpts struct {
	BaudRate             uint
	ReadTimeout          time.Duration
	InvertedControlLines bool
	// LockDir is where the port lock file is created. Empty - system temp dir.
	LockDir              string
}

type serialTransport struct {
	portName string
	conn     serial.Serial
	opts     *SerialOpts
	lock     *flock.Flock
}

func lockFileName(dir, portName string) string {
	if dir == "" {
		dir = os.TempDir()
	}
	name := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':':
			return '_'
		}
		return r
	}, strings.TrimPrefix(portName, "/dev/"))
	return filepath.Join(dir, fmt.Sprintf("picoprog-%s.lock", name))
}

// OpenSerial opens portName in 8-N-1 mode. The port is held exclusively
// until Close: a second OpenSerial for the same port fails, even from another process.
func OpenSerial(portName string, opts *SerialOpts) (Transport, error) {
	fl := flock.NewFlock(lockFileName(opts.LockDir, portName))
	locked, err := fl.TryLock()
	if err != nil {
		return nil, errors.Annotatef(err, "failed to lock %s", portName)
	}
	if !locked {
		return nil, errors.Errorf("%s is in use by another process", portName)
	}
	readTimeout := opts.ReadTimeout
	if readTimeout < 100*time.Millisecond {
		// Resolution of the underlying timer is 100 ms.
		readTimeout = 100 * time.Millisecond
	}
	glog.Infof("Opening %s @ %d...", portName, opts.BaudRate)
	s, err := serial.Open(serial.OpenOptions{
		PortName:              portName,
		BaudRate:              opts.BaudRate,
		DataBits:              8,
		ParityMode:            serial.PARITY_NONE,
		StopBits:              1,
		InterCharacterTimeout: uint(readTimeout / time.Millisecond),
		MinimumReadSize:       0,
	})
	if err != nil {
		fl.Unlock()
		return nil, errors.Annotatef(err, "failed to open %s", portName)
	}
	st := &serialTransport{portName: portName, conn: s, opts: opts, lock: fl}
	// Start with both control lines released.
	if err := st.setRTS(false); err != nil {
		st.Close()
		return nil, errors.Trace(err)
	}
	if err := st.SetDTR(false); err != nil {
		st.Close()
		return nil, errors.Trace(err)
	}
	return st, nil
}

func (st *serialTransport) SetDTR(level bool) error {
	glog.V(3).Infof("DTR %t", level)
	return errors.Annotatef(st.conn.SetDTR(level != st.opts.InvertedControlLines), "%s: DTR", st.portName)
}

func (st *serialTransport) setRTS(level bool) error {
	return errors.Annotatef(st.conn.SetRTS(level != st.opts.InvertedControlLines), "%s: RTS", st.portName)
}

func (st *serialTransport) Write(data []byte) (int, error) {
	glog.V(4).Infof("=> (%d) %s", len(data), LimitStr(data, 32))
	n, err := st.conn.Write(data)
	if err != nil {
		return n, errors.Annotatef(err, "%s: write", st.portName)
	}
	return n, nil
}

// Drain is a no-op: the port is opened in blocking mode, so Write only
// returns once the data is queued to the driver, and go-serial has no tcdrain.
func (st *serialTransport) Drain() error {
	return nil
}

func (st *serialTransport) ReadOne() (byte, bool, error) {
	var buf [1]byte
	n, err := st.conn.Read(buf[:])
	// A read that times out returns no data, which os.File reports as EOF.
	if n == 0 && (err == nil || errors.Cause(err) == io.EOF) {
		glog.V(4).Infof("<= timeout")
		return 0, false, nil
	}
	if err != nil {
		return 0, false, errors.Annotatef(err, "%s: read", st.portName)
	}
	glog.V(4).Infof("<= 0x%02x", buf[0])
	return buf[0], true, nil
}

func (st *serialTransport) ClearInput() error {
	return errors.Annotatef(st.conn.Flush(), "%s: flush", st.portName)
}

func (st *serialTransport) Close() error {
	glog.Infof("Closing %s", st.portName)
	err := st.conn.Close()
	if uerr := st.lock.Unlock(); uerr != nil {
		glog.Warningf("%s: failed to release lock: %s", st.portName, uerr)
	}
	return errors.Trace(err)
}
