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
package memimage

import (
	"bufio"
	"bytes"
	"io"
	"io/ioutil"
	"strconv"
	"strings"

	"github.com/juju/errors"
)

const (
	// FlashBase is the absolute address of the program region in the unified address space.
	FlashBase = 0x01000000
	// BootROMSize is the size of the on-chip boot ROM.
	BootROMSize = 4096
	// PageSize is the size of a single flash write transaction.
	PageSize = 256
	// MaxOffset bounds segment-relative offsets: the ISP link carries 24-bit addresses.
	MaxOffset = 1 << 24

	programMarker = "@01000000"
)

// Line is a single non-empty line of the dump along with its 1-based position in the file.
type Line struct {
	No   int
	Text string
}

// Segment is an ordered run of dump lines.
type Segment struct {
	Name  string
	Lines []Line
}

// Dump is a memory dump split into the boot ROM and program segments.
type Dump struct {
	Bootloader Segment
	Program    Segment
}

// Record is one parsed line. Address-set lines have HasAddr set and may carry data too.
type Record struct {
	Line    int
	HasAddr bool
	Addr    uint32
	Data    []byte
}

// HasProgram returns true if the program marker line was found.
func (d *Dump) HasProgram() bool {
	return len(d.Program.Lines) > 0
}

// SplitLines routes lines to the bootloader segment until the first line that
// starts with the program marker; that line and everything after it go to the program segment.
func SplitLines(lines []string) *Dump {
	d := &Dump{
		Bootloader: Segment{Name: "bootloader"},
		Program:    Segment{Name: "program"},
	}
	inProgram := false
	for i, l := range lines {
		if strings.TrimSpace(l) == "" {
			continue
		}
		if !inProgram && strings.HasPrefix(l, programMarker) {
			inProgram = true
		}
		ln := Line{No: i + 1, Text: l}
		if inProgram {
			d.Program.Lines = append(d.Program.Lines, ln)
		} else {
			d.Bootloader.Lines = append(d.Bootloader.Lines, ln)
		}
	}
	return d
}

// Split reads the dump from r and splits it, see SplitLines.
func Split(r io.Reader) (*Dump, error) {
	var lines []string
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Annotatef(err, "line %d", len(lines)+1)
	}
	return SplitLines(lines), nil
}

// ReadFile reads and splits the dump stored in fname.
func ReadFile(fname string) (*Dump, error) {
	data, err := ioutil.ReadFile(fname)
	if err != nil {
		return nil, errors.Trace(err)
	}
	d, err := Split(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Annotatef(err, "%s", fname)
	}
	return d, nil
}

// ParseLine parses a single dump line.
func ParseLine(lineNo int, line string) (Record, error) {
	r := Record{Line: lineNo}
	// Fields drops the trailing separator and any CR, so no empty tokens get here.
	tokens := strings.Fields(line)
	if len(tokens) > 0 && strings.HasPrefix(tokens[0], "@") {
		addr, err := strconv.ParseUint(tokens[0][1:], 16, 32)
		if err != nil {
			return r, &MalformedAddressError{Line: lineNo, Text: tokens[0], Reason: "invalid hex"}
		}
		r.HasAddr = true
		r.Addr = uint32(addr)
		tokens = tokens[1:]
	}
	for _, tok := range tokens {
		if len(tok) > 2 {
			return r, &MalformedByteError{Line: lineNo, Token: tok}
		}
		b, err := strconv.ParseUint(tok, 16, 8)
		if err != nil {
			return r, &MalformedByteError{Line: lineNo, Token: tok}
		}
		r.Data = append(r.Data, byte(b))
	}
	return r, nil
}

// Records parses all lines of the segment.
func (s Segment) Records() ([]Record, error) {
	res := make([]Record, 0, len(s.Lines))
	for _, l := range s.Lines {
		r, err := ParseLine(l.No, l.Text)
		if err != nil {
			return nil, errors.Annotatef(err, "%s segment", s.Name)
		}
		res = append(res, r)
	}
	return res, nil
}
