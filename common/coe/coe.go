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

// Package coe writes memory initialization vectors in the COE text format
// consumed by FPGA block RAM generators.
package coe

import (
	"bytes"
	"fmt"
	"io"

	"github.com/juju/errors"
)

const (
	header = "memory_initialization_radix=16;\nmemory_initialization_vector=\n"
	// DefaultSize is the size of the boot ROM, in bytes.
	DefaultSize = 4096
)

var ErrImageTooLarge = errors.New("image does not fit in ROM")

// Encode packs img into size/4 little-endian 32-bit words and renders them.
// Anything past the end of img is zero.
func Encode(img []byte, size int) ([]byte, error) {
	if size <= 0 || size%4 != 0 {
		return nil, errors.Errorf("invalid ROM size %d", size)
	}
	if len(img) > size {
		return nil, errors.Annotatef(ErrImageTooLarge, "%d > %d", len(img), size)
	}
	rom := make([]byte, size)
	copy(rom, img)

	buf := bytes.NewBuffer(make([]byte, 0, len(header)+size/4*10+2))
	buf.WriteString(header)
	for i := 0; i < size; i += 4 {
		w := uint32(rom[i+3])<<24 | uint32(rom[i+2])<<16 | uint32(rom[i+1])<<8 | uint32(rom[i])
		if i > 0 {
			buf.WriteString(",\n")
		}
		fmt.Fprintf(buf, "%08x", w)
	}
	buf.WriteString(";\n")
	return buf.Bytes(), nil
}

// Write encodes img as a DefaultSize ROM and writes it to w.
func Write(w io.Writer, img []byte) error {
	data, err := Encode(img, DefaultSize)
	if err != nil {
		return errors.Trace(err)
	}
	_, err = w.Write(data)
	return errors.Trace(err)
}
