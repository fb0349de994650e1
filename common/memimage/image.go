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
	"fmt"
	"io"

	"github.com/golang/glog"
	"github.com/juju/errors"
	"github.com/marcinbor85/gohex"
)

// Image is a byte-addressable buffer reconstructed from a segment.
// Data[0] corresponds to the absolute address Base.
type Image struct {
	Name string
	Base uint32
	Data []byte
}

// Page is a contiguous slice of an image, the unit of one upload transaction.
type Page struct {
	Offset uint32
	Data   []byte
}

// BuildImage replays the records of seg into a fresh image. Addresses of
// address-set records are translated by subtracting base.
// A segment without data or without an address-set record produces an empty image.
func BuildImage(seg Segment, base uint32) (*Image, error) {
	recs, err := seg.Records()
	if err != nil {
		return nil, errors.Trace(err)
	}
	img := &Image{Name: seg.Name, Base: base}
	var cursor uint32
	sawAddr, sawData := false, false
	for _, r := range recs {
		if r.HasAddr {
			if r.Addr < base {
				return nil, &MalformedAddressError{
					Line:   r.Line,
					Text:   fmt.Sprintf("@%08X", r.Addr),
					Reason: fmt.Sprintf("below segment base 0x%08x", base),
				}
			}
			cursor = r.Addr - base
			sawAddr = true
		}
		if len(r.Data) == 0 {
			continue
		}
		if int(cursor)+len(r.Data) > MaxOffset {
			return nil, &MalformedAddressError{
				Line:   r.Line,
				Text:   fmt.Sprintf("@%08X", base+cursor),
				Reason: "data runs past the end of the address space",
			}
		}
		for _, b := range r.Data {
			img.set(cursor, b)
			cursor++
		}
		sawData = true
	}
	if !sawAddr || !sawData {
		glog.Warningf("%s segment has no data (%d lines), image is empty", seg.Name, len(seg.Lines))
		return &Image{Name: seg.Name, Base: base}, nil
	}
	glog.V(1).Infof("%s: %d bytes @ 0x%08x", seg.Name, len(img.Data), base)
	return img, nil
}

func (img *Image) set(off uint32, b byte) {
	if n := int(off) + 1; n > len(img.Data) {
		if n <= cap(img.Data) {
			img.Data = img.Data[:n]
		} else {
			img.Data = append(img.Data, make([]byte, n-len(img.Data))...)
		}
	}
	img.Data[off] = b
}

func (img *Image) Len() int {
	return len(img.Data)
}

func (img *Image) Empty() bool {
	return len(img.Data) == 0
}

// Pages tiles the image into pages of at most size bytes.
// Only the last page may be shorter than size.
func (img *Image) Pages(size int) []Page {
	if size <= 0 {
		size = PageSize
	}
	var pp []Page
	for off := 0; off < len(img.Data); off += size {
		end := off + size
		if end > len(img.Data) {
			end = len(img.Data)
		}
		pp = append(pp, Page{Offset: uint32(off), Data: img.Data[off:end]})
	}
	return pp
}

// WriteHex writes the image in Intel HEX format at its absolute address.
func (img *Image) WriteHex(w io.Writer) error {
	mem := gohex.NewMemory()
	if len(img.Data) > 0 {
		if err := mem.AddBinary(img.Base, img.Data); err != nil {
			return errors.Annotatef(err, "%s", img.Name)
		}
	}
	return errors.Trace(mem.DumpIntelHex(w, 16))
}

// CheckPageSize verifies that pages of size bytes never straddle a flash page:
// size must be in 1..PageSize and divide PageSize.
func CheckPageSize(size int) error {
	if size <= 0 || size > PageSize || PageSize%size != 0 {
		return errors.Errorf("invalid page size (%d), must divide %d", size, PageSize)
	}
	return nil
}

// Checksum returns the sum of data modulo 256.
func Checksum(data []byte) byte {
	var cs byte
	for _, b := range data {
		cs += b
	}
	return cs
}
