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
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/juju/errors"

	"github.com/picorv32-tang/picoprog/cli/flags"
	"github.com/picorv32-tang/picoprog/cli/ourutil"
	"github.com/picorv32-tang/picoprog/common/coe"
	"github.com/picorv32-tang/picoprog/common/memimage"
	"github.com/picorv32-tang/picoprog/common/multierror"
	"github.com/picorv32-tang/picoprog/common/ourio"
	"github.com/picorv32-tang/picoprog/version"
)

type dumpManifest struct {
	Source  string          `yaml:"source"`
	Version string          `yaml:"picoprog_version"`
	Images  []imageManifest `yaml:"images"`
}

type imageManifest struct {
	Name     string         `yaml:"name"`
	Base     string         `yaml:"base"`
	Size     int            `yaml:"size"`
	Checksum string         `yaml:"checksum"`
	Files    []string       `yaml:"files,omitempty"`
	Pages    []pageManifest `yaml:"pages,omitempty"`
}

type pageManifest struct {
	Offset   string `yaml:"offset"`
	Size     int    `yaml:"size"`
	Checksum string `yaml:"checksum"`
}

var dumpFormats = map[string]func(img *memimage.Image) ([]byte, error){
	"bin": func(img *memimage.Image) ([]byte, error) {
		return img.Data, nil
	},
	"hex": func(img *memimage.Image) ([]byte, error) {
		buf := bytes.NewBuffer(nil)
		if err := img.WriteHex(buf); err != nil {
			return nil, errors.Trace(err)
		}
		return buf.Bytes(), nil
	},
	"coe": func(img *memimage.Image) ([]byte, error) {
		if img.Base != 0 {
			return nil, nil
		}
		data, err := coe.Encode(img.Data, coe.DefaultSize)
		return data, errors.Trace(err)
	},
}

func checkFormats(formats []string) error {
	var errs error
	for _, f := range formats {
		if _, ok := dumpFormats[f]; !ok {
			errs = multierror.Append(errs, errors.Errorf("unknown format %q, must be one of bin, hex, coe", f))
		}
	}
	return errs
}

func dumpPrefix(fname string) string {
	if *flags.Output != "" {
		return *flags.Output
	}
	return strings.TrimSuffix(fname, filepath.Ext(fname))
}

func newImageManifest(img *memimage.Image, pageSize int) imageManifest {
	m := imageManifest{
		Name:     img.Name,
		Base:     fmt.Sprintf("0x%08x", img.Base),
		Size:     img.Len(),
		Checksum: fmt.Sprintf("0x%02x", memimage.Checksum(img.Data)),
	}
	// Only the program is uploaded page by page.
	if img.Base == memimage.FlashBase {
		for _, p := range img.Pages(pageSize) {
			m.Pages = append(m.Pages, pageManifest{
				Offset:   fmt.Sprintf("0x%06x", p.Offset),
				Size:     len(p.Data),
				Checksum: fmt.Sprintf("0x%02x", memimage.Checksum(p.Data)),
			})
		}
	}
	return m
}

func writeImage(img *memimage.Image, prefix string, formats []string, m *imageManifest) error {
	for _, f := range formats {
		data, err := dumpFormats[f](img)
		if err != nil {
			return errors.Annotatef(err, "%s: %s", img.Name, f)
		}
		if data == nil {
			continue
		}
		fn := fmt.Sprintf("%s.%s.%s", prefix, img.Name, f)
		if _, err := ourio.WriteFileIfDifferent(fn, data, 0644); err != nil {
			return errors.Annotatef(err, "failed to write %s", fn)
		}
		ourutil.Reportf("  %s", fn)
		m.Files = append(m.Files, filepath.Base(fn))
	}
	return nil
}

func dumpCmd(ctx context.Context, args []string) error {
	if err := checkFormats(*flags.Format); err != nil {
		return errors.Trace(err)
	}
	if err := memimage.CheckPageSize(*flags.PageSize); err != nil {
		return errors.Trace(err)
	}
	fname, d, err := loadDump("dump", args)
	if err != nil {
		return errors.Trace(err)
	}
	boot, err := bootloaderImage(d)
	if err != nil {
		return errors.Annotatef(err, "%s", fname)
	}
	prog, err := programImage(d)
	if err != nil {
		return errors.Annotatef(err, "%s", fname)
	}

	prefix := dumpPrefix(fname)
	manifest := dumpManifest{Source: filepath.Base(fname), Version: version.GetVersion()}
	for _, img := range []*memimage.Image{boot, prog} {
		if img == nil || img.Empty() {
			ourutil.Warnf("%s: %s segment is empty, skipping", fname, segmentName(img))
			continue
		}
		ourutil.Reportf("%s: %d bytes @ 0x%08x", img.Name, img.Len(), img.Base)
		m := newImageManifest(img, *flags.PageSize)
		if err := writeImage(img, prefix, *flags.Format, &m); err != nil {
			return errors.Trace(err)
		}
		manifest.Images = append(manifest.Images, m)
	}

	mfn := prefix + ".yaml"
	if _, err := ourio.WriteYAMLFileIfDifferent(mfn, &manifest, 0644); err != nil {
		return errors.Annotatef(err, "failed to write %s", mfn)
	}
	ourutil.Successf("Wrote %s", mfn)
	return nil
}

func segmentName(img *memimage.Image) string {
	if img == nil {
		return "program"
	}
	return img.Name
}
