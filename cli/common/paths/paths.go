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
package paths

import (
	"os"
	"path/filepath"
	"runtime"

	"github.com/juju/errors"
	flag "github.com/spf13/pflag"
)

const (
	DefaultConfigFile = "~/.picoprog.yaml"
)

var (
	ConfigFile = ""
	LockDir    = ""
)

func init() {
	flag.StringVar(&ConfigFile, "config", DefaultConfigFile, "YAML file with default flag values")
	flag.StringVar(&LockDir, "lock-dir", "", "Directory for serial port lock files; default - system temp dir")
}

// Init() should be called after all flags are parsed
func Init() error {
	var err error
	ConfigFile, err = NormalizePath(ConfigFile)
	if err != nil {
		return errors.Trace(err)
	}
	LockDir, err = NormalizePath(LockDir)
	if err != nil {
		return errors.Trace(err)
	}
	if LockDir != "" {
		if err := os.MkdirAll(LockDir, 0777); err != nil {
			return errors.Trace(err)
		}
	}
	return nil
}

// NormalizePath expands a leading ~ to the home directory and makes p absolute.
// Empty path stays empty.
func NormalizePath(p string) (string, error) {
	if p == "" {
		return "", nil
	}
	if p[0] == '~' {
		// user.Current() does not work in static builds.
		homeEnvName := "HOME"
		if runtime.GOOS == "windows" {
			homeEnvName = "USERPROFILE"
		}
		p = os.Getenv(homeEnvName) + p[1:]
	}
	p, err := filepath.Abs(p)
	if err != nil {
		return "", errors.Trace(err)
	}
	return p, nil
}
