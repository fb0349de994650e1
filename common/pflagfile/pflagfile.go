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

// Package pflagfile reads default flag values from a YAML file.
//
// The file is a mapping of flag names to values:
//
//   port: /dev/ttyUSB1
//   sync-attempts: 20
//   format: [bin, hex]
//
// Only flags that are still at their defaults are touched, so the command line
// and the environment take precedence.
package pflagfile

import (
	"fmt"
	"io/ioutil"
	"os"
	"sort"
	"strings"

	"github.com/golang/glog"
	"github.com/juju/errors"
	"github.com/spf13/pflag"
	yaml "gopkg.in/yaml.v2"
)

// ParseFlagSet applies values from data to fs. Unknown flag names are an error.
// Returns names of the flags that were set, sorted.
func ParseFlagSet(fs *pflag.FlagSet, data []byte) ([]string, error) {
	values := map[string]interface{}{}
	if err := yaml.Unmarshal(data, &values); err != nil {
		return nil, errors.Annotatef(err, "invalid config")
	}
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)

	var set []string
	for _, name := range names {
		f := fs.Lookup(name)
		if f == nil {
			return nil, errors.Errorf("unknown flag %q", name)
		}
		if f.Changed {
			glog.V(1).Infof("%s: already set, ignoring config value", name)
			continue
		}
		v, err := valueString(values[name])
		if err != nil {
			return nil, errors.Annotatef(err, "%s", name)
		}
		if err := fs.Set(name, v); err != nil {
			return nil, errors.Annotatef(err, "invalid value for %s", name)
		}
		set = append(set, name)
	}
	return set, nil
}

// ParseFile reads filename and applies it to fs. A missing file is not an error
// unless mustExist is set.
func ParseFile(fs *pflag.FlagSet, filename string, mustExist bool) ([]string, error) {
	if filename == "" {
		return nil, nil
	}
	data, err := ioutil.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) && !mustExist {
			glog.V(1).Infof("%s does not exist", filename)
			return nil, nil
		}
		return nil, errors.Trace(err)
	}
	set, err := ParseFlagSet(fs, data)
	if err != nil {
		return nil, errors.Annotatef(err, "%s", filename)
	}
	glog.Infof("%s: set %s", filename, strings.Join(set, ", "))
	return set, nil
}

// Parse is ParseFile for pflag.CommandLine.
func Parse(filename string, mustExist bool) ([]string, error) {
	return ParseFile(pflag.CommandLine, filename, mustExist)
}

func valueString(v interface{}) (string, error) {
	switch vv := v.(type) {
	case nil:
		return "", nil
	case []interface{}:
		parts := make([]string, 0, len(vv))
		for _, e := range vv {
			s, err := valueString(e)
			if err != nil {
				return "", errors.Trace(err)
			}
			parts = append(parts, s)
		}
		return strings.Join(parts, ","), nil
	case map[interface{}]interface{}:
		return "", errors.Errorf("nested mappings are not supported")
	}
	return fmt.Sprint(v), nil
}
