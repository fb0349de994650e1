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

// Package pflagenv fills flags that were not given on the command line
// from environment variables.
package pflagenv

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/juju/errors"
	"github.com/spf13/pflag"
)

// ParseFlagSet looks up <envPrefix><FLAG_NAME> for every flag of fs that was not
// set explicitly, and sets the flag from it. Dashes in flag names become
// underscores. Flags set this way are marked as changed, so later sources
// (e.g. a config file) do not override them.
//
// It should be called after Parse is called for the given FlagSet.
// Returns names of the flags taken from the environment, sorted.
func ParseFlagSet(fs *pflag.FlagSet, envPrefix string) ([]string, error) {
	var set []string
	var err error
	fs.VisitAll(func(f *pflag.Flag) {
		if err != nil || f.Changed {
			return
		}
		name := EnvName(f.Name, envPrefix)
		v, ok := os.LookupEnv(name)
		if !ok || v == "" {
			return
		}
		if serr := fs.Set(f.Name, v); serr != nil {
			err = errors.Annotatef(serr, "invalid value of %s", name)
			return
		}
		set = append(set, f.Name)
	})
	sort.Strings(set)
	return set, err
}

// Parse is ParseFlagSet for pflag.CommandLine.
func Parse(envPrefix string) ([]string, error) {
	return ParseFlagSet(pflag.CommandLine, envPrefix)
}

func EnvName(flagName, envPrefix string) string {
	flagName = strings.ToUpper(flagName)
	flagName = strings.Replace(flagName, "-", "_", -1)
	return fmt.Sprint(envPrefix, flagName)
}
