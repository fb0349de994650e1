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
package pflagenv

import (
	"os"
	"reflect"
	"testing"
	"time"

	"github.com/spf13/pflag"
)

func TestParseFlagSet(t *testing.T) {
	fs := pflag.NewFlagSet("pflagenv-test", pflag.ContinueOnError)

	var port, mode, out string
	var attempts int
	var hold time.Duration
	fs.StringVar(&port, "port", "auto", "")
	fs.StringVar(&mode, "mode", "flash", "")
	fs.StringVar(&out, "output", "def", "")
	fs.IntVar(&attempts, "sync-attempts", 100, "")
	fs.DurationVar(&hold, "reset-hold", 10*time.Millisecond, "")
	fs.Parse([]string{"--port=/dev/ttyUSB0", "--mode="})

	os.Setenv("TEST_PORT", "/dev/ttyUSB1")
	os.Setenv("TEST_MODE", "coe")
	os.Setenv("TEST_SYNC_ATTEMPTS", "5")
	os.Setenv("TEST_RESET_HOLD", "20ms")
	defer func() {
		for _, v := range []string{"TEST_PORT", "TEST_MODE", "TEST_SYNC_ATTEMPTS", "TEST_RESET_HOLD"} {
			os.Unsetenv(v)
		}
	}()
	set, err := ParseFlagSet(fs, "TEST_")
	if err != nil {
		t.Fatalf("%s", err)
	}

	if got, want := port, "/dev/ttyUSB0"; got != want {
		t.Errorf("got: %q, want: %q", got, want)
	}
	if got, want := mode, ""; got != want {
		t.Errorf("got: %q, want: %q", got, want)
	}
	if got, want := out, "def"; got != want {
		t.Errorf("got: %q, want: %q", got, want)
	}
	if got, want := attempts, 5; got != want {
		t.Errorf("got: %d, want: %d", got, want)
	}
	if got, want := hold, 20*time.Millisecond; got != want {
		t.Errorf("got: %s, want: %s", got, want)
	}
	if want := []string{"reset-hold", "sync-attempts"}; !reflect.DeepEqual(set, want) {
		t.Errorf("got: %q, want: %q", set, want)
	}
	if !fs.Lookup("sync-attempts").Changed {
		t.Errorf("flag set from env must be marked as changed")
	}
}

func TestParseFlagSetInvalid(t *testing.T) {
	fs := pflag.NewFlagSet("pflagenv-test", pflag.ContinueOnError)
	fs.Int("page-size", 256, "")
	fs.Parse(nil)
	os.Setenv("TEST_PAGE_SIZE", "lots")
	defer os.Unsetenv("TEST_PAGE_SIZE")
	if _, err := ParseFlagSet(fs, "TEST_"); err == nil {
		t.Errorf("expected error")
	}
}

func TestEnvName(t *testing.T) {
	if got, want := EnvName("inverted-control-lines", "PICOPROG_"), "PICOPROG_INVERTED_CONTROL_LINES"; got != want {
		t.Errorf("got: %q, want: %q", got, want)
	}
}
