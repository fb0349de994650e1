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
package flags

import (
	"time"

	flag "github.com/spf13/pflag"
)

var (
	Port = flag.String("port", "auto", "Serial port where the device is connected. "+
		"If set to 'auto', ports on the system will be enumerated and the first will be used.")
	BaudRate             = flag.Uint("baud-rate", 115200, "Serial port speed")
	ReadTimeout          = flag.Duration("read-timeout", 100*time.Millisecond, "How long to wait for a single byte from the device")
	InvertedControlLines = flag.Bool("inverted-control-lines", false, "DTR and RTS control lines use inverted polarity")

	ResetHold    = flag.Duration("reset-hold", 10*time.Millisecond, "How long to hold the device in reset (DTR asserted)")
	SyncAttempts = flag.Int("sync-attempts", 100, "Number of sync probes sent before giving up on the bootloader")
	SyncInterval = flag.Duration("sync-interval", 100*time.Millisecond, "Pause between sync probes")
	AckAttempts  = flag.Int("ack-attempts", 300, "Number of reads to wait for an ack; 0 - wait forever")
	PageSize     = flag.Int("page-size", 256, "Flash page size, must divide 256")

	Output = flag.StringP("output", "o", "", "Output file name (coe) or name prefix (dump)")
	Format = flag.StringSlice("format", []string{"bin", "hex"}, "Image formats written by dump: bin, hex, coe (bootloader image only)")
	COE    = flag.BoolP("coe", "c", false, "Legacy mode: write the boot ROM COE file instead of flashing")
)
