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
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/golang/glog"
	"github.com/juju/errors"
	flag "github.com/spf13/pflag"

	"github.com/picorv32-tang/picoprog/cli/common/paths"
	"github.com/picorv32-tang/picoprog/cli/flags"
	"github.com/picorv32-tang/picoprog/common/pflagenv"
	"github.com/picorv32-tang/picoprog/common/pflagfile"
	"github.com/picorv32-tang/picoprog/version"
)

const (
	envPrefix = "PICOPROG_"
)

var (
	verbose     = flag.Bool("verbose", false, "Verbose output")
	versionFlag = flag.Bool("version", false, "Print version and exit")
	helpFull    = flag.Bool("helpfull", false, "Show full help, including advanced flags")
)

type command struct {
	name     string
	handler  handler
	short    string
	required []string
	optional []string
}

// handler gets the positional arguments that follow the command name.
type handler func(ctx context.Context, args []string) error

var commands []command

func init() {
	commands = []command{
		{"coe", coeCmd, `Write the boot ROM image of <file> as a COE file`, nil, []string{"output"}},
		{"flash", flashCmd, `Upload the program image of <file> to the device flash`, nil, []string{
			"port", "baud-rate", "reset-hold", "sync-attempts", "sync-interval", "ack-attempts", "page-size", "inverted-control-lines",
		}},
		{"dump", dumpCmd, `Write both images of <file> as binary and Intel HEX files, with a manifest`, nil, []string{"output", "format"}},
		{"ports", portsCmd, `List serial ports`, nil, nil},
		{"version", versionCmd, `Print version`, nil, nil},
	}
}

func findCommand(name string) *command {
	for i := range commands {
		if commands[i].name == name {
			return &commands[i]
		}
	}
	return nil
}

// legacyCommand maps the "<file> -c" and "<file> <port>" invocations
// onto commands.
func legacyCommand(args []string) (*command, []string) {
	switch {
	case len(args) == 1 && *flags.COE:
		return findCommand("coe"), args
	case len(args) == 2 && !*flags.COE:
		*flags.Port = args[1]
		return findCommand("flash"), args[:1]
	}
	return nil, nil
}

func run(ctx context.Context, args []string) error {
	if len(args) == 0 || args[0] == "help" {
		usage()
		return nil
	}
	c, cargs := findCommand(args[0]), args[1:]
	if c == nil {
		c, cargs = legacyCommand(args)
	}
	if c == nil {
		usage()
		return errors.Errorf("unknown command %q", args[0])
	}
	glog.V(1).Infof("%s %q", c.name, cargs)
	if err := checkFlags(c.required); err != nil {
		return errors.Trace(err)
	}
	if err := c.handler(ctx, cargs); err != nil {
		return errors.Trace(err)
	}
	return nil
}

func loadConfig() error {
	if _, err := pflagenv.Parse(envPrefix); err != nil {
		return errors.Trace(err)
	}
	cf, err := paths.NormalizePath(paths.ConfigFile)
	if err != nil {
		return errors.Trace(err)
	}
	// The default file is optional, an explicitly given one is not.
	if _, err := pflagfile.Parse(cf, flag.Lookup("config").Changed); err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(paths.Init())
}

func main() {
	initFlags()
	flag.Parse()

	if err := loadConfig(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
	if *verbose {
		flag.Set("v", "1")
		flag.Set("logtostderr", "true")
	}
	glog.Infof("%s", version.GetUserAgent())

	if *helpFull {
		unhideFlags()
		usage()
		return
	} else if *versionFlag {
		versionCmd(context.Background(), nil)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt)
	go func() {
		<-sigs
		glog.Infof("interrupted")
		cancel()
	}()

	err := run(ctx, flag.Args())
	cancel()
	os.Exit(exitStatus(err, os.Stderr))
}

var flushLogs = glog.Flush

// exitStatus reports err and flushes the logs, which must come last.
func exitStatus(err error, stderr io.Writer) int {
	status := 0
	if err != nil {
		glog.Infof("Error: %s", errors.ErrorStack(err))
		fmt.Fprintf(stderr, "Error: %s\n", err)
		status = 1
	}
	flushLogs()
	return status
}
