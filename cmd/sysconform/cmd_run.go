// -*- Mode: Go; indent-tabs-mode: t -*-

/*
 * Copyright (C) 2024 Canonical Ltd
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU General Public License version 3 as
 * published by the Free Software Foundation.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License
 * along with this program.  If not, see <http://www.gnu.org/licenses/>.
 *
 */

package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/jessevdk/go-flags"
	"gopkg.in/yaml.v2"

	"github.com/canonical/sysconform/conformance"
	"github.com/canonical/sysconform/conformance/lease"
	"github.com/canonical/sysconform/harness"
	"github.com/canonical/sysconform/osutil"
	"github.com/canonical/sysconform/strutil"
)

var shortRunHelp = "Run conformance suites"
var longRunHelp = `
The run command executes the named conformance suites, or all of them
when no names are given. The exit status reflects the overall outcome:
0 when everything passed, 1 on failed checks, 2 on blocked or broken
runs and 4 when nothing could run at all.`

type cmdRun struct {
	WorkDir    string `long:"workdir" description:"Create run directories under this directory instead of the default temporary directory"`
	ConfigFile string `long:"config" description:"Read defaults from this YAML file"`
	Quiet      bool   `long:"quiet" short:"q" description:"Only print the summary"`
	Positional struct {
		Suites []string `positional-arg-name:"<suite>"`
	} `positional-args:"yes"`
}

func init() {
	addCommand("run", shortRunHelp, longRunHelp, func() flags.Commander { return &cmdRun{} })
}

// runConfig are the file-configurable defaults of the run command.
type runConfig struct {
	WorkDir string   `yaml:"work-dir"`
	Skip    []string `yaml:"skip"`
	// LeaseBreakTimeSecs overrides fs.lease-break-time for the lease
	// suite's run.
	LeaseBreakTimeSecs int `yaml:"lease-break-time"`
}

func readRunConfig(path string) (*runConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read configuration: %v", err)
	}
	var cfg runConfig
	if err := yaml.UnmarshalStrict(data, &cfg); err != nil {
		return nil, fmt.Errorf("cannot parse configuration %q: %v", path, err)
	}
	return &cfg, nil
}

// streamReporter prints results as they arrive.
type streamReporter struct {
	w io.Writer
}

func (s *streamReporter) Report(res harness.Result) {
	fmt.Fprintf(s.w, "%s\n", res)
}

func (c *cmdRun) selectSuites(cfg *runConfig) ([]*harness.Spec, error) {
	if len(c.Positional.Suites) > 0 {
		specs := make([]*harness.Spec, 0, len(c.Positional.Suites))
		for _, name := range c.Positional.Suites {
			spec := conformance.Find(name)
			if spec == nil {
				var known []string
				for _, s := range conformance.All() {
					known = append(known, s.Name)
				}
				return nil, fmt.Errorf("unknown suite %q, available: %s", name, strutil.Quoted(known))
			}
			specs = append(specs, spec)
		}
		return specs, nil
	}

	var specs []*harness.Spec
	for _, spec := range conformance.All() {
		if cfg != nil && strutil.ListContains(cfg.Skip, spec.Name) {
			continue
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

func (c *cmdRun) Execute(args []string) error {
	var cfg *runConfig
	if c.ConfigFile != "" {
		var err error
		if cfg, err = readRunConfig(c.ConfigFile); err != nil {
			return err
		}
	}

	workDir := c.WorkDir
	if workDir == "" && cfg != nil {
		workDir = cfg.WorkDir
	}
	if workDir != "" {
		if !osutil.IsDirectory(workDir) {
			return fmt.Errorf("work directory %q is not a directory", workDir)
		}
		harness.SetWorkDir(workDir)
	}

	if cfg != nil && cfg.LeaseBreakTimeSecs != 0 {
		if err := lease.SetBreakTime(time.Duration(cfg.LeaseBreakTimeSecs) * time.Second); err != nil {
			return err
		}
	}

	specs, err := c.selectSuites(cfg)
	if err != nil {
		return err
	}
	if len(specs) == 0 {
		return fmt.Errorf("no suites selected")
	}

	rec := &harness.Recorder{}
	var reporter harness.Reporter = rec
	if !c.Quiet {
		reporter = harness.MultiReporter(rec, &streamReporter{w: Stdout})
	}

	for _, spec := range specs {
		spec.Execute(reporter)
	}

	fmt.Fprintf(Stdout, "%d passed, %d failed, %d skipped, %d broken, %d blocked\n",
		rec.Count(harness.Passed), rec.Count(harness.Failed), rec.Count(harness.Skipped),
		rec.Count(harness.Broken), rec.Count(harness.Blocked))

	if code := rec.ExitCode(); code != harness.ExitPassed {
		panic(&exitStatus{code})
	}
	return nil
}
