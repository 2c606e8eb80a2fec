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

package harness

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/canonical/sysconform/harness/checkpoint"
	"github.com/canonical/sysconform/logger"
)

// Child helpers run syscalls that need their own process context (a
// lease breaker that is expected to block, identity transitions that
// must not leak into the runner). The current binary re-executes
// itself with the helper selected through the environment; the helper
// reports a structured outcome back over an inherited pipe rather
// than through exit status text.

const (
	childHelperEnv = "SYSCONFORM_CHILD_HELPER"
	childArgsEnv   = "SYSCONFORM_CHILD_ARGS"
)

// ChildFunc is the body of a child helper. It talks to the parent
// through cp and should send exactly one report before returning.
type ChildFunc func(args []string, cp *checkpoint.Child) error

var childHelpers = make(map[string]ChildFunc)

// RegisterChild makes a helper available for StartChild. Helpers are
// registered from package init so that both the CLI binary and the
// test binaries can serve them.
func RegisterChild(name string, fn ChildFunc) {
	if _, ok := childHelpers[name]; ok {
		panic(fmt.Sprintf("internal error: child helper %q registered twice", name))
	}
	childHelpers[name] = fn
}

// MaybeRunChild must be called early in main (and in TestMain of
// packages whose specs fork): if the process was started as a child
// helper it runs the helper and exits, otherwise it returns.
func MaybeRunChild() {
	name := os.Getenv(childHelperEnv)
	if name == "" {
		return
	}
	fn, ok := childHelpers[name]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown child helper %q\n", name)
		os.Exit(1)
	}
	var args []string
	if raw := os.Getenv(childArgsEnv); raw != "" {
		if err := json.Unmarshal([]byte(raw), &args); err != nil {
			fmt.Fprintf(os.Stderr, "cannot decode child helper arguments: %v\n", err)
			os.Exit(1)
		}
	}
	pipe := os.NewFile(3, "checkpoint-pipe")
	if pipe == nil {
		fmt.Fprintf(os.Stderr, "child helper started without a checkpoint pipe\n")
		os.Exit(1)
	}
	cp := checkpoint.NewChild(pipe)
	if err := fn(args, cp); err != nil {
		fmt.Fprintf(os.Stderr, "child helper %q failed: %v\n", name, err)
		os.Exit(1)
	}
	os.Exit(0)
}

// Child is a running helper process.
type Child struct {
	cmd   *exec.Cmd
	point *checkpoint.Point
}

// StartChild re-executes the current binary as the named helper.
func (r *Run) StartChild(name string, args ...string) (*Child, error) {
	if _, ok := childHelpers[name]; !ok {
		return nil, fmt.Errorf("internal error: child helper %q is not registered", name)
	}
	pr, pw, err := os.Pipe()
	if err != nil {
		return nil, err
	}
	rawArgs, err := json.Marshal(args)
	if err != nil {
		pr.Close()
		pw.Close()
		return nil, err
	}

	cmd := exec.Command(os.Args[0])
	cmd.Env = append(os.Environ(),
		childHelperEnv+"="+name,
		childArgsEnv+"="+string(rawArgs),
	)
	cmd.ExtraFiles = []*os.File{pw}
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		pr.Close()
		pw.Close()
		return nil, fmt.Errorf("cannot start child helper %q: %v", name, err)
	}
	// the write end lives on in the child only
	pw.Close()

	logger.Debugf("started child helper %q as pid %d", name, cmd.Process.Pid)
	return &Child{cmd: cmd, point: checkpoint.NewPoint(pr)}, nil
}

// Checkpoint gives access to the synchronization endpoint of the
// child.
func (c *Child) Checkpoint() *checkpoint.Point {
	return c.point
}

// Wait decodes the child's report into report (unless nil) and reaps
// the process, with a bound on the whole wait.
func (c *Child) Wait(report interface{}, timeout time.Duration) error {
	var reportErr error
	if report != nil {
		reportErr = c.point.WaitReport(report, timeout)
	}

	done := make(chan error, 1)
	go func() { done <- c.cmd.Wait() }()
	select {
	case err := <-done:
		c.point.Close()
		if reportErr != nil {
			return reportErr
		}
		return err
	case <-time.After(timeout):
		c.Kill()
		<-done
		c.point.Close()
		if reportErr != nil {
			return reportErr
		}
		return fmt.Errorf("child helper did not exit in time")
	}
}

// Kill terminates the child forcefully; used when a wait timed out.
func (c *Child) Kill() {
	if c.cmd.Process != nil {
		c.cmd.Process.Kill()
	}
}
