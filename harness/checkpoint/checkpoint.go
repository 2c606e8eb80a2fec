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

// Package checkpoint synchronizes a conformance run with its child
// helper process over an inherited pipe. The child signals named
// checkpoints and sends one structured report; the parent waits for
// either with an explicit bound, so a wedged child surfaces as a
// timeout error instead of a hang.
package checkpoint

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"gopkg.in/tomb.v2"
)

// ErrTimeout is returned when the other side does not reach the
// awaited checkpoint within the bound.
var ErrTimeout = errors.New("timed out waiting for checkpoint")

type message struct {
	Checkpoint string          `json:"checkpoint,omitempty"`
	Report     json.RawMessage `json:"report,omitempty"`
}

// Point is the parent-side endpoint. A reader goroutine drains the
// pipe so that checkpoint signals and the final report can arrive in
// any order relative to the parent's waits.
type Point struct {
	tomb tomb.Tomb
	r    io.ReadCloser
	msgs chan message
}

// NewPoint starts reading messages from r; r is closed when the point
// is closed.
func NewPoint(r io.ReadCloser) *Point {
	p := &Point{
		r:    r,
		msgs: make(chan message, 8),
	}
	p.tomb.Go(p.loop)
	return p
}

func (p *Point) loop() error {
	defer close(p.msgs)
	scanner := bufio.NewScanner(p.r)
	for scanner.Scan() {
		var msg message
		if err := json.Unmarshal(scanner.Bytes(), &msg); err != nil {
			return fmt.Errorf("cannot decode checkpoint message: %v", err)
		}
		select {
		case p.msgs <- msg:
		case <-p.tomb.Dying():
			return nil
		}
	}
	if p.tomb.Err() != tomb.ErrStillAlive {
		// closed from our side, the read error is expected
		return nil
	}
	return scanner.Err()
}

// Wait blocks until the child signals the named checkpoint, the pipe
// is closed, or the timeout expires.
func (p *Point) Wait(name string, timeout time.Duration) error {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	for {
		select {
		case msg, ok := <-p.msgs:
			if !ok {
				if err := p.tomb.Wait(); err != nil {
					return err
				}
				return fmt.Errorf("child closed the pipe before checkpoint %q", name)
			}
			if msg.Checkpoint == name {
				return nil
			}
			// a report or an unrelated checkpoint while waiting
			// means the coordination is out of step
			return fmt.Errorf("expected checkpoint %q, got %q", name, msg.Checkpoint)
		case <-deadline.C:
			return ErrTimeout
		}
	}
}

// WaitReport blocks until the child's structured report arrives and
// decodes it into v.
func (p *Point) WaitReport(v interface{}, timeout time.Duration) error {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	select {
	case msg, ok := <-p.msgs:
		if !ok {
			if err := p.tomb.Wait(); err != nil {
				return err
			}
			return fmt.Errorf("child closed the pipe before reporting")
		}
		if msg.Report == nil {
			return fmt.Errorf("expected a report, got checkpoint %q", msg.Checkpoint)
		}
		return json.Unmarshal(msg.Report, v)
	case <-deadline.C:
		return ErrTimeout
	}
}

// Close tears the endpoint down and waits for the reader to finish.
func (p *Point) Close() error {
	p.tomb.Kill(nil)
	err := p.r.Close()
	if werr := p.tomb.Wait(); werr != nil && err == nil {
		err = werr
	}
	return err
}

// Child is the child-side endpoint.
type Child struct {
	enc *json.Encoder
}

// NewChild wraps the inherited pipe write end.
func NewChild(w io.Writer) *Child {
	return &Child{enc: json.NewEncoder(w)}
}

// Signal marks the named checkpoint as reached.
func (c *Child) Signal(name string) error {
	return c.enc.Encode(message{Checkpoint: name})
}

// Report sends the structured outcome of the child back to the parent.
func (c *Child) Report(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.enc.Encode(message{Report: data})
}
