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

// Package fixture creates and tears down the filesystem objects a
// conformance run depends on.
//
// A Set is built from declarative Node records under a root directory
// that is private to one run, so concurrent runs can never alias each
// other's objects. Building is idempotent: an object that already
// exists with the expected kind is adjusted, an object of the wrong
// kind aborts the run. Objects that cannot be created for lack of
// privilege (device nodes without root) are recorded as missing with
// their cause instead of failing the build, so that the cases
// depending on them can be skipped rather than failed.
package fixture

import (
	"bytes"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sys/unix"
	"gopkg.in/retry.v1"

	"github.com/canonical/sysconform/logger"
)

// Kind enumerates the filesystem object kinds a Node can describe.
type Kind int

const (
	Regular Kind = iota
	Dir
	Symlink
	Fifo
	CharDevice
	BlockDevice
	Socket
)

func (k Kind) String() string {
	switch k {
	case Regular:
		return "regular file"
	case Dir:
		return "directory"
	case Symlink:
		return "symlink"
	case Fifo:
		return "fifo"
	case CharDevice:
		return "character device"
	case BlockDevice:
		return "block device"
	case Socket:
		return "socket"
	}
	return fmt.Sprintf("unknown kind %d", int(k))
}

// Node declares one filesystem object of a fixture set.
type Node struct {
	// Path is relative to the root of the Set.
	Path string
	Kind Kind
	// Mode carries the permission bits; ignored for symlinks.
	Mode os.FileMode
	// Target is the symlink target, relative targets are kept as-is.
	Target string
	// Dev is the device number for char/block nodes, see unix.Mkdev.
	Dev uint64
	// Content is written to regular files.
	Content []byte
	// Xattrs are set on the object (following symlinks) after creation.
	Xattrs map[string][]byte
}

// Set is a collection of fixture nodes rooted at a run-private
// directory.
type Set struct {
	root      string
	nodes     []Node
	missing   map[string]error
	listeners map[string]*net.UnixListener
}

// NewSet returns a set describing the given nodes under root. Nothing
// is created until Build is called.
func NewSet(root string, nodes []Node) *Set {
	return &Set{
		root:      root,
		nodes:     nodes,
		missing:   make(map[string]error),
		listeners: make(map[string]*net.UnixListener),
	}
}

// Path returns the absolute path of the node with the given relative
// path.
func (s *Set) Path(rel string) string {
	return filepath.Join(s.root, rel)
}

// Missing reports why the node with the given relative path could not
// be provided, or nil if it was.
func (s *Set) Missing(rel string) error {
	return s.missing[rel]
}

// SocketFile returns a duplicate of the listening socket file of the
// socket node at rel. The caller owns the returned file.
func (s *Set) SocketFile(rel string) (*os.File, error) {
	l, ok := s.listeners[rel]
	if !ok {
		return nil, fmt.Errorf("internal error: no socket fixture at %q", rel)
	}
	return l.File()
}

// Build creates all declared nodes. It can be called repeatedly; a
// second build against an already-correct set changes nothing.
func (s *Set) Build() error {
	for i := range s.nodes {
		if err := s.buildNode(&s.nodes[i]); err != nil {
			return err
		}
	}
	return nil
}

// lacksPrivilege returns whether err means the node kind cannot be
// created in this environment as opposed to the build being broken.
func lacksPrivilege(err error) bool {
	return err == unix.EPERM || err == unix.EACCES
}

func (s *Set) buildNode(n *Node) error {
	path := s.Path(n.Path)

	st, err := os.Lstat(path)
	switch {
	case err == nil:
		have := kindOf(st)
		if have != n.Kind {
			return fmt.Errorf("cannot reuse existing path %q: expected %s, found %s", path, n.Kind, have)
		}
		if err := s.adjustNode(n, path); err != nil {
			return err
		}
	case os.IsNotExist(err):
		if err := s.createNode(n, path); err != nil {
			if lacksPrivilege(err) && (n.Kind == CharDevice || n.Kind == BlockDevice) {
				logger.Debugf("cannot create %s %q: %v", n.Kind, path, err)
				s.missing[n.Path] = fmt.Errorf("cannot create %s: %v", n.Kind, err)
				return nil
			}
			return fmt.Errorf("cannot create %s %q: %v", n.Kind, path, err)
		}
	default:
		return fmt.Errorf("cannot inspect %q: %v", path, err)
	}

	delete(s.missing, n.Path)

	if err := s.applyXattrs(n, path); err != nil {
		return err
	}
	return nil
}

func kindOf(st os.FileInfo) Kind {
	switch {
	case st.Mode().IsRegular():
		return Regular
	case st.IsDir():
		return Dir
	case st.Mode()&os.ModeSymlink != 0:
		return Symlink
	case st.Mode()&os.ModeNamedPipe != 0:
		return Fifo
	case st.Mode()&os.ModeCharDevice != 0:
		return CharDevice
	case st.Mode()&os.ModeDevice != 0:
		return BlockDevice
	case st.Mode()&os.ModeSocket != 0:
		return Socket
	}
	return Kind(-1)
}

func (s *Set) createNode(n *Node, path string) error {
	switch n.Kind {
	case Regular:
		if err := os.WriteFile(path, n.Content, n.Mode); err != nil {
			return err
		}
	case Dir:
		if err := os.Mkdir(path, n.Mode); err != nil {
			return err
		}
	case Symlink:
		return os.Symlink(n.Target, path)
	case Fifo:
		if err := unix.Mkfifo(path, uint32(n.Mode.Perm())); err != nil {
			return err
		}
	case CharDevice:
		if err := unix.Mknod(path, unix.S_IFCHR|uint32(n.Mode.Perm()), int(n.Dev)); err != nil {
			return err
		}
	case BlockDevice:
		if err := unix.Mknod(path, unix.S_IFBLK|uint32(n.Mode.Perm()), int(n.Dev)); err != nil {
			return err
		}
	case Socket:
		l, err := net.Listen("unix", path)
		if err != nil {
			return err
		}
		s.listeners[n.Path] = l.(*net.UnixListener)
	default:
		return fmt.Errorf("internal error: unknown node kind %d", int(n.Kind))
	}
	// undo the umask applied on creation
	return os.Chmod(path, n.Mode.Perm())
}

func (s *Set) adjustNode(n *Node, path string) error {
	if n.Kind == Symlink {
		// nothing to adjust, the kind was already verified
		return nil
	}
	if n.Kind == Regular && n.Content != nil {
		current, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("cannot read %q: %v", path, err)
		}
		if !bytes.Equal(current, n.Content) {
			if err := os.WriteFile(path, n.Content, n.Mode.Perm()); err != nil {
				return fmt.Errorf("cannot rewrite %q: %v", path, err)
			}
		}
	}
	if err := os.Chmod(path, n.Mode.Perm()); err != nil {
		return fmt.Errorf("cannot adjust mode of %q: %v", path, err)
	}
	return nil
}

func (s *Set) applyXattrs(n *Node, path string) error {
	for key, value := range n.Xattrs {
		if err := unix.Setxattr(path, key, value, 0); err != nil {
			if err == unix.EOPNOTSUPP {
				s.missing[n.Path] = fmt.Errorf("cannot set %q on %s: %v", key, n.Kind, err)
				return nil
			}
			return fmt.Errorf("cannot set attribute %q on %q: %v", key, path, err)
		}
	}
	return nil
}

var removeRetryStrategy = retry.LimitCount(6, retry.Exponential{
	Initial: 10 * time.Millisecond,
	Factor:  2,
})

// Teardown releases everything the set holds: socket listeners are
// closed and all nodes are removed, transiently-busy removals are
// retried. Failures are logged, never escalated, so teardown can
// always run to completion.
func (s *Set) Teardown() {
	for rel, l := range s.listeners {
		if err := l.Close(); err != nil {
			logger.Noticef("cannot close socket listener %q: %v", rel, err)
		}
	}
	s.listeners = make(map[string]*net.UnixListener)

	for i := len(s.nodes) - 1; i >= 0; i-- {
		path := s.Path(s.nodes[i].Path)
		var err error
		for a := retry.Start(removeRetryStrategy, nil); a.Next(); {
			if err = os.RemoveAll(path); err == nil {
				break
			}
		}
		if err != nil {
			logger.Noticef("cannot remove fixture %q: %v", path, err)
		}
	}
}
