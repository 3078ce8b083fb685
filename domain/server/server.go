// Package server holds the Server and Disk value objects.
package server

import (
	"fmt"
	"slices"
)

// Server is an immutable record of a host and the disks attached to it.
type Server struct {
	address string
	name    string
	disks   []Disk
}

// New creates a Server. The disk slice is copied.
func New(address, name string, disks []Disk) Server {
	return Server{
		address: address,
		name:    name,
		disks:   slices.Clone(disks),
	}
}

func (s Server) Address() string { return s.address }
func (s Server) Name() string    { return s.name }

// Disks returns a copy of the attached disks in construction order.
func (s Server) Disks() []Disk { return slices.Clone(s.disks) }

// HasDisks reports whether at least one disk is attached.
func (s Server) HasDisks() bool { return len(s.disks) > 0 }

// Equal reports whether other is a Server with the same address and name and
// the same set of disks regardless of order.
//
// A Server without disks is never equal to anything, itself included.
func (s Server) Equal(other any) bool {
	var o Server
	switch v := other.(type) {
	case Server:
		o = v
	case *Server:
		if v == nil {
			return false
		}
		o = *v
	default:
		return false
	}

	if s.address != o.address || s.name != o.name {
		return false
	}
	if !s.HasDisks() || !o.HasDisks() {
		return false
	}
	return slices.Equal(sortedDisks(s.disks), sortedDisks(o.disks))
}

func (s Server) String() string {
	return fmt.Sprintf("<Server: address=%q, name=%q, disks=%v>", s.address, s.name, s.disks)
}

func sortedDisks(disks []Disk) []Disk {
	out := slices.Clone(disks)
	slices.SortFunc(out, func(a, b Disk) int {
		switch {
		case a.Less(b):
			return -1
		case b.Less(a):
			return 1
		}
		return 0
	})
	return out
}
