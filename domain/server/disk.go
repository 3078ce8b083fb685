package server

import "fmt"

// Disk is an immutable disk reference identified by id.
type Disk struct {
	id string
}

// NewDisk creates a Disk.
func NewDisk(id string) Disk {
	return Disk{id: id}
}

func (d Disk) ID() string { return d.id }

// Equal reports whether other is a Disk (value or pointer) with the same id.
func (d Disk) Equal(other any) bool {
	switch o := other.(type) {
	case Disk:
		return d.id == o.id
	case *Disk:
		return o != nil && d.id == o.id
	default:
		return false
	}
}

// Less orders disks by id using natural string ordering.
func (d Disk) Less(other Disk) bool {
	return d.id < other.id
}

func (d Disk) String() string {
	return fmt.Sprintf("<Disk: id=%q>", d.id)
}
