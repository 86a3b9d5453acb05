package transfer

import (
	"strings"

	"github.com/google/uuid"
)

// Policy is a recipient's privacy setting. The zero value accepts
// every transfer.
type Policy struct {
	RefuseMessages  bool
	RefuseFiles     bool
	RefuseAnonymous bool
}

// Accepts reports whether a transfer of kind from sender may be
// delivered. A nil sender is an anonymous upload.
func (p Policy) Accepts(kind Kind, sender *uuid.UUID) bool {
	if sender == nil && p.RefuseAnonymous {
		return false
	}
	switch kind {
	case KindMessage:
		return !p.RefuseMessages
	case KindFile:
		return !p.RefuseFiles
	}
	return false
}

// Recipient is an account that can be named as a transfer recipient.
type Recipient struct {
	ID     uuid.UUID
	Name   string
	Policy Policy
}

// Directory resolves recipient names.
type Directory interface {
	Lookup(name string) (*Recipient, bool)
}

// StaticDirectory is a Directory over a fixed set of recipients. Names
// are matched case-insensitively.
type StaticDirectory struct {
	byName map[string]*Recipient
}

// NewStaticDirectory returns a directory of recipients.
func NewStaticDirectory(recipients []Recipient) *StaticDirectory {
	d := &StaticDirectory{byName: make(map[string]*Recipient, len(recipients))}
	for i := range recipients {
		r := recipients[i]
		d.byName[strings.ToLower(r.Name)] = &r
	}
	return d
}

// Lookup implements Directory.
func (d *StaticDirectory) Lookup(name string) (*Recipient, bool) {
	r, ok := d.byName[strings.ToLower(name)]
	return r, ok
}
