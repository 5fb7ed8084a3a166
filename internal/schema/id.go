package schema

import (
	"encoding/json"

	"github.com/google/uuid"
)

// ChildID identifies a child profile. The ID is classified once at creation:
// a value that parses as a UUID belongs to a remote profile row, anything else
// is a purely local (demo/offline) profile that never touches the network.
//
// Classifying at construction replaces pattern-matching the raw string before
// every remote call.
type ChildID struct {
	value  string
	remote bool
}

// NewChildID classifies a raw identifier into a ChildID.
func NewChildID(value string) ChildID {
	_, err := uuid.Parse(value)
	return ChildID{value: value, remote: err == nil && len(value) == 36}
}

// NewLocalChildID constructs a ChildID that is always local, even if the
// value happens to look like a UUID.
func NewLocalChildID(value string) ChildID {
	return ChildID{value: value, remote: false}
}

// String returns the raw identifier value.
func (c ChildID) String() string { return c.value }

// IsRemote reports whether this child has a remote profile row, i.e. whether
// remote writes keyed on this child are allowed.
func (c ChildID) IsRemote() bool { return c.remote }

// IsZero reports whether the ID is unset.
func (c ChildID) IsZero() bool { return c.value == "" }

// MarshalJSON serializes the ID as its raw string value.
func (c ChildID) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.value)
}

// UnmarshalJSON re-classifies the ID from its raw string value.
func (c *ChildID) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*c = NewChildID(raw)
	return nil
}
