package schema

import "fmt"

// ParentProfile is the supervising account row in the parents table.
// Profiles are upserted on email so each address has exactly one record.
type ParentProfile struct {
	ID        string `json:"id,omitempty"`
	Email     string `json:"email"`
	Name      string `json:"name,omitempty"`
	PIN       string `json:"pin,omitempty"`
	CreatedAt string `json:"created_at,omitempty"`
}

// RowID returns the opaque row identifier.
func (p ParentProfile) RowID() string { return p.ID }

// NaturalKey is the email address.
func (p ParentProfile) NaturalKey() string { return p.Email }

// Validate checks required ParentProfile fields.
func (p ParentProfile) Validate() error {
	if p.Email == "" {
		return fmt.Errorf("email is required")
	}
	return nil
}
