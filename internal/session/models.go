package session

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Session is the persisted authentication state of one browser
type Session struct {
	Token   string
	Role    string // raw value; may fall outside the known role set
	Profile Profile
}

// Profile is the user data returned by the remote API at login
type Profile struct {
	ID               ID     `json:"id"`
	Name             string `json:"name"`
	Email            string `json:"email"`
	OrganizationID   ID     `json:"organization_id,omitempty"`
	OrganizationName string `json:"organization_name,omitempty"`
	IsFirstLogin     bool   `json:"is_first_login,omitempty"`
}

// ID holds an identifier the remote API may send as a JSON number or string
type ID string

// UnmarshalJSON accepts both 42 and "42"
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id must be a string or number: %w", err)
	}
	*id = ID(n.String())
	return nil
}
