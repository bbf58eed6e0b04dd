package types

import (
	"encoding/json"
	"unicode"
	"unicode/utf8"
)

// Profile is the user profile returned by the upstream user details endpoint.
// Extra holds every field as received so the cached copy round-trips unchanged.
type Profile struct {
	UserName    string `json:"user_name"`
	Email       string `json:"email"`
	Role        string `json:"role,omitempty"`
	PhoneNumber string `json:"phone_number,omitempty"`

	Raw json.RawMessage `json:"-"`
}

// ParseProfile decodes a raw profile document and keeps the raw bytes.
func ParseProfile(data []byte) (*Profile, error) {
	var p Profile
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, err
	}
	p.Raw = append(json.RawMessage(nil), data...)
	return &p, nil
}

// DisplayName falls back to "User".
func (p *Profile) DisplayName() string {
	if p == nil || p.UserName == "" {
		return "User"
	}
	return p.UserName
}

func (p *Profile) DisplayEmail() string {
	if p == nil {
		return ""
	}
	return p.Email
}

func (p *Profile) DisplayPhone() string {
	if p == nil || p.PhoneNumber == "" {
		return "(Not available)"
	}
	return p.PhoneNumber
}

// DisplayRole capitalises the role, empty when absent.
func (p *Profile) DisplayRole() string {
	if p == nil || p.Role == "" {
		return ""
	}
	r, size := utf8.DecodeRuneInString(p.Role)
	return string(unicode.ToUpper(r)) + p.Role[size:]
}
