package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Role is the closed set of principal roles.
type Role string

const (
	RoleAdmin Role = "ADMIN"
	RoleUser  Role = "USER"
)

// ParseRole accepts ADMIN or USER in any letter case.
func ParseRole(s string) (Role, error) {
	switch Role(strings.ToUpper(strings.TrimSpace(s))) {
	case RoleAdmin:
		return RoleAdmin, nil
	case RoleUser:
		return RoleUser, nil
	default:
		return "", fmt.Errorf("unknown role %q", s)
	}
}

// Valid reports whether r is a member of the enumeration.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleUser
}

// UnmarshalJSON rejects values outside the enumeration so that unknown roles
// never get past request or token decoding.
func (r *Role) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseRole(raw)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}
