package domain

import "errors"

type Role string

const (
	RoleHost  Role = "host"
	RoleGuest Role = "guest"
)

var ErrInvalidRole = errors.New("invalid role")

// ParseRole maps wire values to a Role; empty means guest.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case "":
		return RoleGuest, nil
	case RoleHost, RoleGuest:
		return Role(s), nil
	}
	return "", ErrInvalidRole
}

// Participant represents one connection's membership in a room.
// No transport or lifecycle logic here.
type Participant struct {
	ConnID ConnID `json:"connectionId"`
	Name   string `json:"name"`
	Role   Role   `json:"role"`
}
