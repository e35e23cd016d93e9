package staff

import (
	"fmt"
	"strings"

	apperrors "github.com/louisbranch/shopkeeper/internal/platform/errors"
)

// Role is the closed set of staff roles.
//
// The zero value is RoleNone, which is what client sessions carry.
type Role int

const (
	RoleNone Role = iota
	RoleAdmin
	RoleManager
)

// ErrUnknownRole indicates a role name outside the closed set.
var ErrUnknownRole = apperrors.New(apperrors.CodeInvalidArgument, "unknown staff role")

// String returns the wire name of the role.
func (r Role) String() string {
	switch r {
	case RoleNone:
		return ""
	case RoleAdmin:
		return "ADMIN"
	case RoleManager:
		return "MANAGER"
	default:
		return fmt.Sprintf("Role(%d)", int(r))
	}
}

// Valid reports whether r is a staff role. RoleNone is not.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleManager:
		return true
	default:
		return false
	}
}

// ParseRole parses a wire role name. The empty string parses to RoleNone.
func ParseRole(value string) (Role, error) {
	switch strings.ToUpper(strings.TrimSpace(value)) {
	case "":
		return RoleNone, nil
	case "ADMIN":
		return RoleAdmin, nil
	case "MANAGER":
		return RoleManager, nil
	default:
		return RoleNone, apperrors.WithMetadata(apperrors.CodeInvalidArgument, "unknown staff role", map[string]string{
			"role": value,
		})
	}
}

// MarshalText implements encoding.TextMarshaler.
func (r Role) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *Role) UnmarshalText(text []byte) error {
	parsed, err := ParseRole(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}
