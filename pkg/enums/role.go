package enums

import "fmt"

// Role is the position a hierarchy node holds in the reseller network.
type Role string

const (
	RoleOwner       Role = "Owner"
	RoleAdmin       Role = "Admin"
	RoleMitraCabang Role = "MitraCabang"
	RoleCabang      Role = "Cabang"
	RoleLink        Role = "Link"
)

var validRoles = []Role{
	RoleOwner,
	RoleAdmin,
	RoleMitraCabang,
	RoleCabang,
	RoleLink,
}

// IsValid reports whether the value matches a known role.
func (r Role) IsValid() bool {
	for _, candidate := range validRoles {
		if candidate == r {
			return true
		}
	}
	return false
}

// IsSellerTier reports whether the role sits in the sales chain
// (MitraCabang, Cabang or Link) and can therefore be attributed sales.
func (r Role) IsSellerTier() bool {
	return r == RoleMitraCabang || r == RoleCabang || r == RoleLink
}

// IsStaff reports whether the role administers the network.
func (r Role) IsStaff() bool {
	return r == RoleOwner || r == RoleAdmin
}

// ExpectedParent returns the role a node of r must hang under, if any.
func (r Role) ExpectedParent() (Role, bool) {
	switch r {
	case RoleCabang:
		return RoleMitraCabang, true
	case RoleLink:
		return RoleCabang, true
	default:
		return "", false
	}
}

// ParseRole converts raw input into Role.
func ParseRole(value string) (Role, error) {
	for _, candidate := range validRoles {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid role %q", value)
}
