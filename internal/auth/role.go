package auth

// Role is an ordered permission tier. Higher roles hold every permission of
// the roles below them.
type Role int

const (
	RoleGuest Role = iota
	RoleUser
	RoleAdmin
)

// String returns the storage form of the role.
func (r Role) String() string {
	switch r {
	case RoleAdmin:
		return "admin"
	case RoleUser:
		return "user"
	default:
		return "guest"
	}
}

// ParseRole maps a stored role string to a Role. Unknown strings map to
// guest so a corrupted record can never grant permissions.
func ParseRole(s string) Role {
	switch s {
	case "admin":
		return RoleAdmin
	case "user":
		return RoleUser
	default:
		return RoleGuest
	}
}

// AtLeast reports whether the role meets a minimum tier.
func (r Role) AtLeast(min Role) bool {
	return r >= min
}
