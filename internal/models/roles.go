package models

// Role names as issued by the authoritative server.
const (
	RoleCustomer = "customer"
	RoleVendor   = "vendor"
	RoleAdmin    = "admin"
)

// ValidRole reports whether role is one of the declared roles.
func ValidRole(role string) bool {
	switch role {
	case RoleCustomer, RoleVendor, RoleAdmin:
		return true
	}
	return false
}
