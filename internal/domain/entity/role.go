package entity

import (
	"fmt"
	"strings"
)

// Role is the portal an identity belongs to.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleMerchant Role = "merchant"
	RoleAdmin    Role = "admin"
)

// MerchantIDFloor is the first identifier the backend allocates to merchants.
// Customers and admins are always numbered below it.
const MerchantIDFloor int64 = 1_000_000

// AllRoles lists the roles in the order persisted identities are probed.
var AllRoles = []Role{RoleCustomer, RoleMerchant, RoleAdmin}

func (r Role) Valid() bool {
	switch r {
	case RoleCustomer, RoleMerchant, RoleAdmin:
		return true
	}
	return false
}

func (r Role) String() string {
	return string(r)
}

// PortalPath is the route prefix the web client renders this role under.
func (r Role) PortalPath() string {
	switch r {
	case RoleCustomer:
		return "/user"
	case RoleMerchant:
		return "/merchant"
	case RoleAdmin:
		return "/admin"
	}
	return "/"
}

func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "customer", "user":
		return RoleCustomer, nil
	case "merchant":
		return RoleMerchant, nil
	case "admin":
		return RoleAdmin, nil
	}
	return "", fmt.Errorf("unknown role %q", s)
}

// IsMerchantID classifies a bare participant ID using the backend's ID
// allocation ranges.
func IsMerchantID(id int64) bool {
	return id >= MerchantIDFloor
}

// RoleFromPath maps a navigation path to the role whose portal renders it.
// The root path is the acknowledged default and maps to the customer portal.
// Any other path outside the three portals resolves to "".
func RoleFromPath(path string) Role {
	switch {
	case hasSegmentPrefix(path, "/user"):
		return RoleCustomer
	case hasSegmentPrefix(path, "/merchant"):
		return RoleMerchant
	case hasSegmentPrefix(path, "/admin"):
		return RoleAdmin
	case IsDefaultContext(path):
		return RoleCustomer
	}
	return ""
}

// IsDefaultContext reports whether path is the root context, where a session
// may be recovered for any role.
func IsDefaultContext(path string) bool {
	return path == "" || path == "/"
}

func hasSegmentPrefix(path, prefix string) bool {
	if !strings.HasPrefix(path, prefix) {
		return false
	}
	rest := path[len(prefix):]
	return rest == "" || rest[0] == '/' || rest[0] == '?'
}
