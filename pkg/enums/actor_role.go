package enums

import "fmt"

// ActorRole represents a platform-level permissions role.
type ActorRole string

const (
	ActorRoleWriter     ActorRole = "writer"
	ActorRoleEditor     ActorRole = "editor"
	ActorRoleSupport    ActorRole = "support"
	ActorRoleAdmin      ActorRole = "admin"
	ActorRoleSuperadmin ActorRole = "superadmin"
)

var validActorRoles = []ActorRole{
	ActorRoleWriter,
	ActorRoleEditor,
	ActorRoleSupport,
	ActorRoleAdmin,
	ActorRoleSuperadmin,
}

// String implements fmt.Stringer.
func (r ActorRole) String() string {
	return string(r)
}

// IsValid reports whether the value is a known ActorRole.
func (r ActorRole) IsValid() bool {
	for _, candidate := range validActorRoles {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParseActorRole converts raw input into an ActorRole.
func ParseActorRole(value string) (ActorRole, error) {
	for _, candidate := range validActorRoles {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid actor role %q", value)
}

// CanIssueFines reports whether the role may impose a fine on an order.
func (r ActorRole) CanIssueFines() bool {
	switch r {
	case ActorRoleSupport, ActorRoleAdmin, ActorRoleSuperadmin:
		return true
	default:
		return false
	}
}

// CanWaiveFines reports whether the role may waive or void fines directly.
func (r ActorRole) CanWaiveFines() bool {
	switch r {
	case ActorRoleAdmin, ActorRoleSuperadmin:
		return true
	default:
		return false
	}
}

// CanReceiveEscalations reports whether an appeal may be escalated to this role.
func (r ActorRole) CanReceiveEscalations() bool {
	switch r {
	case ActorRoleAdmin, ActorRoleSuperadmin:
		return true
	default:
		return false
	}
}

// CanManagePolicies reports whether the role may create or amend fine type configs.
func (r ActorRole) CanManagePolicies() bool {
	switch r {
	case ActorRoleAdmin, ActorRoleSuperadmin:
		return true
	default:
		return false
	}
}

// RoleSet is a deployment-configurable collection of roles allowed to perform
// an action, e.g. reviewing appeals.
type RoleSet map[ActorRole]struct{}

// NewRoleSet builds a RoleSet from the provided roles, skipping invalid ones.
func NewRoleSet(roles ...ActorRole) RoleSet {
	set := make(RoleSet, len(roles))
	for _, role := range roles {
		if role.IsValid() {
			set[role] = struct{}{}
		}
	}
	return set
}

// ParseRoleSet parses a comma-separated role list.
func ParseRoleSet(values []string) (RoleSet, error) {
	set := make(RoleSet, len(values))
	for _, value := range values {
		role, err := ParseActorRole(value)
		if err != nil {
			return nil, err
		}
		set[role] = struct{}{}
	}
	return set, nil
}

// Contains reports whether the role is a member of the set.
func (s RoleSet) Contains(role ActorRole) bool {
	_, ok := s[role]
	return ok
}
