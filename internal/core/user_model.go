package core

import "strings"

// Role is the operator's role as carried by the directory and the auth token.
type Role string

const (
	RoleSuperAdmin     Role = "SUPERADMIN"
	RoleOperationHead  Role = "OPERATION_HEAD"
	RoleWarehouseAdmin Role = "WAREHOUSE_ADMIN"
	RoleOperator       Role = "OPERATOR"
)

// ParseRole converts a case-insensitive string into a Role.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToUpper(strings.TrimSpace(s)))
	switch r {
	case RoleSuperAdmin, RoleOperationHead, RoleWarehouseAdmin, RoleOperator:
		return r, nil
	}
	return "", invalid("role", "unknown role %q", s)
}

// CanOverrideAssignment reports whether the role may act on shipments
// assigned to another operator.
func (r Role) CanOverrideAssignment() bool {
	return r == RoleSuperAdmin || r == RoleWarehouseAdmin
}

// Operator is an entry of the external operator directory.
type Operator struct {
	ID          string `json:"id" yaml:"id"`
	Name        string `json:"name" yaml:"name"`
	WarehouseID string `json:"warehouse_id" yaml:"warehouse_id"`
	Role        Role   `json:"role" yaml:"role"`
	IsActive    bool   `json:"is_active" yaml:"is_active"`
}

// Eligible reports whether the operator can receive work from the assignment balancer.
func (o Operator) Eligible() bool {
	return o.IsActive && o.Role == RoleOperator
}

// Actor is the explicit caller context every engine operation receives.
type Actor struct {
	OperatorID  string
	WarehouseID string
	Role        Role
}

// Name is the identity recorded in audit entries.
func (a Actor) Name() string {
	if a.OperatorID == "" {
		return "system"
	}
	return a.OperatorID
}

func (a Actor) validate() error {
	if strings.TrimSpace(a.WarehouseID) == "" {
		return invalid("warehouse", "warehouse is required")
	}
	return nil
}
