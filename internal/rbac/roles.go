package rbac

// Role names. Keep these stable; they are part of auth/RBAC contracts.
const (
	RoleDriver        = "driver"
	RoleDispatcher    = "dispatcher"
	RoleAnalyst       = "analyst"
	RoleSuperAdmin    = "super_admin"
	RoleFleetOperator = "fleet_operator" // hidden role
)

func IsSuperAdmin(role string) bool { return role == RoleSuperAdmin }

func IsHiddenRole(role string) bool { return role == RoleFleetOperator }
