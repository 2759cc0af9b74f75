package rbac

// Role names carried in access tokens.
const (
	// RoleOwner manages their own campaigns end to end.
	RoleOwner = "owner"
	// RoleAgent may dispatch and cancel calls but not change campaign setup.
	RoleAgent = "agent"
	// RoleAnalyst is read-only.
	RoleAnalyst = "analyst"
	// RoleSuperAdmin bypasses role and ownership checks.
	RoleSuperAdmin = "super_admin"
)

var (
	// ReadRoles may view campaigns, calls, summaries and stats.
	ReadRoles = []string{RoleOwner, RoleAgent, RoleAnalyst}
	// OperateRoles may place, dispatch, retry and cancel calls.
	OperateRoles = []string{RoleOwner, RoleAgent}
	// ManageRoles may create campaigns and change their lifecycle.
	ManageRoles = []string{RoleOwner}
)

func IsSuperAdmin(role string) bool { return role == RoleSuperAdmin }

func IsKnownRole(role string) bool {
	switch role {
	case RoleOwner, RoleAgent, RoleAnalyst, RoleSuperAdmin:
		return true
	}
	return false
}
