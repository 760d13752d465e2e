package rbac

// Role enumerates the actor types known to the platform. Roles are assigned
// at user creation and never change during a session.
type Role string

const (
	// RoleACR is the central compliance office with final approval authority.
	RoleACR Role = "ACR"
	// RoleGestor is the unit manager, first-line approver.
	RoleGestor Role = "GESTOR"
	// RoleResponsavel is a unit contributor who submits evidence.
	RoleResponsavel Role = "RESPONSAVEL"
	// RoleUsuario is a regular unit user, equivalent to RoleResponsavel.
	RoleUsuario Role = "USUARIO"
	// RoleConsultor has read-only access.
	RoleConsultor Role = "CONSULTOR"
)

// Valid reports whether the role is one of the known enumerations.
func (r Role) Valid() bool {
	switch r {
	case RoleACR, RoleGestor, RoleResponsavel, RoleUsuario, RoleConsultor:
		return true
	}
	return false
}

// Resources guarded by the permission matrix.
const (
	ResourceObligations = "obligations"
	ResourceNorms       = "norms"
	ResourceUnits       = "units"
	ResourceUsers       = "users"
)

// Actions recognised by the permission matrix.
const (
	ActionCreate  = "create"
	ActionRead    = "read"
	ActionUpdate  = "update"
	ActionDelete  = "delete"
	ActionApprove = "approve"
	ActionExport  = "export"
)

// Permission grants a set of actions on one resource.
type Permission struct {
	Resource string
	Actions  []string
}
