package auth

import (
	"fmt"

	"printer-fieldops/internal/model"
)

// Action is a named capability checked by the Gate.
type Action string

const (
	ActionProfileRead          Action = "profile:read"
	ActionDevicesRegister      Action = "devices:register"
	ActionInstallationsRead    Action = "installations:read"
	ActionInstallationsWrite   Action = "installations:write"
	ActionIncidentsWrite       Action = "incidents:write"
	ActionPhotosWrite          Action = "photos:write"
	ActionUsersRead            Action = "users:read"
	ActionUsersCreate          Action = "users:create"
	ActionUsersActivate        Action = "users:activate"
	ActionUsersForcePassword   Action = "users:force_password"
	ActionUsersImport          Action = "users:import"
	ActionUsersChangeRole      Action = "users:change_role"
	ActionAuditRead            Action = "audit:read"
	ActionCloudCredentialsRead Action = "cloud_credentials:read"
)

type capabilitySet map[Action]struct{}

func capabilities(actions ...Action) capabilitySet {
	set := make(capabilitySet, len(actions))
	for _, action := range actions {
		set[action] = struct{}{}
	}
	return set
}

func union(sets ...capabilitySet) capabilitySet {
	out := capabilitySet{}
	for _, set := range sets {
		for action := range set {
			out[action] = struct{}{}
		}
	}
	return out
}

var (
	viewerCapabilities = capabilities(
		ActionProfileRead,
		ActionDevicesRegister,
		ActionInstallationsRead,
	)

	adminCapabilities = union(viewerCapabilities, capabilities(
		ActionUsersRead,
		ActionUsersCreate,
		ActionUsersActivate,
		ActionUsersForcePassword,
		ActionUsersImport,
		ActionAuditRead,
	))

	// Role mutation and cloud credentials stay super_admin-only.
	superAdminCapabilities = union(adminCapabilities, capabilities(
		ActionUsersChangeRole,
		ActionCloudCredentialsRead,
	))

	deviceCapabilities = capabilities(
		ActionInstallationsRead,
		ActionInstallationsWrite,
		ActionIncidentsWrite,
		ActionPhotosWrite,
	)
)

var roleCapabilities = map[model.Role]capabilitySet{
	model.RoleViewer:     viewerCapabilities,
	model.RoleAdmin:      adminCapabilities,
	model.RoleSuperAdmin: superAdminCapabilities,
}

// Gate is the single place route and service code asks "may this identity do that".
type Gate struct{}

func NewGate() *Gate {
	return &Gate{}
}

func (g *Gate) Authorize(identity model.Identity, action Action) bool {
	var set capabilitySet
	switch identity.Kind {
	case model.PrincipalDevice:
		set = deviceCapabilities
	case model.PrincipalWebUser:
		set = roleCapabilities[identity.Role]
	}
	_, ok := set[action]
	return ok
}

// Require returns ErrUnauthenticated for an empty identity and ErrForbidden for a denied one.
func (g *Gate) Require(identity *model.Identity, action Action) error {
	if identity == nil || identity.Kind == 0 {
		return model.ErrUnauthenticated
	}
	if !g.Authorize(*identity, action) {
		return fmt.Errorf("%w: %s", model.ErrForbidden, action)
	}
	return nil
}

// CanAssignRole reports whether actor may hand out target; nobody grants above their own tier.
func (g *Gate) CanAssignRole(identity model.Identity, target model.Role) bool {
	if identity.Kind != model.PrincipalWebUser || !target.Valid() {
		return false
	}
	return !target.Outranks(identity.Role)
}

// ActionsFor lists the capabilities of a role; unknown roles get none.
func ActionsFor(role model.Role) []Action {
	set := roleCapabilities[role]
	out := make([]Action, 0, len(set))
	for action := range set {
		out = append(out, action)
	}
	return out
}
