package requests

import (
	"github.com/angelmondragon/licensedesk/pkg/enums"
	pkgerrors "github.com/angelmondragon/licensedesk/pkg/errors"
)

// Operation names a workflow entry point.
type Operation string

const (
	OpCreate        Operation = "create"
	OpList          Operation = "list"
	OpGrant         Operation = "grant"
	OpReject        Operation = "reject"
	OpAccountsCheck Operation = "accounts_check"
	OpFinalize      Operation = "finalize"
)

// requiredRole maps each mutating operation to the one role allowed to run
// it. Operations absent from the table are open to any authenticated role.
var requiredRole = map[Operation]enums.Role{
	OpCreate:        enums.RoleSupport,
	OpGrant:         enums.RoleLicense,
	OpReject:        enums.RoleLicense,
	OpAccountsCheck: enums.RoleAccounts,
	OpFinalize:      enums.RoleSupport,
}

func authorize(actor Actor, op Operation) error {
	if !actor.Role.IsValid() {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	need, gated := requiredRole[op]
	if !gated || actor.Role == need {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeForbidden, "role not permitted for this action").WithDetails(map[string]any{
		"operation":     op,
		"required_role": need,
		"actor_role":    actor.Role,
	})
}
