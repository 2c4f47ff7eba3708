package rbac

// Role constants
const (
	RoleAdmin  = "admin"
	RoleViewer = "viewer"
)

// Permission constants
const (
	PermReadUsers       = "read_users"
	PermReadLedger      = "read_ledger"
	PermCreditTokens    = "credit_tokens"
	PermClosePaymentReq = "close_payment_request"
	PermWatchEvents     = "watch_events"
)

// RolePermissions defines what each operator role can do.
var RolePermissions = map[string][]string{
	RoleAdmin: {
		PermReadUsers, PermReadLedger, PermWatchEvents,
		PermCreditTokens, PermClosePaymentReq,
	},
	RoleViewer: {
		PermReadUsers, PermReadLedger, PermWatchEvents,
		// Viewer CANNOT: PermCreditTokens, PermClosePaymentReq
	},
}

// HasPermission checks if a role has a specific permission.
func HasPermission(role, permission string) bool {
	perms, ok := RolePermissions[role]
	if !ok {
		return false
	}
	for _, p := range perms {
		if p == permission {
			return true
		}
	}
	return false
}

// IsKnownRole reports whether role is one tokens may be issued for.
func IsKnownRole(role string) bool {
	_, ok := RolePermissions[role]
	return ok
}

// IsBalanceMutation checks if permission changes user balances or markers (admin-only).
func IsBalanceMutation(permission string) bool {
	return permission == PermCreditTokens || permission == PermClosePaymentReq
}
