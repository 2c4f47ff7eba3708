package rbac

import "testing"

func TestHasPermission(t *testing.T) {
	tests := []struct {
		role string
		perm string
		want bool
	}{
		{RoleAdmin, PermCreditTokens, true},
		{RoleAdmin, PermReadUsers, true},
		{RoleViewer, PermReadLedger, true},
		{RoleViewer, PermCreditTokens, false},
		{RoleViewer, PermClosePaymentReq, false},
		{"root", PermReadUsers, false},
	}
	for _, tt := range tests {
		if got := HasPermission(tt.role, tt.perm); got != tt.want {
			t.Errorf("HasPermission(%q, %q) = %v, want %v", tt.role, tt.perm, got, tt.want)
		}
	}
}

func TestBalanceMutationsAreAdminOnly(t *testing.T) {
	for role, perms := range RolePermissions {
		for _, p := range perms {
			if IsBalanceMutation(p) && role != RoleAdmin {
				t.Errorf("role %q holds balance mutation %q", role, p)
			}
		}
	}
	if !IsKnownRole(RoleViewer) || IsKnownRole("owner") {
		t.Error("IsKnownRole mismatch")
	}
}
