package enums

import "testing"

func TestParseRole(t *testing.T) {
	for _, raw := range []string{"support", "license", "accounts"} {
		role, err := ParseRole(raw)
		if err != nil {
			t.Fatalf("ParseRole(%q): %v", raw, err)
		}
		if !role.IsValid() {
			t.Fatalf("expected %q valid", raw)
		}
	}
	if _, err := ParseRole("admin"); err == nil {
		t.Fatal("expected error for unknown role")
	}
	if Role("Support").IsValid() {
		t.Fatal("roles are case sensitive")
	}
}

func TestDeriveLicenseState(t *testing.T) {
	cases := []struct {
		given, rejected bool
		want            LicenseState
	}{
		{false, false, LicenseStatePending},
		{true, false, LicenseStateGranted},
		{false, true, LicenseStateRejected},
		{true, true, LicenseStateConflicted},
	}
	for _, tc := range cases {
		if got := DeriveLicenseState(tc.given, tc.rejected); got != tc.want {
			t.Fatalf("given=%v rejected=%v: expected %s got %s", tc.given, tc.rejected, tc.want, got)
		}
	}
}

func TestDeriveAccountsState(t *testing.T) {
	yes, no := true, false
	if got := DeriveAccountsState(nil); got != AccountsStateUnset {
		t.Fatalf("expected unset, got %s", got)
	}
	if got := DeriveAccountsState(&yes); got != AccountsStateApproved {
		t.Fatalf("expected approved, got %s", got)
	}
	if got := DeriveAccountsState(&no); got != AccountsStateDenied {
		t.Fatalf("expected denied, got %s", got)
	}
}
