package access

import "testing"

func strptr(s string) *string { return &s }

// Cubre las cuatro combinaciones (enabled, privilege).
func TestDecide_Matrix(t *testing.T) {
	cases := []struct {
		name    string
		enabled bool
		priv    Privilege
		want    Status
	}{
		{"off_standard", false, PrivilegeStandard, StatusGranted},
		{"off_admin", false, PrivilegeAdministrator, StatusGranted},
		{"on_standard", true, PrivilegeStandard, StatusBlocked},
		{"on_admin", true, PrivilegeAdministrator, StatusGranted},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			v := Decide(State{Enabled: tc.enabled}, tc.priv)
			if v.Status != tc.want {
				t.Fatalf("Decide(enabled=%v, %s) = %s, want %s", tc.enabled, tc.priv, v.Status, tc.want)
			}
		})
	}
}

func TestDecide_BlockedCarriesOperatorMessage(t *testing.T) {
	s := State{Enabled: true, Message: strptr("Actualizando tasas")}
	v := Decide(s, PrivilegeStandard)
	if v.Status != StatusBlocked {
		t.Fatalf("expected blocked, got %s", v.Status)
	}
	if v.Message != "Actualizando tasas" {
		t.Fatalf("expected operator message, got %q", v.Message)
	}
}

func TestDecide_BlockedFallsBackToDefaultMessage(t *testing.T) {
	for _, msg := range []*string{nil, strptr("")} {
		v := Decide(State{Enabled: true, Message: msg}, PrivilegeStandard)
		if v.Message != DefaultMessage {
			t.Fatalf("expected default message, got %q", v.Message)
		}
	}
}

func TestDecide_GrantedHasNoMessage(t *testing.T) {
	v := Decide(State{Enabled: false, Message: strptr("ignorado")}, PrivilegeStandard)
	if v.Message != "" {
		t.Fatalf("granted verdict should carry no message, got %q", v.Message)
	}
}

func TestUnavailable_IsBlocked(t *testing.T) {
	v := Unavailable()
	if v.Status != StatusBlocked || v.Message != UnavailableMessage {
		t.Fatalf("unexpected unavailable verdict: %+v", v)
	}
}
