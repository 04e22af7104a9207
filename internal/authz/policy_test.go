package authz

import (
	"net/http"
	"reflect"
	"testing"

	"directory-admin-service/internal/domain"
)

func regularUser() *domain.User {
	return &domain.User{ID: "u-1", IsActive: true}
}

func staffUser() *domain.User {
	return &domain.User{ID: "u-staff", IsActive: true, IsStaffuser: true}
}

func adminUser() *domain.User {
	return &domain.User{ID: "u-admin", IsActive: true, IsAdmin: true}
}

func superUser() *domain.User {
	return &domain.User{ID: "u-super", IsActive: true, IsSuperuser: true}
}

func TestCheckLevel(t *testing.T) {
	tests := []struct {
		name       string
		user       *domain.User
		level      AccessLevel
		wantReason Reason
	}{
		{"public allows nil user", nil, Public, ""},
		{"authenticated rejects nil user", nil, Authenticated, ReasonAuthenticationRequired},
		{"authenticated allows regular user", regularUser(), Authenticated, ""},
		{"staff rejects regular user", regularUser(), Staff, ReasonStaffRequired},
		{"staff allows staff user", staffUser(), Staff, ""},
		{"staff allows admin", adminUser(), Staff, ""},
		{"staff allows superuser", superUser(), Staff, ""},
		{"admin rejects staff", staffUser(), Admin, ReasonAdminRequired},
		{"admin allows admin", adminUser(), Admin, ""},
		{"admin allows superuser", superUser(), Admin, ""},
		{"superuser rejects admin", adminUser(), Superuser, ReasonSuperuserRequired},
		{"superuser allows superuser", superUser(), Superuser, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			denial := CheckLevel(tt.user, tt.level)
			if tt.wantReason == "" {
				if denial != nil {
					t.Fatalf("unexpected denial: %+v", denial)
				}
				return
			}
			if denial == nil {
				t.Fatal("expected denial, got nil")
			}
			if denial.Reason != tt.wantReason {
				t.Fatalf("reason = %s, want %s", denial.Reason, tt.wantReason)
			}
		})
	}
}

func TestCheckPermissionsMissingOrderPreserved(t *testing.T) {
	user := regularUser()
	held := []string{"b"}
	denial := CheckPermissions(user, held, []string{"c", "a", "b"})
	if denial == nil {
		t.Fatal("expected denial")
	}
	if denial.Reason != ReasonPermissionMissing {
		t.Fatalf("reason = %s", denial.Reason)
	}
	want := []string{"c", "a"}
	if !reflect.DeepEqual(denial.MissingPermissions, want) {
		t.Fatalf("missing = %v, want %v", denial.MissingPermissions, want)
	}
	if denial.Detail != "Missing required permissions: c, a" {
		t.Fatalf("detail = %q", denial.Detail)
	}
}

func TestCheckPermissionsSuperuserBypass(t *testing.T) {
	if denial := CheckPermissions(superUser(), nil, []string{"anything"}); denial != nil {
		t.Fatalf("superuser should bypass permission checks, got %+v", denial)
	}
}

func TestCheckPermissionsAllHeld(t *testing.T) {
	if denial := CheckPermissions(regularUser(), []string{"a", "b"}, []string{"a", "b"}); denial != nil {
		t.Fatalf("unexpected denial: %+v", denial)
	}
}

func TestDenialStatusMapping(t *testing.T) {
	tests := []struct {
		reason Reason
		status int
	}{
		{ReasonAuthenticationRequired, http.StatusUnauthorized},
		{ReasonTokenNotFound, http.StatusUnauthorized},
		{ReasonTokenInactive, http.StatusUnauthorized},
		{ReasonTokenExpired, http.StatusUnauthorized},
		{ReasonRefreshExpired, http.StatusUnauthorized},
		{ReasonUserNotFound, http.StatusUnauthorized},
		{ReasonUserInactive, http.StatusUnauthorized},
		{ReasonAdminRequired, http.StatusForbidden},
		{ReasonSuperuserRequired, http.StatusForbidden},
		{ReasonStaffRequired, http.StatusForbidden},
		{ReasonPermissionMissing, http.StatusForbidden},
		{ReasonOwnershipRequired, http.StatusForbidden},
		{ReasonAccessDenied, http.StatusForbidden},
	}
	for _, tt := range tests {
		if got := Deny(tt.reason).Status; got != tt.status {
			t.Errorf("Deny(%s).Status = %d, want %d", tt.reason, got, tt.status)
		}
	}
}

func TestPolicyOwner(t *testing.T) {
	owner := regularUser()
	other := &domain.User{ID: "u-2", IsActive: true}

	p := RequireOwner()
	if d := p.Evaluate(Input{User: owner, OwnerID: owner.ID}); d != nil {
		t.Fatalf("owner denied: %+v", d)
	}
	if d := p.Evaluate(Input{User: other, OwnerID: owner.ID}); d == nil || d.Reason != ReasonOwnershipRequired {
		t.Fatalf("non-owner not denied correctly: %+v", d)
	}
	if d := p.Evaluate(Input{User: superUser(), OwnerID: owner.ID}); d != nil {
		t.Fatalf("superuser denied ownership: %+v", d)
	}
	if d := p.Evaluate(Input{User: nil, OwnerID: owner.ID}); d == nil || d.Reason != ReasonAuthenticationRequired {
		t.Fatalf("nil user denial wrong: %+v", d)
	}
	if d := p.Evaluate(Input{User: other, OwnerID: ""}); d == nil || d.Reason != ReasonOwnershipRequired {
		t.Fatalf("empty owner should deny non-superuser: %+v", d)
	}
}

func TestPolicyOwnerOrReadOnly(t *testing.T) {
	owner := regularUser()
	other := &domain.User{ID: "u-2", IsActive: true}
	p := OwnerOrReadOnly()

	for _, method := range []string{http.MethodGet, http.MethodHead, http.MethodOptions} {
		if d := p.Evaluate(Input{User: other, Method: method, OwnerID: owner.ID}); d != nil {
			t.Fatalf("%s should bypass ownership: %+v", method, d)
		}
	}
	for _, method := range []string{http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete} {
		if d := p.Evaluate(Input{User: other, Method: method, OwnerID: owner.ID}); d == nil {
			t.Fatalf("%s by non-owner should be denied", method)
		}
		if d := p.Evaluate(Input{User: owner, Method: method, OwnerID: owner.ID}); d != nil {
			t.Fatalf("%s by owner denied: %+v", method, d)
		}
	}
}

func TestPolicyAndOr(t *testing.T) {
	user := staffUser()

	and := And(RequireLevel(Staff), RequirePermissions("reports.read"))
	if d := and.Evaluate(Input{User: user, Permissions: []string{"reports.read"}}); d != nil {
		t.Fatalf("and should pass: %+v", d)
	}
	if d := and.Evaluate(Input{User: user}); d == nil || d.Reason != ReasonPermissionMissing {
		t.Fatalf("and should fail on missing permission: %+v", d)
	}
	// And short-circuits: the first failing child's denial is returned.
	if d := And(RequireLevel(Superuser), RequirePermissions("x")).Evaluate(Input{User: user}); d == nil || d.Reason != ReasonSuperuserRequired {
		t.Fatalf("and first denial not returned: %+v", d)
	}

	or := Or(RequireLevel(Superuser), RequirePermissions("reports.read"))
	if d := or.Evaluate(Input{User: user, Permissions: []string{"reports.read"}}); d != nil {
		t.Fatalf("or should pass via second branch: %+v", d)
	}
	// Or returns the first branch's denial when every branch denies.
	if d := or.Evaluate(Input{User: user}); d == nil || d.Reason != ReasonSuperuserRequired {
		t.Fatalf("or first denial not returned: %+v", d)
	}
}

func TestPolicyAllowDenyLeaves(t *testing.T) {
	if d := AllowAny().Evaluate(Input{}); d != nil {
		t.Fatalf("AllowAny denied: %+v", d)
	}
	if d := DenyAll().Evaluate(Input{User: superUser()}); d == nil || d.Reason != ReasonAccessDenied {
		t.Fatalf("DenyAll did not deny: %+v", d)
	}
}
