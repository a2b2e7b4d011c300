package authz_test

import (
	"testing"

	"taskdesk/internal/authz"
	"taskdesk/internal/domain"
)

func TestHasPermissionMatchesRankOrder(t *testing.T) {
	roles := authz.Roles()
	for _, a := range roles {
		for _, b := range roles {
			want := authz.Rank(a) >= authz.Rank(b)
			if got := authz.HasPermission(a, b); got != want {
				t.Errorf("HasPermission(%s,%s)=%v want %v", a, b, got, want)
			}
		}
	}
}

func TestAssignableRolesExcludesOwnRank(t *testing.T) {
	assignable := authz.AssignableRoles(domain.RoleSuperadmin)
	if len(assignable) != 5 {
		t.Fatalf("expected 5 assignable roles for superadmin, got %d", len(assignable))
	}
	for _, r := range assignable {
		if r == domain.RoleSuperadmin {
			t.Fatalf("superadmin must not be assignable by superadmin")
		}
	}
	if got := authz.AssignableRoles(domain.RoleEmployee); len(got) != 0 {
		t.Fatalf("employee should assign nothing, got %v", got)
	}
}

func TestVisibleRolesIncludesSelfAndBelow(t *testing.T) {
	visible := authz.VisibleRoles(domain.RoleManager)
	want := []domain.Role{domain.RoleManager, domain.RoleIncharge, domain.RoleEmployee}
	if len(visible) != len(want) {
		t.Fatalf("visible roles for manager: got %v", visible)
	}
	for i, r := range want {
		if visible[i] != r {
			t.Errorf("visible[%d]=%s want %s", i, visible[i], r)
		}
	}
}

func TestCanModifyUserRoleStrict(t *testing.T) {
	cases := []struct {
		actor, target domain.Role
		want          bool
	}{
		{domain.RoleIncharge, domain.RoleManager, false},
		{domain.RoleDirector, domain.RoleManager, true},
		{domain.RoleSuperadmin, domain.RoleSuperadmin, false},
		{domain.RoleManager, domain.RoleManager, false},
		{domain.RoleSuperadmin, domain.RoleEmployee, true},
	}
	for _, c := range cases {
		if got := authz.CanModifyUserRole(c.actor, c.target); got != c.want {
			t.Errorf("CanModifyUserRole(%s,%s)=%v want %v", c.actor, c.target, got, c.want)
		}
	}
}

func TestRevertOverridePattern(t *testing.T) {
	if authz.CanRevertTask(domain.RoleEmployee, false) {
		t.Fatalf("employee without grant must not revert")
	}
	if !authz.CanRevertTask(domain.RoleSuperadmin, false) {
		t.Fatalf("superadmin reverts unconditionally")
	}
	if !authz.CanRevertTask(domain.RoleEmployee, true) {
		t.Fatalf("explicit grant should allow revert")
	}
	if authz.CanAcknowledgeTask(domain.RoleDirector, false) {
		t.Fatalf("director without approval grant must not acknowledge")
	}
	if !authz.CanAcknowledgeTask(domain.RoleSuperadmin, false) {
		t.Fatalf("superadmin acknowledges unconditionally")
	}
}

func TestCloseEditCeiling(t *testing.T) {
	for _, r := range authz.Roles() {
		want := r == domain.RoleSuperadmin || r == domain.RoleDirector
		if got := authz.CanCloseTask(r); got != want {
			t.Errorf("CanCloseTask(%s)=%v want %v", r, got, want)
		}
		if got := authz.CanEditTask(r); got != want {
			t.Errorf("CanEditTask(%s)=%v want %v", r, got, want)
		}
	}
}

func TestSuperadminOnlyGates(t *testing.T) {
	for _, r := range authz.Roles() {
		want := r == domain.RoleSuperadmin
		if got := authz.CanAccessDatabase(r); got != want {
			t.Errorf("CanAccessDatabase(%s)=%v want %v", r, got, want)
		}
		if got := authz.CanManageUsers(r); got != want {
			t.Errorf("CanManageUsers(%s)=%v want %v", r, got, want)
		}
	}
}

func TestCapabilitySetRoundTrip(t *testing.T) {
	set, err := authz.NewCapabilitySet([]string{"revert_completions", "create_tasks"})
	if err != nil {
		t.Fatalf("new set: %v", err)
	}
	if !set.Has(authz.CapCreateTasks) || !set.Has(authz.CapRevertCompletions) {
		t.Fatalf("missing members: %v", set.Names())
	}
	if set.Has(authz.CapApproveCompletions) {
		t.Fatalf("unexpected member")
	}
	names := set.Names()
	if len(names) != 2 || names[0] != "create_tasks" {
		t.Fatalf("names not sorted: %v", names)
	}
	if _, err := authz.NewCapabilitySet([]string{"fly"}); err == nil {
		t.Fatalf("expected unknown capability error")
	}
}
