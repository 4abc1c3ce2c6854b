package authorization

import (
	"context"
	"errors"
	"testing"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setupAuthz(t *testing.T) Service {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	sqlDB, _ := conn.DB()
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	enforcer, err := NewEnforcer(conn)
	if err != nil {
		t.Fatalf("enforcer: %v", err)
	}
	// a second load against the same table must not duplicate policies
	if _, err := NewEnforcer(conn); err != nil {
		t.Fatalf("reload enforcer: %v", err)
	}
	return NewService(Params{Log: zap.NewNop(), Enforcer: enforcer})
}

func TestAuthorizeFollowsRoleOrdering(t *testing.T) {
	svc := setupAuthz(t)
	ctx := context.Background()

	cases := []struct {
		role    Role
		min     Role
		allowed bool
	}{
		{RoleLecture, RoleLecture, true},
		{RoleLecture, RoleUser, false},
		{RoleLecture, RoleAdmin, false},
		{RoleUser, RoleLecture, true},
		{RoleUser, RoleUser, true},
		{RoleUser, RoleAdmin, false},
		{RoleAdmin, RoleLecture, true},
		{RoleAdmin, RoleUser, true},
		{RoleAdmin, RoleAdmin, true},
		{Role("guest"), RoleLecture, false},
	}
	for _, tc := range cases {
		err := svc.Authorize(ctx, tc.role, tc.min)
		if tc.allowed && err != nil {
			t.Fatalf("%s >= %s: expected allowed, got %v", tc.role, tc.min, err)
		}
		if !tc.allowed && !errors.Is(err, ErrForbidden) {
			t.Fatalf("%s >= %s: expected forbidden, got %v", tc.role, tc.min, err)
		}
		if got := tc.role.AtLeast(tc.min); got != tc.allowed {
			t.Fatalf("%s.AtLeast(%s) = %v", tc.role, tc.min, got)
		}
	}
}

func TestParseRole(t *testing.T) {
	if role, ok := ParseRole(" Admin "); !ok || role != RoleAdmin {
		t.Fatalf("expected admin, got %q %v", role, ok)
	}
	if _, ok := ParseRole("owner"); ok {
		t.Fatalf("owner is not a role")
	}
	if Max(RoleUser, RoleLecture) != RoleUser || Max(RoleLecture, RoleAdmin) != RoleAdmin {
		t.Fatalf("unexpected max")
	}
}
