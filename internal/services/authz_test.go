package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/teamvault/backend/internal/models"
)

func TestCanDelete(t *testing.T) {
	db := setupTestDB(t)
	gate := NewAuthzService(db)
	ctx := context.Background()

	owner := newUser(t, db, "owner@example.com")
	project := newProject(t, db, owner)

	t.Run("uploader is allowed without membership", func(t *testing.T) {
		uploader := newUser(t, db, "uploader@example.com")
		decision := gate.CanDelete(ctx, uploader.ID, project.ID, uploader.ID)
		if !decision.Allowed || decision.Reason != "uploader" {
			t.Fatalf("expected uploader allow, got %+v", decision)
		}
	})

	t.Run("project owner is allowed", func(t *testing.T) {
		someone := newUser(t, db, "someone@example.com")
		decision := gate.CanDelete(ctx, owner.ID, project.ID, someone.ID)
		if !decision.Allowed || decision.Reason != "project-owner" {
			t.Fatalf("expected project-owner allow, got %+v", decision)
		}
	})

	t.Run("elevated role is allowed", func(t *testing.T) {
		admin := newUser(t, db, "admin@example.com")
		mustCreate(t, db, &models.Membership{UserID: admin.ID, ProjectID: project.ID, Role: "Admin"})

		decision := gate.CanDelete(ctx, admin.ID, project.ID, owner.ID)
		if !decision.Allowed || decision.Reason != "elevated-role" {
			t.Fatalf("expected elevated-role allow, got %+v", decision)
		}
	})

	t.Run("delete capability is allowed", func(t *testing.T) {
		editor := newUser(t, db, "editor@example.com")
		mustCreate(t, db, &models.Membership{UserID: editor.ID, ProjectID: project.ID, Role: models.MembershipRoleMember, Permissions: `["read","delete"]`})

		decision := gate.CanDelete(ctx, editor.ID, project.ID, owner.ID)
		if !decision.Allowed || decision.Reason != "delete-capability" {
			t.Fatalf("expected delete-capability allow, got %+v", decision)
		}
	})

	t.Run("member without capability is denied", func(t *testing.T) {
		viewer := newUser(t, db, "viewer@example.com")
		mustCreate(t, db, &models.Membership{UserID: viewer.ID, ProjectID: project.ID, Role: models.MembershipRoleViewer, Permissions: `["read"]`})

		decision := gate.CanDelete(ctx, viewer.ID, project.ID, owner.ID)
		if decision.Allowed || decision.Reason != ReasonInsufficientPermissions {
			t.Fatalf("expected insufficient-permissions denial, got %+v", decision)
		}
	})

	t.Run("non-member is denied", func(t *testing.T) {
		stranger := newUser(t, db, "stranger@example.com")
		decision := gate.CanDelete(ctx, stranger.ID, project.ID, owner.ID)
		if decision.Allowed || decision.Reason != ReasonNotAMember {
			t.Fatalf("expected not-a-member denial, got %+v", decision)
		}
	})

	t.Run("unknown project is denied", func(t *testing.T) {
		stranger := newUser(t, db, "lost@example.com")
		decision := gate.CanDelete(ctx, stranger.ID, uuid.New(), owner.ID)
		if decision.Allowed {
			t.Fatalf("expected denial for unknown project, got %+v", decision)
		}
	})
}

func TestCapabilities(t *testing.T) {
	cases := []struct {
		name      string
		raw       string
		hasDelete bool
	}{
		{"json array", `["read", "delete"]`, true},
		{"json array without delete", `["read", "write"]`, false},
		{"json object with booleans", `{"read": true, "delete": true}`, true},
		{"json object delete false", `{"read": true, "delete": false}`, false},
		{"json string", `"delete"`, true},
		{"comma separated", "read,delete", true},
		{"space separated", "read delete", true},
		{"semicolon separated", "read;delete", true},
		{"mixed case", `["DELETE"]`, true},
		{"nested object", `{"files": {"delete": true}}`, true},
		{"empty", "", false},
		{"whitespace only", "   ", false},
		{"bare token", "delete", true},
		{"malformed json falls back to tokens", `delete {extra`, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			caps := Capabilities(tc.raw)
			if caps.Has("delete") != tc.hasDelete {
				t.Fatalf("Capabilities(%q).Has(delete) = %v, want %v", tc.raw, caps.Has("delete"), tc.hasDelete)
			}
		})
	}
}
