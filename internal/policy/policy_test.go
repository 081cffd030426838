package policy

import "testing"

var (
	admin  = Actor{ID: "admin-1", Role: RoleAdmin}
	editor = Actor{ID: "editor-1", Role: RoleEditor}
	viewer = Actor{ID: "viewer-1", Role: RoleViewer}
)

func TestCanViewDocument(t *testing.T) {
	tests := []struct {
		name    string
		actor   Actor
		ownerID string
		want    bool
	}{
		{"admin sees any document", admin, "editor-1", true},
		{"owner sees own document", editor, "editor-1", true},
		{"viewer denied on foreign document", viewer, "editor-1", false},
		{"editor denied on foreign document", editor, "viewer-1", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CanViewDocument(tt.actor, tt.ownerID)
			if got.Allowed != tt.want {
				t.Fatalf("CanViewDocument(%v, %q) = %v, want %v", tt.actor, tt.ownerID, got.Allowed, tt.want)
			}
			if !got.Allowed && got.Reason == "" {
				t.Fatalf("denial must carry a reason")
			}
		})
	}
}

func TestCanUpdateDocumentStatusRequiresAdmin(t *testing.T) {
	if !CanUpdateDocumentStatus(admin).Allowed {
		t.Fatalf("admin should be allowed to set status")
	}
	// Ownership does not matter for status changes.
	if CanUpdateDocumentStatus(editor).Allowed {
		t.Fatalf("editor must not set status even on own document")
	}
	if CanUpdateDocumentStatus(viewer).Allowed {
		t.Fatalf("viewer must not set status")
	}
}

func TestCanManageJobAdminOnly(t *testing.T) {
	if !CanManageJob(admin).Allowed {
		t.Fatalf("admin should manage jobs")
	}
	for _, actor := range []Actor{editor, viewer} {
		if CanManageJob(actor).Allowed {
			t.Fatalf("%s must not manage jobs", actor.Role)
		}
	}
}

func TestCanCancelJob(t *testing.T) {
	if !CanCancelJob(admin, "editor-1").Allowed {
		t.Fatalf("admin should cancel any job")
	}
	if !CanCancelJob(editor, "editor-1").Allowed {
		t.Fatalf("owner should cancel own job")
	}
	if CanCancelJob(viewer, "editor-1").Allowed {
		t.Fatalf("non-owner must not cancel a foreign job")
	}
}

func TestCanManageUserNeverSelf(t *testing.T) {
	if !CanManageUser(admin, "editor-1").Allowed {
		t.Fatalf("admin should manage other users")
	}
	got := CanManageUser(admin, admin.ID)
	if got.Allowed {
		t.Fatalf("admin must not manage own account")
	}
	if got.Reason == "" {
		t.Fatalf("self-management denial must carry a reason")
	}
	if CanManageUser(editor, "viewer-1").Allowed {
		t.Fatalf("non-admin must not manage users")
	}
}

func TestCanUpdateUserProfile(t *testing.T) {
	if !CanUpdateUserProfile(editor, editor.ID).Allowed {
		t.Fatalf("user should update own profile")
	}
	if !CanUpdateUserProfile(admin, "viewer-1").Allowed {
		t.Fatalf("admin should update any profile")
	}
	if CanUpdateUserProfile(editor, "viewer-1").Allowed {
		t.Fatalf("user must not update another user's profile")
	}
}

func TestRoleValid(t *testing.T) {
	for _, r := range []Role{RoleAdmin, RoleEditor, RoleViewer} {
		if !r.Valid() {
			t.Fatalf("%s should be valid", r)
		}
	}
	if Role("owner").Valid() {
		t.Fatalf("unknown role should be invalid")
	}
}
