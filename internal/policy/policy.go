// Package policy holds the authorization rules applied uniformly across
// documents, ingestion jobs, and users. Decisions are pure functions of the
// actor and the resource's owner; callers check resource existence first so
// a missing resource reads as not-found rather than forbidden.
package policy

// Role is the coarse permission level attached to a user.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleEditor Role = "editor"
	RoleViewer Role = "viewer"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleEditor, RoleViewer:
		return true
	}
	return false
}

// Actor is the authenticated user performing an operation.
type Actor struct {
	ID   string
	Role Role
}

// IsAdmin reports whether the actor holds the admin role.
func (a Actor) IsAdmin() bool { return a.Role == RoleAdmin }

// Decision is the outcome of a policy check.
type Decision struct {
	Allowed bool
	Reason  string
}

func allow() Decision { return Decision{Allowed: true} }

func deny(reason string) Decision { return Decision{Reason: reason} }

// CanViewDocument decides read access to a document.
func CanViewDocument(actor Actor, ownerID string) Decision {
	if actor.IsAdmin() || actor.ID == ownerID {
		return allow()
	}
	return deny("you can only access your own documents")
}

// CanUpdateDocumentMetadata decides whether the actor may edit a document's
// description and metadata fields.
func CanUpdateDocumentMetadata(actor Actor, ownerID string) Decision {
	if actor.IsAdmin() || actor.ID == ownerID {
		return allow()
	}
	return deny("you can only update your own documents")
}

// CanUpdateDocumentStatus decides whether the actor may set a document's
// status directly. Ownership does not grant this.
func CanUpdateDocumentStatus(actor Actor) Decision {
	if actor.IsAdmin() {
		return allow()
	}
	return deny("only admins can change document status")
}

// CanDeleteDocument decides whether the actor may remove a document and its
// stored file.
func CanDeleteDocument(actor Actor, ownerID string) Decision {
	if actor.IsAdmin() || actor.ID == ownerID {
		return allow()
	}
	return deny("you can only delete your own documents")
}

// CanViewJob decides read access to an ingestion job. Ownership is
// transitive through the job's document.
func CanViewJob(actor Actor, documentOwnerID string) Decision {
	if actor.IsAdmin() || actor.ID == documentOwnerID {
		return allow()
	}
	return deny("you can only access your own ingestion jobs")
}

// CanCreateJob decides whether the actor may start ingestion for a document.
func CanCreateJob(actor Actor, documentOwnerID string) Decision {
	if actor.IsAdmin() || actor.ID == documentOwnerID {
		return allow()
	}
	return deny("you can only ingest your own documents")
}

// CanManageJob decides whether the actor may update or hard-delete a job.
func CanManageJob(actor Actor) Decision {
	if actor.IsAdmin() {
		return allow()
	}
	return deny("only admins can manage ingestion jobs")
}

// CanCancelJob decides whether the actor may cancel a job.
func CanCancelJob(actor Actor, documentOwnerID string) Decision {
	if actor.IsAdmin() || actor.ID == documentOwnerID {
		return allow()
	}
	return deny("you can only cancel your own ingestion jobs")
}

// CanManageUser decides whether the actor may delete a user, toggle their
// active flag, or change their role. Self-targeting is denied even for
// admins.
func CanManageUser(actor Actor, targetID string) Decision {
	if !actor.IsAdmin() {
		return deny("only admins can manage users")
	}
	if actor.ID == targetID {
		return deny("you cannot manage your own account")
	}
	return allow()
}

// CanUpdateUserProfile decides whether the actor may edit a user's profile
// fields (not role or active flag).
func CanUpdateUserProfile(actor Actor, targetID string) Decision {
	if actor.IsAdmin() || actor.ID == targetID {
		return allow()
	}
	return deny("you can only update your own profile")
}

// CanViewUser decides read access to a user record.
func CanViewUser(actor Actor, targetID string) Decision {
	if actor.IsAdmin() || actor.ID == targetID {
		return allow()
	}
	return deny("you can only view your own profile")
}
