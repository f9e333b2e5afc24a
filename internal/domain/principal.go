package domain

// Role identifies the kind of principal attached to a request.
type Role string

// Principal roles. A request carries at most one of user or admin.
const (
	RoleAnonymous Role = "anonymous"
	RoleUser      Role = "user"
	RoleAdmin     Role = "admin"
)

// Principal is the authenticated identity attached to a request, or the
// anonymous principal when no valid session is presented. Admin is treated
// as a superset of user permissions in all paper operations.
type Principal struct {
	Role  Role
	ID    int64
	Name  string
	Email string
}

// Anonymous returns the principal for unauthenticated requests.
func Anonymous() Principal {
	return Principal{Role: RoleAnonymous}
}

// IsAnonymous reports whether no identity is attached.
func (p Principal) IsAnonymous() bool {
	return p.Role == RoleAnonymous || p.Role == ""
}

// IsUser reports whether the principal is a regular user.
func (p Principal) IsUser() bool {
	return p.Role == RoleUser
}

// IsAdmin reports whether the principal is an admin.
func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}

// Authenticated reports whether any identity is attached.
func (p Principal) Authenticated() bool {
	return !p.IsAnonymous()
}

// Owns reports whether the principal is the user owning the given user id.
// Admins do not "own" papers; their access is granted by role checks.
func (p Principal) Owns(userID int64) bool {
	return p.IsUser() && p.ID == userID
}
