package models

// Role is the coarse authorization role resolved by the authentication
// collaborator. The engine only distinguishes owners, reviewers and admins.
type Role string

const (
	RoleUser     Role = "User"
	RoleReviewer Role = "Reviewer"
	RoleAdmin    Role = "Admin"
)

// Actor is the authenticated principal performing an operation. Session
// management lives outside the engine; handlers construct the actor from the
// authentication collaborator's output.
type Actor struct {
	ID   string `json:"id"`
	Role Role   `json:"role"`
}

// IsAdmin reports whether the actor holds elevated privilege.
func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}
