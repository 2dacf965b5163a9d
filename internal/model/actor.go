package model

// Roles an actor can carry.
const (
	RoleEmployee = "employee"
	RoleAdmin    = "admin"
)

// Actor is the caller of an operation. It is passed explicitly instead of
// being read from request-global state.
type Actor struct {
	UserID     int64  `json:"user_id"`
	EmployeeID int64  `json:"employee_id,omitempty"`
	Role       string `json:"role"`
}

// IsAdmin reports whether the actor may perform admin-only transitions.
func (a Actor) IsAdmin() bool { return a.Role == RoleAdmin }
