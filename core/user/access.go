package user

// AccessState is what a request is allowed to see.
type AccessState int

const (
	Unauthenticated AccessState = iota
	AuthenticatedNonAdmin
	AuthenticatedAdmin
)

func (s AccessState) String() string {
	switch s {
	case AuthenticatedNonAdmin:
		return "authenticated"
	case AuthenticatedAdmin:
		return "admin"
	default:
		return "unauthenticated"
	}
}

// Access is the identity and role of the caller of a request.
// It is resolved once per request and handed to every operation that needs it.
type Access struct {
	UserID string
	Email  string
	Role   Role
}

func (a Access) IsAuthenticated() bool {
	return a.UserID != ""
}

func (a Access) IsAdmin() bool {
	return a.IsAuthenticated() && a.Role == RoleAdmin
}

func (a Access) IsStudent() bool {
	return a.IsAuthenticated() && a.Role == RoleStudent
}

func (a Access) State() AccessState {
	switch {
	case a.IsAdmin():
		return AuthenticatedAdmin
	case a.IsAuthenticated():
		return AuthenticatedNonAdmin
	default:
		return Unauthenticated
	}
}

// CanActFor reports whether the caller may read or write the progress of studentID:
// admins act for anyone, students only for themselves.
func (a Access) CanActFor(studentID string) bool {
	if studentID == "" {
		return false
	}
	return a.IsAdmin() || (a.IsStudent() && a.UserID == studentID)
}
