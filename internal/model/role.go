package model

// Role is a coarse account role. A user carries exactly one role in storage,
// but callers pass a RoleSet so operations never re-derive roles themselves.
type Role string

const (
	RoleStudent Role = "student"
	RoleTeacher Role = "teacher"
	RoleProctor Role = "proctor"
	RoleAdmin   Role = "admin"
)

// RoleSet is a normalized set of roles attached to a request principal.
type RoleSet map[Role]struct{}

// NewRoleSet builds a RoleSet from raw role strings, skipping unknown values.
func NewRoleSet(roles ...string) RoleSet {
	set := make(RoleSet, len(roles))
	for _, r := range roles {
		switch Role(r) {
		case RoleStudent, RoleTeacher, RoleProctor, RoleAdmin:
			set[Role(r)] = struct{}{}
		}
	}
	return set
}

// Has reports whether the set contains the given role.
func (s RoleSet) Has(role Role) bool {
	_, ok := s[role]
	return ok
}

// HasAny reports whether the set contains at least one of the given roles.
func (s RoleSet) HasAny(roles ...Role) bool {
	for _, r := range roles {
		if s.Has(r) {
			return true
		}
	}
	return false
}

// Strings returns the set as a plain string slice for JWT embedding.
func (s RoleSet) Strings() []string {
	out := make([]string, 0, len(s))
	for r := range s {
		out = append(out, string(r))
	}
	return out
}

// ProctorEligible reports whether the set allows supervising a session.
// Teachers may proctor their own sessions.
func (s RoleSet) ProctorEligible() bool {
	return s.HasAny(RoleProctor, RoleTeacher)
}
