package models

// Caller is the authenticated identity on whose behalf an operation runs.
// It is resolved once per request and passed explicitly to every operation.
type Caller struct {
	ID   string
	Name string
	Role string
}

// HasRole reports whether the caller's role is one of roles.
func (c Caller) HasRole(roles []string) bool {
	for _, r := range roles {
		if r == c.Role {
			return true
		}
	}
	return false
}

// DisplayName is the name shown to the language model, falling back to a neutral label.
func (c Caller) DisplayName() string {
	if c.Name == "" {
		return DefaultCandidateName
	}
	return c.Name
}
