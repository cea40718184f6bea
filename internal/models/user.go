package models

import "github.com/google/uuid"

// UserInfo is the identity profile returned by the authentication backend.
// The Session Agent caches the most recent copy; it is never persisted and is
// re-derived on every startup via a status probe.
type UserInfo struct {
	// UUID is the unique identifier assigned by the backend.
	UUID uuid.UUID `json:"uuid"`

	// Name is the user's display/login name.
	Name string `json:"name"`
}

// Credentials is the request body for a login call.
type Credentials struct {
	Name     string `json:"name"`
	Password string `json:"password"`
}

// Registration is the request body for a signup call.
type Registration struct {
	Name     string `json:"name"`
	Password string `json:"password"`
}
