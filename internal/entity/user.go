package entity

import "time"

// Preferences is the display identity a user carries into their records.
type Preferences struct {
	DisplayName string `json:"displayName,omitempty"`
	Handle      string `json:"handle,omitempty"`
	AvatarRef   string `json:"avatarRef,omitempty"`
}

// User is what the identity collaborator returns for an authenticated caller.
type User struct {
	ID    string      `json:"id"`
	Prefs Preferences `json:"prefs"`
}

// Snapshot returns the denormalized identity fields, substituting defaults for blanks.
func (p Preferences) Snapshot() (name, handle, avatar string) {
	name, handle, avatar = p.DisplayName, p.Handle, p.AvatarRef
	if name == "" {
		name = DefaultDisplayName
	}
	if handle == "" {
		handle = DefaultDisplayHandle
	}
	return name, handle, avatar
}

// Session binds a bearer token to a user until ExpiresAt.
type Session struct {
	Token     string    `json:"token"`
	UserID    string    `json:"userId"`
	ExpiresAt time.Time `json:"expiresAt"`
}
