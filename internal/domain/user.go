// Package domain holds the value types shared across the broker's
// credentials, protocol, and room-management layers.
package domain

// User is a stable identity, assigned at first login and held only for the
// broker's process lifetime.
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}

// Public returns the projection of u that is safe to advertise to other
// peers: it never leaks the server-assigned id.
type PublicUser struct {
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}

func (u User) Public() PublicUser {
	return PublicUser{Name: u.Name, Email: u.Email}
}

// RoomClaim is the signed payload a client presents at connection time.
type RoomClaim struct {
	Room string `json:"room"`
	User User   `json:"user"`
	Host bool   `json:"host"`
}

// PreparedRoom is returned to a would-be host before its transport opens.
type PreparedRoom struct {
	ID  string `json:"id"`
	JWT string `json:"jwt"`
}
