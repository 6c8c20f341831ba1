// Package user defines the account record owned by the credential store.
package user

import "time"

// User is a registered account. Username is always stored lower-cased and
// PinHash is a bcrypt hash, which carries its own random salt.
type User struct {
	// ID is the server-assigned identifier, a UUID string.
	ID string

	Username  string
	PinHash   string
	CreatedAt time.Time
}
