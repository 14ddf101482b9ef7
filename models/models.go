package models

import "regexp"

// UserStatus is the presence state of a user.
type UserStatus int

const (
	StatusOffline UserStatus = iota
	StatusOnline
	StatusBusy
	StatusAway
)

// String returns the canonical name of the status.
func (s UserStatus) String() string {
	switch s {
	case StatusOnline:
		return "ONLINE"
	case StatusBusy:
		return "BUSY"
	case StatusAway:
		return "AWAY"
	}
	return "OFFLINE"
}

// ParseStatus maps a status name to a UserStatus. Unknown names fall back
// to StatusOffline.
func ParseStatus(s string) UserStatus {
	switch s {
	case "ONLINE":
		return StatusOnline
	case "BUSY":
		return StatusBusy
	case "AWAY":
		return StatusAway
	}
	return StatusOffline
}

// UserProfile is one registered user of the system.
type UserProfile struct {
	ID       int64
	Username string
	Email    string
	Status   UserStatus
	Contacts []int64
}

// AddContact appends a contact id unless it is already present.
func (u *UserProfile) AddContact(contactID int64) {
	if u.HasContact(contactID) {
		return
	}
	u.Contacts = append(u.Contacts, contactID)
}

// RemoveContact deletes a contact id and reports whether it was present.
func (u *UserProfile) RemoveContact(contactID int64) bool {
	for i, id := range u.Contacts {
		if id == contactID {
			u.Contacts = append(u.Contacts[:i], u.Contacts[i+1:]...)
			return true
		}
	}
	return false
}

// HasContact reports whether a contact id is present.
func (u *UserProfile) HasContact(contactID int64) bool {
	for _, id := range u.Contacts {
		if id == contactID {
			return true
		}
	}
	return false
}

var (
	usernameRe = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)
	emailRe    = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
)

// IsValidUsername reports whether a username is 3 to 20 characters of
// letters, digits and underscores.
func IsValidUsername(username string) bool {
	if len(username) < 3 || len(username) > 20 {
		return false
	}
	return usernameRe.MatchString(username)
}

// IsValidEmail reports whether an email has a simple local@domain.tld shape.
func IsValidEmail(email string) bool {
	return emailRe.MatchString(email)
}
