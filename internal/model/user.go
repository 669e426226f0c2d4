// Package model defines the users, recipes and edges shared by every layer.
package model

import "time"

// User is a registered account. Email is the login identifier; Username is
// the public handle shown next to recipes.
//
// Avatar holds a media storage key (e.g. "avatars/cv37rs3pp9olc6atsptg.png"),
// not a URL. Handlers turn keys into URLs through the media store. An empty
// string means no avatar.
type User struct {
	ID           int64     `json:"id"         db:"id"`
	Email        string    `json:"email"      db:"email"`
	Username     string    `json:"username"   db:"username"`
	FirstName    string    `json:"first_name" db:"first_name"`
	LastName     string    `json:"last_name"  db:"last_name"`
	PasswordHash string    `json:"-"          db:"password_hash"`
	Avatar       string    `json:"-"          db:"avatar"`
	IsStaff      bool      `json:"-"          db:"is_staff"`
	IsSuperuser  bool      `json:"-"          db:"is_superuser"`
	CreatedAt    time.Time `json:"-"          db:"created_at"`
}

// IsPrivileged reports whether the user may modify objects owned by others.
func (u *User) IsPrivileged() bool {
	return u != nil && (u.IsStaff || u.IsSuperuser)
}

// Subscription is a follower → author edge. The pair is unique and a user
// can never follow themselves.
type Subscription struct {
	FollowerID int64 `db:"follower_id"`
	AuthorID   int64 `db:"author_id"`
}
