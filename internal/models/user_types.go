package models

import (
	"errors"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// Marketplace roles stored in users.role.
const (
	RoleClient = "client"
	RoleSeeker = "seeker"
	RoleBoth   = "both"
)

// User is the model for the 'users' table. It doubles as the public profile.
type User struct {
	ID           int64  `json:"id" db:"id"`
	Role         string `json:"role" db:"role"`
	IsAdmin      bool   `json:"isAdmin" db:"is_admin"`
	Email        string `json:"email" db:"email"`
	PasswordHash string `json:"-" db:"password_hash"`
	FullName     string `json:"fullName" db:"full_name"`

	// --- Profile Fields (Pointers = Clean JSON) ---
	Headline *string  `json:"headline,omitempty" db:"headline"`
	Bio      *string  `json:"bio,omitempty" db:"bio"`
	Location *string  `json:"location,omitempty" db:"location"`
	PhotoURL *string  `json:"photoUrl,omitempty" db:"photo_url"`
	Skills   []string `json:"skills,omitempty" db:"skills"`

	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// CanPost reports whether the user may act as a client.
func (u *User) CanPost() bool {
	return u.Role == RoleClient || u.Role == RoleBoth
}

// CanApply reports whether the user may act as a gig seeker.
func (u *User) CanApply() bool {
	return u.Role == RoleSeeker || u.Role == RoleBoth
}

// Password Helper (Standard)
type Password struct {
	Plaintext *string
	Hash      string
}

func (p *Password) Set(plaintextPassword string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(plaintextPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	p.Hash = string(hash)
	p.Plaintext = &plaintextPassword
	return nil
}

func (p *Password) Matches(plaintextPassword string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(p.Hash), []byte(plaintextPassword))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
