// Package domain holds the portal and Core explorer models shared by every
// layer.
package domain

import (
	"strings"
	"time"
)

// User is a portal account from ADM.Users. The password hash never leaves
// the store layer in JSON.
type User struct {
	ID           int64      `json:"user_id"`
	Username     string     `json:"username"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	FirstName    string     `json:"first_name,omitempty"`
	LastName     string     `json:"last_name,omitempty"`
	Role         string     `json:"role"`
	IsActive     bool       `json:"is_active"`
	LastLogin    *time.Time `json:"last_login,omitempty"`
}

// DisplayName joins first and last name, falling back to the username.
func (u User) DisplayName() string {
	parts := make([]string, 0, 2)
	for _, p := range []string{u.FirstName, u.LastName} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) == 0 {
		return u.Username
	}
	return strings.Join(parts, " ")
}

// DefaultRole is assigned when an account is created without one.
const DefaultRole = "User"

// DefaultTheme is used when a user has no ADM.UserProfile row.
const DefaultTheme = "light"

// UserProfile holds per-user portal preferences.
type UserProfile struct {
	Theme          string  `json:"theme"`
	DefaultModule  *string `json:"default_module"`
	LandingLayout  *string `json:"landing_layout"`
	KPIPreferences *string `json:"kpi_preferences"`
}

// DefaultProfile is returned for users without a stored profile.
func DefaultProfile() UserProfile {
	return UserProfile{Theme: DefaultTheme}
}

// Module is a portal module the user is allowed to open.
type Module struct {
	Name string `json:"name"`
	URL  string `json:"url"`
	Icon string `json:"icon,omitempty"`
}

// KPITile is one landing page tile.
type KPITile struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Hint  string `json:"hint,omitempty"`
}

// NewUser carries the fields needed to create an account.
type NewUser struct {
	Username     string
	Email        string
	PasswordHash string
	FirstName    string
	LastName     string
	Role         string
	IsActive     bool
}
