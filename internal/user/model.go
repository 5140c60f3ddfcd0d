package user

import "hirechat/internal/stomp"

type User struct {
	ID       int64          `json:"id"`
	Email    string         `json:"email"`
	Name     string         `json:"name"`
	Avatar   string         `json:"avatar,omitempty"`
	Company  *stomp.Company `json:"company,omitempty"`
	Password string         `json:"-"`
}

// Profile is the public shape the transport announces on connect.
func (u *User) Profile() stomp.Profile {
	return stomp.Profile{
		ID:      u.ID,
		Email:   u.Email,
		Name:    u.Name,
		Avatar:  u.Avatar,
		Company: u.Company,
	}
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string        `json:"accessToken"`
	Profile     stomp.Profile `json:"profile"`
}
