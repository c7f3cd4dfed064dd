// Package models contains the wire types of the Amazon Pilot gateway and the
// client-side job model built on them.
package models

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse carries the bearer token. ExpiresIn is in seconds.
type LoginResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
	User        User   `json:"user"`
}

type User struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	CompanyName string `json:"company_name,omitempty"`
	Plan        string `json:"plan"`
	IsActive    bool   `json:"is_active"`
	CreatedAt   string `json:"created_at"`
}

type UserSettings struct {
	NotificationEmail bool   `json:"notification_email"`
	NotificationPush  bool   `json:"notification_push"`
	Timezone          string `json:"timezone"`
	Currency          string `json:"currency"`
	TrackingFrequency string `json:"tracking_frequency"`
}

type ProfileResponse struct {
	User     User         `json:"user"`
	Settings UserSettings `json:"settings"`
}
