package domain

import "time"

// Integration is a stored OAuth grant binding one business to one platform.
type Integration struct {
	ID                 string
	BusinessID         string
	Platform           Platform
	ExternalAccountID  string
	ExternalLocationID string
	AccessToken        string
	RefreshToken       string
	ExpiresAt          time.Time
	Scopes             string
	Active             bool
	ReconnectRequired  bool
	ConnectedAt        time.Time
	LastSyncAt         *time.Time
	DisplayName        string
	Address            string
}

// CredentialsValid is a local check; it never refreshes.
func (i Integration) CredentialsValid(now time.Time) bool {
	return i.Active && now.Before(i.ExpiresAt)
}

// TokenGrant is the outcome of a code exchange or refresh grant.
type TokenGrant struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	Scopes       string
}

// PlatformProfile is the account/location an authorization was granted for.
type PlatformProfile struct {
	AccountID  string
	LocationID string
	Name       string
	Address    string
}

// IntegrationView is the read model returned when listing connections.
type IntegrationView struct {
	ID                string
	Platform          Platform
	DisplayName       string
	Address           string
	ConnectedAt       time.Time
	LastSyncAt        *time.Time
	Expired           bool
	ReconnectRequired bool
}
