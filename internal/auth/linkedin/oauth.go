// Package linkedin runs the LinkedIn OAuth flow and stores the resulting credential.
package linkedin

import (
	"time"

	"golang.org/x/oauth2"
	linkedinOAuth "golang.org/x/oauth2/linkedin"
)

const (
	DefaultUserInfoURL = "https://api.linkedin.com/v2/userinfo"

	// A LinkedIn access token lives 60 days unless the token response says otherwise.
	defaultTokenLifetime = 60 * 24 * time.Hour
)

// Scopes needed to read the member id and publish on their behalf.
var Scopes = []string{"openid", "profile", "email", "w_member_social"}

// OAuthConfig returns the OAuth2 config for LinkedIn.
func OAuthConfig(clientID, clientSecret, redirectURL string, endpoint oauth2.Endpoint) *oauth2.Config {
	if endpoint.AuthURL == "" {
		endpoint = linkedinOAuth.Endpoint
	}
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Scopes:       Scopes,
		Endpoint:     endpoint,
	}
}
