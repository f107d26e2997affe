package auth

import (
	"context"
	"errors"

	"google.golang.org/api/idtoken"
)

// GoogleVerifier validates Google ID tokens for the admin-dashboard
// sign-in path. Kiosk users never touch this; they log in with their
// admission number and password.
type GoogleVerifier struct {
	clientId string
}

func NewGoogleVerifier(clientId string) *GoogleVerifier {
	return &GoogleVerifier{clientId: clientId}
}

// VerifiedEmail validates the raw ID token against the configured client
// id and returns the verified email address.
func (g *GoogleVerifier) VerifiedEmail(ctx context.Context, rawToken string) (string, error) {
	if g.clientId == "" {
		return "", errors.New("google sign-in is not configured")
	}

	payload, err := idtoken.Validate(ctx, rawToken, g.clientId)
	if err != nil {
		return "", err
	}

	email, _ := payload.Claims["email"].(string)
	verified, _ := payload.Claims["email_verified"].(bool)
	if email == "" || !verified {
		return "", errors.New("google token has no verified email")
	}
	return email, nil
}
