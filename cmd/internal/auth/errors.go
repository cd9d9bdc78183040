package auth

import "errors"

var (
	// ErrInvalidToken is returned when a session or flow token fails verification.
	ErrInvalidToken = errors.New("invalid token")

	// ErrConfig is returned for invalid configuration.
	ErrConfig = errors.New("invalid auth config")

	// ErrProviderUnavailable is returned when no identity provider is configured.
	ErrProviderUnavailable = errors.New("identity provider not configured")

	// ErrUnverifiedEmail is returned when the provider reports an unverified email.
	ErrUnverifiedEmail = errors.New("email not verified by provider")
)
