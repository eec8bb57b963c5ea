package provider

import "errors"

// Sentinel errors for provider operations.
var (
	// ErrRateLimit indicates the provider returned a rate limit response.
	ErrRateLimit = errors.New("provider rate limited")

	// ErrProviderDown indicates the provider is unreachable or temporarily
	// unavailable.
	ErrProviderDown = errors.New("provider unavailable")

	// ErrEmptyResponse indicates the provider answered without any reply
	// content.
	ErrEmptyResponse = errors.New("provider returned an empty response")

	// ErrAuthentication indicates the provider rejected the credentials.
	ErrAuthentication = errors.New("provider authentication failed")

	// ErrAllProviders indicates all providers in the chain have been exhausted.
	ErrAllProviders = errors.New("all providers failed")

	// ErrNoProvider indicates no provider is configured for the requested role.
	ErrNoProvider = errors.New("no provider configured")
)

// IsRetryable reports whether the error is transient and the request
// can be retried with a different provider or after a delay.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrRateLimit) || errors.Is(err, ErrProviderDown)
}

// IsUnavailable reports whether err means no reply could be obtained from
// any model backend. Callers surface these to the end user.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrProviderDown) ||
		errors.Is(err, ErrAllProviders) ||
		errors.Is(err, ErrRateLimit) ||
		errors.Is(err, ErrNoProvider)
}
