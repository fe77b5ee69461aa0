package lore

import "errors"

// Error taxonomy shared by every client. Callers wrap these with %w and
// test with errors.Is.
var (
	// ErrMissingCredential means a key or URL is not configured. Raised
	// before any network call.
	ErrMissingCredential = errors.New("missing credential")

	// ErrUnauthenticated means there is no active session, or the backend
	// rejected the session or the credentials.
	ErrUnauthenticated = errors.New("not authenticated")

	// ErrStoreUnavailable means the entity store is unreachable or unconfigured.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrQuery is any other remote store failure.
	ErrQuery = errors.New("query failed")

	// ErrNotFound means nothing visible to the caller matched.
	ErrNotFound = errors.New("not found")

	// ErrValidation means a draft was rejected, locally or by remote constraints.
	ErrValidation = errors.New("validation failed")

	// ErrGeneration is any generation failure, including an unparsable response.
	ErrGeneration = errors.New("generation failed")
)

// Describe turns an error into the short notice shown to the user.
func Describe(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrMissingCredential) && errors.Is(err, ErrGeneration):
		return "Generation is not configured. Check the API key."
	case errors.Is(err, ErrMissingCredential):
		return "The store is not configured. Set the store URL and key."
	case errors.Is(err, ErrUnauthenticated):
		return "Your session is not valid. Sign in again."
	case errors.Is(err, ErrValidation):
		return "The record was rejected: " + err.Error()
	case errors.Is(err, ErrNotFound):
		return "That record no longer exists."
	case errors.Is(err, ErrStoreUnavailable):
		return "Could not reach the store. Is it connected?"
	case errors.Is(err, ErrGeneration):
		return "Generation failed. Check the API key and try again."
	case errors.Is(err, ErrQuery):
		return "The store refused the request: " + err.Error()
	}
	return err.Error()
}
