package platform

import (
	"fmt"

	"reelgen/internal/services"
)

// AuthError reports that no usable credential could be resolved or a token
// could not be minted. It is fatal for a run.
type AuthError struct {
	Source string
	Err    error
}

func (e *AuthError) Error() string {
	if e.Source == "" {
		return fmt.Sprintf("platform auth: %v", e.Err)
	}
	return fmt.Sprintf("platform auth (%s): %v", e.Source, e.Err)
}

func (e *AuthError) Unwrap() []error {
	if e.Err == nil {
		return []error{services.ErrAuth}
	}
	return []error{services.ErrAuth, e.Err}
}
