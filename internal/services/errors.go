package services

type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string { return "Validation error" }

type NotFoundError struct{ Message string }

func (e *NotFoundError) Error() string { return e.Message }

// BusyError is returned when a session already has a request in flight.
type BusyError struct{ Message string }

func (e *BusyError) Error() string { return e.Message }

// CredentialRequiredError is returned when no credential is available for
// the session; the request is never issued.
type CredentialRequiredError struct{ Message string }

func (e *CredentialRequiredError) Error() string { return e.Message }
