package shared

import "fmt"

var (
	// Configuration errors
	ErrInvalidConfig = fmt.Errorf("invalid configuration")

	// Storage errors
	ErrStorageUnavailable = fmt.Errorf("storage unavailable")
	ErrCorruptValue       = fmt.Errorf("stored value could not be decoded")

	// Sync errors
	ErrMalformedMessage = fmt.Errorf("malformed sync message")
	ErrTransportClosed  = fmt.Errorf("transport closed")
	ErrStoreRegistered  = fmt.Errorf("store already registered")

	// Authentication errors
	ErrAuthFailed         = fmt.Errorf("authentication failed")
	ErrNotAuthenticated   = fmt.Errorf("not authenticated")
	ErrMissingCredentials = fmt.Errorf("missing credentials")

	// API and service errors
	ErrAPIRequest         = fmt.Errorf("API request failed")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)
