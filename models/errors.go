package models

import "errors"

var (
	ErrInvalidWindow = errors.New("invalid window: start must be before end")

	// ErrSourceUnavailable and ErrPermissionDenied are returned by sample
	// sources; the collector turns both into an empty result.
	ErrSourceUnavailable = errors.New("health data source unavailable")
	ErrPermissionDenied  = errors.New("health data permission denied")

	ErrOracleFailure      = errors.New("remote oracle failure")
	ErrPersistenceFailure = errors.New("health metrics persistence failed")
	ErrRefreshInProgress  = errors.New("refresh already in progress")
)
