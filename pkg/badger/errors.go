package badger

import "errors"

var (
	ErrFailedToOpen      = errors.New("badger.open_failed")
	ErrHealthcheckFailed = errors.New("badger.healthcheck_failed")
	ErrCorruptEntry      = errors.New("badger.corrupt_entry")
)
