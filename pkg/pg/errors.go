package pg

import "errors"

var (
	ErrFailedToOpenDBConnection = errors.New("pg.connection_failed")
	ErrHealthcheckFailed        = errors.New("pg.healthcheck_failed")
	ErrFailedToParseDBConfig    = errors.New("pg.invalid_config")
	ErrFailedToApplyMigrations  = errors.New("pg.migrations_failed")
)
