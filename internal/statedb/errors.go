package statedb

import "codeberg.org/mutker/psud/internal/errors"

const (
	ErrInvalidDBPath = errors.ErrorCode("statedb_invalid_db_path")
	ErrStorageInit   = errors.ErrorCode("statedb_storage_init_failed")
	ErrStorageAccess = errors.ErrorCode("statedb_storage_access_failed")
	ErrStorageClose  = errors.ErrorCode("statedb_storage_close_failed")
)
