package dberror

import "errors"

// Stable error codes. These strings appear in the exception buffer and must
// not change once published.
const (
	CodeParameterOverflow       = "PARAMETER_OVERFLOW"
	CodeBatchOverflow           = "BATCH_OVERFLOW"
	CodeMalformedParameters     = "MALFORMED_PARAMETERS"
	CodeTempTableMemoryExceeded = "TEMP_TABLE_MEMORY_EXCEEDED"
	CodeDuplicateDependency     = "DUPLICATE_DEPENDENCY"
	CodeMissingDependency       = "MISSING_DEPENDENCY"
	CodeConstraintViolation     = "CONSTRAINT_VIOLATION"
	CodeTypeMismatch            = "TYPE_MISMATCH"
	CodeDivideByZero            = "DIVIDE_BY_ZERO"
	CodeMalformedPlan           = "MALFORMED_PLAN"
	CodeSchemaMismatch          = "SCHEMA_MISMATCH"
	CodeUnknownFragment         = "UNKNOWN_FRAGMENT"
	CodeUnknownTable            = "UNKNOWN_TABLE"
	CodeCatalogConflict         = "CATALOG_CONFLICT"
	CodeBufferOverflow          = "BUFFER_OVERFLOW"
	CodeNonMonotonicUndoToken   = "NON_MONOTONIC_UNDO_TOKEN"
	CodeNoUndoQuantum           = "NO_UNDO_QUANTUM"
	CodeUndoFailed              = "UNDO_FAILED"
	CodeEngineFaulted           = "ENGINE_FAULTED"
	CodeEngineBusy              = "ENGINE_BUSY"
	CodeReadOnlyViolation       = "READ_ONLY_VIOLATION"
	CodeInternal                = "INTERNAL"
)

// Sentinels for errors.Is. They carry only a code; matching is by code.
var (
	ErrParameterOverflow       = &DBError{Code: CodeParameterOverflow}
	ErrBatchOverflow           = &DBError{Code: CodeBatchOverflow}
	ErrMalformedParameters     = &DBError{Code: CodeMalformedParameters}
	ErrTempTableMemoryExceeded = &DBError{Code: CodeTempTableMemoryExceeded}
	ErrDuplicateDependency     = &DBError{Code: CodeDuplicateDependency}
	ErrMissingDependency       = &DBError{Code: CodeMissingDependency}
	ErrConstraintViolation     = &DBError{Code: CodeConstraintViolation}
	ErrTypeMismatch            = &DBError{Code: CodeTypeMismatch}
	ErrDivideByZero            = &DBError{Code: CodeDivideByZero}
	ErrMalformedPlan           = &DBError{Code: CodeMalformedPlan}
	ErrSchemaMismatch          = &DBError{Code: CodeSchemaMismatch}
	ErrUnknownFragment         = &DBError{Code: CodeUnknownFragment}
	ErrUnknownTable            = &DBError{Code: CodeUnknownTable}
	ErrCatalogConflict         = &DBError{Code: CodeCatalogConflict}
	ErrBufferOverflow          = &DBError{Code: CodeBufferOverflow}
	ErrNonMonotonicUndoToken   = &DBError{Code: CodeNonMonotonicUndoToken}
	ErrNoUndoQuantum           = &DBError{Code: CodeNoUndoQuantum}
	ErrUndoFailed              = &DBError{Code: CodeUndoFailed}
	ErrEngineFaulted           = &DBError{Code: CodeEngineFaulted}
	ErrEngineBusy              = &DBError{Code: CodeEngineBusy}
	ErrReadOnlyViolation       = &DBError{Code: CodeReadOnlyViolation}
)

// CodeOf returns the code of the first DBError in err's chain, or CodeInternal.
func CodeOf(err error) string {
	var dbErr *DBError
	if errors.As(err, &dbErr) {
		return dbErr.Code
	}
	return CodeInternal
}

// CategoryOf returns the category of the first DBError in err's chain.
// Errors from outside the engine count as system errors.
func CategoryOf(err error) ErrorCategory {
	var dbErr *DBError
	if errors.As(err, &dbErr) {
		return dbErr.Category
	}
	return ErrCategorySystem
}

// IsFatal reports whether err leaves the engine in an untrustworthy state.
func IsFatal(err error) bool {
	return err != nil && CategoryOf(err) == ErrCategoryFatal
}
