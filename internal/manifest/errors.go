package manifest

import (
	"fmt"

	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
)

// Error codes.
const (
	ErrCodeGeneric     = "M001" // Generic/unknown error
	ErrCodeScanError   = "M002" // Directory scan error
	ErrCodeNotFound    = "M003" // Path not found
	ErrCodeBuildFailed = "M004" // CUE parse or build failed
	ErrCodeMissing     = "M005" // Required field missing
	ErrCodeUnknownBase = "M006" // base names no dynamic kind
	ErrCodeWrongBase   = "M007" // base not accepted here
	ErrCodeBadValue    = "M008" // Field has the wrong type
)

// LoadError is a manifest problem, positioned when CUE knows where.
type LoadError struct {
	Code    string
	Field   string
	Message string
	Pos     token.Pos
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// fromCUE converts a CUE error into a LoadError carrying the first
// position CUE reports.
func fromCUE(code string, err error) *LoadError {
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return &LoadError{Code: code, Message: err.Error()}
	}

	first := errs[0]
	le := &LoadError{Code: code, Message: first.Error()}
	if positions := errors.Positions(first); len(positions) > 0 {
		le.Pos = positions[0]
	}
	return le
}
