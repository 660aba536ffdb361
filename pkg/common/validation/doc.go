// Package validation provides the checks stagebridge constructors run on
// their Config values.
//
// Every function returns nil or a *errors.ValidationError naming the module
// and field, so callers can test with errors.IsValidationError or
// errors.Is(err, errors.ErrInvalidConfiguration).
package validation
