// CLAUDE:SUMMARY Sentinel errors for the modifier package.
package modifier

import "errors"

// ErrUnknownModifier is returned when a profile names a modifier the
// registry does not know.
var ErrUnknownModifier = errors.New("modifier: unknown modifier name")

// ErrFieldRequired is returned when a field-scoped modifier is referenced
// without a field.
var ErrFieldRequired = errors.New("modifier: field required")
