// CLAUDE:SUMMARY Sentinel errors for the record package: bad schema, missing identifying key.
package record

import "errors"

// ErrBadSchema is returned when a schema key list fails validation.
var ErrBadSchema = errors.New("record: invalid schema")

// ErrMissingKey is returned when a record lacks the identifying field
// during merge.
var ErrMissingKey = errors.New("record: missing identifying field")
