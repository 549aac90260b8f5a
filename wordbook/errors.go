// CLAUDE:SUMMARY Sentinel errors for wordbook pattern specs.
package wordbook

import "errors"

// ErrBadSpec is returned when a pattern specification fails validation.
var ErrBadSpec = errors.New("wordbook: invalid pattern spec")
