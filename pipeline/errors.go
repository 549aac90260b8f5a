// CLAUDE:SUMMARY Sentinel errors for profile validation and collaborator alignment.
package pipeline

import "errors"

// ErrBadProfile is returned when a profile fails validation.
var ErrBadProfile = errors.New("pipeline: invalid profile")

// ErrAlignment is returned when the collaborator's response does not
// line up one-to-one with the request. Merging zips by position, so a
// shifted response would silently attach the wrong dictionary data to
// every subsequent entry; failing loudly here is the contract assertion
// that protects it.
var ErrAlignment = errors.New("pipeline: collaborator response misaligned")

// ErrUnknownProfile is returned when a named profile has no file under
// the profiles directory.
var ErrUnknownProfile = errors.New("pipeline: unknown profile")

// ErrNoJournal is returned by run-history operations when the service
// was built without a journal.
var ErrNoJournal = errors.New("pipeline: no journal configured")
