package broadphase

import (
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
)

// Error types attached to the errors returned or raised by this package.
const (
	ErrTypeOutsidePartition  = "outside-partition"
	ErrTypeIndexCorrupted    = "index-corrupted"
	ErrTypeTooManyShapes     = "too-many-shapes"
	ErrTypeTooManyCollisions = "too-many-collisions"
	ErrTypeTooManyBodies     = "too-many-bodies"
	ErrTypeTooManyGroups     = "too-many-groups"
	ErrTypeTooManyTimers     = "too-many-timers"
	ErrTypeGroupNameTooLong  = "group-name-too-long"
	ErrTypeUnknownCallback   = "unknown-callback"
	ErrTypeCallbackFailed    = "callback-failed"
	ErrTypeDyingWorld        = "dying-world"
	ErrTypeInvalidShape      = "invalid-shape"
	ErrTypeInvalidConfig     = "invalid-config"
	ErrTypeForeignBody       = "foreign-body"
)

// Fatal is called when an invariant of the index or of the dispatcher is
// violated, or when a user callback fails. The simulation cannot continue
// after that; the default logs the error and exits the process.
var Fatal = func(err error) {
	logs.Fatal(err)
}

func fatal(err error) {
	instrumentFatal(err)
	Fatal(err)
	// Fatal hooks are not allowed to return control to the caller.
	panic(err)
}

func assert(truth bool, msg string) {
	if !truth {
		fatal(errors.New("assertion failed: " + msg).WithType(ErrTypeIndexCorrupted))
	}
}
