package connect

import "github.com/cockroachdb/errors"

var errEmptyPath = errors.New("path is required")

func errUnknownEvent(event string) error {
	return errors.Newf("unknown host event: %q", event)
}
