package tools

import (
	"fmt"

	"github.com/relayagent/agentd/internal/errkind"
	"github.com/relayagent/agentd/internal/toolapi"
)

func errRequired(field string) error {
	return fmt.Errorf("%s is required", field)
}

func errIsDir(path string) error {
	return fmt.Errorf("%s is a directory, not a file", path)
}

func errResult(err error) toolapi.Result {
	return toolapi.Result{Success: false, Error: err.Error()}
}

// kindOf extracts the errkind.Kind carried by err, if any, for callers that
// want to brand their metadata without importing errkind directly.
func kindOf(err error) (errkind.Kind, bool) {
	var e *errkind.Error
	for err != nil {
		if ke, ok := err.(*errkind.Error); ok {
			e = ke
			break
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	if e == nil {
		return "", false
	}
	return e.Kind, true
}
