package output

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrPublish wraps every failure to hand an artifact to a remote target.
var ErrPublish = errors.New("publish failed")

// publishFailed marks err as a publish failure. Both ErrPublish and err stay
// matchable with errors.Is.
func publishFailed(err error) error {
	return fmt.Errorf("%w: %w", ErrPublish, err)
}
