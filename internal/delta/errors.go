package delta

import (
	"fmt"
)

// BackupFailure aborts the whole delta upload phase. It names the content
// hash whose upload failed and, when the compensating delete itself went
// wrong, carries that error too.
type BackupFailure struct {
	Hexdigest string
	DeleteErr error
}

func (e *BackupFailure) Error() string {
	if e.DeleteErr != nil {
		return fmt.Sprintf("delta upload failed for hash %s (cleanup also failed: %s)", e.Hexdigest, e.DeleteErr)
	}
	return fmt.Sprintf("delta upload failed for hash %s", e.Hexdigest)
}
