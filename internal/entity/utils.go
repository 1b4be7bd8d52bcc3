package entity

import (
	"time"

	"github.com/joseph-ayodele/tms-reconciler/constants"
)

func formatDate(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.Format(constants.DateLayout)
}
