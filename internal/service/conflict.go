package service

import (
	"time"

	"github.com/Shivanand-hulikatti/tutormatch/internal/model"
)

// FindConflict returns the first existing session whose interval overlaps
// [start, end). Intervals are half-open, so a session ending exactly at
// start does not conflict.
func FindConflict(existing []model.Session, start, end time.Time) (*model.Session, bool) {
	for i := range existing {
		if existing[i].Overlaps(start, end) {
			return &existing[i], true
		}
	}
	return nil, false
}

// HasConflict reports whether [start, end) overlaps any existing session.
func HasConflict(existing []model.Session, start, end time.Time) bool {
	_, ok := FindConflict(existing, start, end)
	return ok
}
