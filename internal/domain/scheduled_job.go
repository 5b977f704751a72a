package domain

import "time"

// ScheduledJob est la vue (copie) d'un job de polling en mémoire.
// Il n'est jamais persisté : il se reconstruit depuis les FeedSource.
type ScheduledJob struct {
	ID              string     `json:"id"`
	FeedSourceID    int64      `json:"feedSourceId"`
	IntervalSeconds int        `json:"intervalSeconds"`
	AutoDownload    bool       `json:"autoDownload"`
	Paused          bool       `json:"paused"`
	NextRun         *time.Time `json:"nextRun,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
}
