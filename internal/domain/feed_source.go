package domain

import "time"

// FeedSource est un flux RSS rattaché à un Subject, pour un niveau de qualité donné.
// (SubjectID, URL) est unique.
type FeedSource struct {
	ID           int64
	SubjectID    int64
	Name         string
	URL          string
	Quality      string
	Active       bool
	AutoDownload bool
	LastChecked  *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
