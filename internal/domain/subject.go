package domain

import "time"

type SubjectStatus string

const (
	SubjectOngoing   SubjectStatus = "ongoing"
	SubjectCompleted SubjectStatus = "completed"
	SubjectUnknown   SubjectStatus = "unknown"
)

// Subject est l'entité logique (une série). OriginURL est optionnelle
// et unique lorsqu'elle est renseignée.
type Subject struct {
	ID            int64
	Title         string
	AltTitle      string
	Description   string
	CoverURL      string
	OriginURL     string
	Status        SubjectStatus
	TotalEpisodes int
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
