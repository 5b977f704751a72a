package domain

import "time"

type LinkType string

const (
	LinkMagnet  LinkType = "magnet"
	LinkEd2k    LinkType = "ed2k"
	LinkTorrent LinkType = "torrent"
	LinkHTTP    LinkType = "http"
	LinkUnknown LinkType = "unknown"
)

// Persistable indique si le type peut être stocké tel quel.
// Tout autre type doit être normalisé (ou écarté) avant persistance.
func (t LinkType) Persistable() bool {
	return t == LinkMagnet || t == LinkEd2k
}

// Item est une release découverte dans un flux. (FeedSourceID, URL) est unique.
type Item struct {
	ID           int64
	FeedSourceID int64
	Episode      *int
	EpisodeTitle string
	LinkType     LinkType
	URL          string
	// SourceURL garde l'URL d'origine avant normalisation (ex: fichier .torrent).
	SourceURL   string
	Size        *int64
	PublishedAt *time.Time
	Downloaded  bool
	Available   bool
	Metadata    string
	CreatedAt   time.Time
}
