package domain

import "time"

const (
	DownloaderMock        = "mock"
	DownloaderQBittorrent = "qbittorrent"
)

type Downloader struct {
	ID        int64
	Name      string
	Type      string
	Enabled   bool
	IsDefault bool
	// Config est un blob JSON propre au type (ex: host/credentials qBittorrent).
	Config    string
	CreatedAt time.Time
}
