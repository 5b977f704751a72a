package domain

import (
	"errors"
	"time"
)

type TaskStatus string

const (
	TaskPending     TaskStatus = "pending"
	TaskQueued      TaskStatus = "queued"
	TaskDownloading TaskStatus = "downloading"
	TaskPaused      TaskStatus = "paused"
	TaskCompleted   TaskStatus = "completed"
	TaskFailed      TaskStatus = "failed"
	TaskCancelled   TaskStatus = "cancelled"
)

func (s TaskStatus) IsTerminal() bool {
	return s == TaskCompleted || s == TaskFailed || s == TaskCancelled
}

// Task est une tentative de téléchargement d'un Item via un Downloader.
type Task struct {
	ID           int64
	ItemID       int64
	DownloaderID int64
	Status       TaskStatus
	Progress     float64
	// ExternalID est l'identifiant côté backend (ex: info-hash qBittorrent).
	ExternalID   string
	ErrorCode    string
	ErrorMessage string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

var ErrInvalidTransition = errors.New("invalid task status transition")

func CanTransition(from, to TaskStatus) bool {
	if from == to {
		return true
	}
	switch from {
	case TaskPending:
		return to == TaskQueued || to == TaskCancelled
	case TaskQueued:
		return to == TaskDownloading || to == TaskCancelled || to == TaskFailed
	case TaskDownloading:
		// Retour en file : tâche réclamée mais jamais soumise au backend.
		if to == TaskQueued {
			return true
		}
		return to == TaskPaused || to == TaskCompleted || to == TaskCancelled || to == TaskFailed
	case TaskPaused:
		return to == TaskDownloading || to == TaskCancelled || to == TaskFailed
	case TaskCompleted, TaskCancelled, TaskFailed:
		return false
	default:
		return false
	}
}
