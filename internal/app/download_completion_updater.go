package app

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog"

	"github.com/insomniacdoll/animeloader/internal/ports"
)

// ItemDownloadedEvent est le payload publié sur "item.downloaded".
type ItemDownloadedEvent struct {
	ItemID int64 `json:"itemId"`
	TaskID int64 `json:"taskId"`
}

// DownloadCompletionUpdater suit les événements task.* : une tâche terminée
// passe son item à downloaded, un échec est seulement journalisé (l'item reste
// disponible pour une nouvelle tentative).
type DownloadCompletionUpdater struct {
	logger zerolog.Logger
	bus    ports.EventBus
	items  ports.ItemRepository
}

func NewDownloadCompletionUpdater(logger zerolog.Logger, bus ports.EventBus, items ports.ItemRepository) *DownloadCompletionUpdater {
	return &DownloadCompletionUpdater{logger: logger, bus: bus, items: items}
}

func (u *DownloadCompletionUpdater) Run(ctx context.Context) {
	if u == nil || u.bus == nil || u.items == nil {
		return
	}
	events, cancel := u.bus.Subscribe()
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			u.logger.Info().Msg("download completion updater stopped")
			return
		case evt, ok := <-events:
			if !ok {
				return
			}
			u.handleEvent(ctx, evt)
		}
	}
}

func (u *DownloadCompletionUpdater) handleEvent(ctx context.Context, evt ports.Event) {
	if evt.Topic != "task.completed" && evt.Topic != "task.failed" {
		return
	}
	var task TaskDTO
	if err := json.Unmarshal(evt.Payload, &task); err != nil || task.ItemID <= 0 {
		return
	}
	logger := u.logger.With().Int64("task_id", task.ID).Int64("item_id", task.ItemID).Logger()

	if evt.Topic == "task.failed" {
		logger.Warn().Str("code", task.ErrorCode).Str("error", task.Error).Msg("download failed")
		return
	}

	if err := u.items.MarkDownloaded(ctx, task.ItemID); err != nil {
		logger.Warn().Err(err).Msg("failed to mark item downloaded")
		return
	}
	logger.Info().Msg("item downloaded")

	if u.bus != nil {
		b, _ := json.Marshal(ItemDownloadedEvent{ItemID: task.ItemID, TaskID: task.ID})
		u.bus.Publish("item.downloaded", b)
	}
}
