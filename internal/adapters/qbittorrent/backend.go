// Package qbittorrent expose un client qBittorrent Web API comme backend de téléchargement.
package qbittorrent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	qbt "github.com/autobrr/go-qbittorrent"
	"github.com/avast/retry-go"
	"github.com/rs/zerolog"

	"github.com/insomniacdoll/animeloader/internal/app"
	"github.com/insomniacdoll/animeloader/internal/domain"
	"github.com/insomniacdoll/animeloader/internal/linktype"
)

var ErrUnsupportedLink = errors.New("qbittorrent only accepts magnet links")

// Config est lue depuis Downloader.Config (JSON) ; les champs vides
// prennent les valeurs globales passées à Factory.
type Config struct {
	Host          string `json:"host"`
	Username      string `json:"username"`
	Password      string `json:"password"`
	SavePath      string `json:"savePath,omitempty"`
	Category      string `json:"category,omitempty"`
	TLSSkipVerify bool   `json:"tlsSkipVerify,omitempty"`
	TimeoutSec    int    `json:"timeoutSec,omitempty"`
}

func (c Config) merge(defaults Config) Config {
	if c.Host == "" {
		c.Host = defaults.Host
	}
	if c.Username == "" {
		c.Username = defaults.Username
	}
	if c.Password == "" {
		c.Password = defaults.Password
	}
	if c.SavePath == "" {
		c.SavePath = defaults.SavePath
	}
	if c.Category == "" {
		c.Category = defaults.Category
	}
	if c.TimeoutSec <= 0 {
		c.TimeoutSec = defaults.TimeoutSec
	}
	if c.TimeoutSec <= 0 {
		c.TimeoutSec = 30
	}
	return c
}

type Backend struct {
	logger  zerolog.Logger
	cfg     Config
	client  *qbt.Client
	retries uint

	mu       sync.Mutex
	loggedIn bool
}

// Factory renvoie une app.BackendFactory pour les downloaders de type qbittorrent.
func Factory(logger zerolog.Logger, defaults Config) app.BackendFactory {
	return func(d domain.Downloader) (app.Backend, error) {
		var cfg Config
		if s := strings.TrimSpace(d.Config); s != "" && s != "{}" {
			if err := json.Unmarshal([]byte(s), &cfg); err != nil {
				return nil, fmt.Errorf("downloader %d config: %w", d.ID, err)
			}
		}
		return New(logger.With().Int64("downloader_id", d.ID).Logger(), cfg.merge(defaults))
	}
}

func New(logger zerolog.Logger, cfg Config) (*Backend, error) {
	cfg = cfg.merge(Config{})
	if cfg.Host == "" {
		return nil, errors.New("qbittorrent host is required")
	}
	client := qbt.NewClient(qbt.Config{
		Host:          cfg.Host,
		Username:      cfg.Username,
		Password:      cfg.Password,
		Timeout:       cfg.TimeoutSec,
		TLSSkipVerify: cfg.TLSSkipVerify,
	})
	return &Backend{logger: logger, cfg: cfg, client: client, retries: 3}, nil
}

func (b *Backend) do(ctx context.Context, op string, fn func() error) error {
	return retry.Do(
		func() error {
			if err := b.login(ctx); err != nil {
				return err
			}
			return fn()
		},
		retry.Context(ctx),
		retry.Attempts(b.retries),
		retry.Delay(200*time.Millisecond),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			b.logger.Warn().Err(err).Str("op", op).Uint("attempt", n+1).Msg("qbittorrent call failed, retrying")
			// Session expirée possible : se reconnecter au prochain essai.
			b.mu.Lock()
			b.loggedIn = false
			b.mu.Unlock()
		}),
	)
}

func (b *Backend) login(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.loggedIn {
		return nil
	}
	if err := b.client.LoginCtx(ctx); err != nil {
		return fmt.Errorf("qbittorrent login: %w", err)
	}
	b.loggedIn = true
	return nil
}

// Add soumet un magnet ; l'identifiant externe est l'info-hash.
func (b *Backend) Add(ctx context.Context, uri string) (string, error) {
	hash, ok := linktype.MagnetInfoHash(uri)
	if !ok {
		return "", ErrUnsupportedLink
	}
	opts := map[string]string{}
	if b.cfg.SavePath != "" {
		opts["savepath"] = b.cfg.SavePath
	}
	if b.cfg.Category != "" {
		opts["category"] = b.cfg.Category
	}
	err := b.do(ctx, "add", func() error {
		return b.client.AddTorrentFromUrlCtx(ctx, uri, opts)
	})
	if err != nil {
		return "", err
	}
	b.logger.Info().Str("hash", hash).Msg("torrent added")
	return hash, nil
}

func (b *Backend) Pause(ctx context.Context, hash string) error {
	return b.do(ctx, "pause", func() error { return b.client.PauseCtx(ctx, []string{hash}) })
}

func (b *Backend) Resume(ctx context.Context, hash string) error {
	return b.do(ctx, "resume", func() error { return b.client.ResumeCtx(ctx, []string{hash}) })
}

// Remove retire le torrent sans supprimer les fichiers déjà téléchargés.
func (b *Backend) Remove(ctx context.Context, hash string) error {
	return b.do(ctx, "remove", func() error { return b.client.DeleteTorrentsCtx(ctx, []string{hash}, false) })
}

func (b *Backend) Progress(ctx context.Context, hash string) (float64, error) {
	var progress float64
	err := b.do(ctx, "progress", func() error {
		torrents, err := b.client.GetTorrentsCtx(ctx, qbt.TorrentFilterOptions{Hashes: []string{hash}})
		if err != nil {
			return err
		}
		for _, t := range torrents {
			if strings.EqualFold(t.Hash, hash) {
				progress = t.Progress
				return nil
			}
		}
		return retry.Unrecoverable(fmt.Errorf("torrent %s: %w", hash, app.ErrNotFound))
	})
	return progress, err
}
