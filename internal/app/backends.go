package app

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/xid"

	"github.com/insomniacdoll/animeloader/internal/domain"
	"github.com/insomniacdoll/animeloader/internal/linktype"
)

// Backend est un client de téléchargement (qBittorrent, mock...).
// externalID identifie le téléchargement côté backend.
type Backend interface {
	Add(ctx context.Context, uri string) (externalID string, err error)
	Pause(ctx context.Context, externalID string) error
	Resume(ctx context.Context, externalID string) error
	Remove(ctx context.Context, externalID string) error
	// Progress renvoie une valeur entre 0 et 1 ; 1 signifie terminé.
	Progress(ctx context.Context, externalID string) (float64, error)
}

// BackendFactory construit un Backend depuis la config d'un Downloader.
type BackendFactory func(d domain.Downloader) (Backend, error)

// BackendRegistry associe un type de downloader à sa factory.
// Les backends construits sont gardés par id de downloader.
type BackendRegistry struct {
	mu        sync.Mutex
	factories map[string]BackendFactory
	cache     map[int64]Backend
}

func NewBackendRegistry() *BackendRegistry {
	return &BackendRegistry{factories: map[string]BackendFactory{}, cache: map[int64]Backend{}}
}

func (r *BackendRegistry) Register(downloaderType string, f BackendFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[downloaderType] = f
}

func (r *BackendRegistry) For(d domain.Downloader) (Backend, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.cache[d.ID]; ok {
		return b, nil
	}
	f, ok := r.factories[d.Type]
	if !ok {
		return nil, coded(CodeNoBackend, fmt.Sprintf("no backend for downloader type %q", d.Type), nil)
	}
	b, err := f(d)
	if err != nil {
		return nil, coded(CodeBackendError, "init backend "+d.Name, err)
	}
	r.cache[d.ID] = b
	return b, nil
}

// Forget invalide le backend mis en cache (ex: config modifiée).
func (r *BackendRegistry) Forget(downloaderID int64) {
	r.mu.Lock()
	delete(r.cache, downloaderID)
	r.mu.Unlock()
}

// MockBackend simule un client : chaque appel à Progress avance de Step.
type MockBackend struct {
	Step float64

	mu        sync.Mutex
	downloads map[string]*mockDownload
}

type mockDownload struct {
	uri      string
	progress float64
	paused   bool
}

func NewMockBackend(step float64) *MockBackend {
	if step <= 0 {
		step = 0.25
	}
	return &MockBackend{Step: step, downloads: map[string]*mockDownload{}}
}

func (m *MockBackend) Add(_ context.Context, uri string) (string, error) {
	if uri == "" {
		return "", fmt.Errorf("empty uri")
	}
	id, ok := linktype.MagnetInfoHash(uri)
	if !ok {
		id = xid.New().String()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.downloads[id]; !exists {
		m.downloads[id] = &mockDownload{uri: uri}
	}
	return id, nil
}

func (m *MockBackend) get(id string) (*mockDownload, error) {
	d, ok := m.downloads[id]
	if !ok {
		return nil, fmt.Errorf("download %s: %w", id, ErrNotFound)
	}
	return d, nil
}

func (m *MockBackend) Pause(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, err := m.get(id)
	if err != nil {
		return err
	}
	d.paused = true
	return nil
}

func (m *MockBackend) Resume(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, err := m.get(id)
	if err != nil {
		return err
	}
	d.paused = false
	return nil
}

func (m *MockBackend) Remove(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.downloads, id)
	return nil
}

func (m *MockBackend) Progress(_ context.Context, id string) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, err := m.get(id)
	if err != nil {
		return 0, err
	}
	if !d.paused && d.progress < 1 {
		d.progress += m.Step
		if d.progress > 1 {
			d.progress = 1
		}
	}
	return d.progress, nil
}
