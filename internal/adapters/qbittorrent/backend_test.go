package qbittorrent

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/insomniacdoll/animeloader/internal/domain"
)

const testMagnet = "magnet:?xt=urn:btih:0123456789ABCDEF0123456789ABCDEF01234567&dn=ep01"

// fakeWebUI implémente le strict nécessaire de l'API Web qBittorrent v2.
type fakeWebUI struct {
	mu     sync.Mutex
	logins int
	added  []string
	saveTo string
}

func (f *fakeWebUI) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v2/auth/login", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.logins++
		f.mu.Unlock()
		http.SetCookie(w, &http.Cookie{Name: "SID", Value: "test", Path: "/"})
		_, _ = w.Write([]byte("Ok."))
	})
	mux.HandleFunc("/api/v2/app/webapiVersion", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("2.9.3"))
	})
	mux.HandleFunc("/api/v2/torrents/add", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			_ = r.ParseForm()
		}
		f.mu.Lock()
		f.added = append(f.added, r.FormValue("urls"))
		f.saveTo = r.FormValue("savepath")
		f.mu.Unlock()
		_, _ = w.Write([]byte("Ok."))
	})
	mux.HandleFunc("/api/v2/torrents/info", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"hash":"0123456789abcdef0123456789abcdef01234567","name":"ep01","progress":0.42,"state":"downloading"}]`))
	})
	return mux
}

func TestBackend_AddAndProgress(t *testing.T) {
	fake := &fakeWebUI{}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	b, err := New(zerolog.Nop(), Config{Host: srv.URL, Username: "admin", Password: "adminadmin", SavePath: "/downloads/anime"})
	require.NoError(t, err)

	ctx := context.Background()
	hash, err := b.Add(ctx, testMagnet)
	require.NoError(t, err)
	require.Equal(t, "0123456789abcdef0123456789abcdef01234567", hash)

	progress, err := b.Progress(ctx, hash)
	require.NoError(t, err)
	require.InDelta(t, 0.42, progress, 1e-9)

	fake.mu.Lock()
	defer fake.mu.Unlock()
	require.Equal(t, 1, fake.logins, "session is reused between calls")
	require.Len(t, fake.added, 1)
	require.True(t, strings.HasPrefix(fake.added[0], "magnet:?xt=urn:btih:"))
	require.Equal(t, "/downloads/anime", fake.saveTo)
}

func TestBackend_RejectsNonMagnet(t *testing.T) {
	b, err := New(zerolog.Nop(), Config{Host: "http://127.0.0.1:1"})
	require.NoError(t, err)

	_, err = b.Add(context.Background(), "ed2k://|file|ep01.mkv|1024|0123456789abcdef0123456789abcdef|/")
	require.ErrorIs(t, err, ErrUnsupportedLink)
}

func TestFactory_MergesDownloaderConfig(t *testing.T) {
	f := Factory(zerolog.Nop(), Config{Host: "http://qbt.local:8080", Username: "admin", Password: "secret"})

	backend, err := f(domain.Downloader{ID: 1, Type: domain.DownloaderQBittorrent, Config: `{"category":"anime"}`})
	require.NoError(t, err)
	b := backend.(*Backend)
	require.Equal(t, "http://qbt.local:8080", b.cfg.Host)
	require.Equal(t, "anime", b.cfg.Category)
	require.Equal(t, 30, b.cfg.TimeoutSec)

	backend, err = f(domain.Downloader{ID: 2, Config: `{"host":"http://other:9090"}`})
	require.NoError(t, err)
	require.Equal(t, "http://other:9090", backend.(*Backend).cfg.Host)

	_, err = f(domain.Downloader{ID: 3, Config: `{not json`})
	require.Error(t, err)

	_, err = Factory(zerolog.Nop(), Config{})(domain.Downloader{ID: 4})
	require.Error(t, err)
}
