package linktype

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/anacrolix/torrent/bencode"
	"github.com/stretchr/testify/require"

	"github.com/insomniacdoll/animeloader/internal/domain"
	"github.com/insomniacdoll/animeloader/internal/fetch"
)

func syntheticTorrent(t *testing.T) (torrent []byte, wantHash string) {
	t.Helper()
	info := map[string]any{
		"name":         "[LoliHouse] Show - 03 [1080p].mkv",
		"piece length": int64(262144),
		"pieces":       strings.Repeat("\x01", 20),
		"length":       int64(1048576),
	}
	infoBytes, err := bencode.Marshal(info)
	require.NoError(t, err)
	sum := sha1.Sum(infoBytes)

	torrent, err = bencode.Marshal(map[string]any{
		"announce":      "http://tracker.example/announce",
		"comment":       "synthetic",
		"creation date": int64(1700000000),
		"info":          info,
	})
	require.NoError(t, err)
	return torrent, hex.EncodeToString(sum[:])
}

func TestInfoHashMagnet_HashesInfoDictionaryOnly(t *testing.T) {
	torrent, wantHash := syntheticTorrent(t)

	magnet, err := InfoHashMagnet(torrent)
	require.NoError(t, err)
	require.Equal(t, "magnet:?xt=urn:btih:"+wantHash, magnet)

	whole := sha1.Sum(torrent)
	require.NotContains(t, magnet, hex.EncodeToString(whole[:]))
}

func TestInfoHashMagnet_Errors(t *testing.T) {
	noInfo, err := bencode.Marshal(map[string]any{"announce": "http://tracker.example/announce"})
	require.NoError(t, err)

	_, err = InfoHashMagnet(noInfo)
	require.ErrorIs(t, err, ErrMissingInfo)

	_, err = InfoHashMagnet([]byte("<html>not a torrent</html>"))
	require.ErrorIs(t, err, ErrMalformedTorrent)

	list, err := bencode.Marshal([]any{"a", "b"})
	require.NoError(t, err)
	_, err = InfoHashMagnet(list)
	require.ErrorIs(t, err, ErrMalformedTorrent)
}

func TestNormalizer_Normalize(t *testing.T) {
	torrent, wantHash := syntheticTorrent(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok.torrent":
			w.Header().Set("Content-Type", "application/x-bittorrent")
			_, _ = w.Write(torrent)
		case "/garbage.torrent":
			_, _ = w.Write([]byte("garbage"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	n := NewNormalizer(fetch.New(fetch.Options{}))
	ctx := context.Background()

	got, typ, err := n.Normalize(ctx, srv.URL+"/ok.torrent", domain.LinkTorrent)
	require.NoError(t, err)
	require.Equal(t, domain.LinkMagnet, typ)
	require.Equal(t, "magnet:?xt=urn:btih:"+wantHash, got)

	got, typ, err = n.Normalize(ctx, validMagnet, domain.LinkMagnet)
	require.NoError(t, err)
	require.Equal(t, domain.LinkMagnet, typ)
	require.Equal(t, validMagnet, got)

	_, _, err = n.Normalize(ctx, srv.URL+"/garbage.torrent", domain.LinkTorrent)
	require.ErrorIs(t, err, ErrMalformedTorrent)

	_, _, err = n.Normalize(ctx, srv.URL+"/missing.torrent", domain.LinkTorrent)
	var se *fetch.StatusError
	require.True(t, errors.As(err, &se))

	_, _, err = n.Normalize(ctx, "https://example.org/episode/12", domain.LinkHTTP)
	require.ErrorIs(t, err, ErrDisallowedType)
}
