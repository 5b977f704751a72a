package linktype

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/insomniacdoll/animeloader/internal/domain"
)

const validMagnet = "magnet:?xt=urn:btih:0123456789abcdef0123456789abcdef01234567&tr=http%3A%2F%2Ft.example%2Fannounce"

func TestClassify(t *testing.T) {
	cases := map[string]domain.LinkType{
		validMagnet: domain.LinkMagnet,
		"MAGNET:?XT=URN:BTIH:0123456789abcdef0123456789abcdef01234567":                   domain.LinkMagnet,
		"magnet:?dn=nohash":                                                               domain.LinkUnknown,
		"ed2k://|file|Show%2001.mkv|734003200|0123456789ABCDEF0123456789ABCDEF|/":         domain.LinkEd2k,
		"https://mikanani.me/Download/20260101/abcdef.torrent":                            domain.LinkTorrent,
		"https://example.org/file.torrent?passkey=1":                                      domain.LinkTorrent,
		"https://mikanani.me/Home/Episode/abcdef":                                         domain.LinkHTTP,
		"ftp://example.org/x":                                                             domain.LinkUnknown,
		"":                                                                                domain.LinkUnknown,
	}
	for raw, want := range cases {
		require.Equal(t, want, Classify(raw), raw)
	}
}

func TestValidMagnet(t *testing.T) {
	require.True(t, ValidMagnet(validMagnet))
	require.False(t, ValidMagnet("magnet:?xt=urn:btih:nothex"))
	require.False(t, ValidMagnet("https://example.org/a.torrent"))

	hash, ok := MagnetInfoHash(validMagnet)
	require.True(t, ok)
	require.Equal(t, "0123456789abcdef0123456789abcdef01234567", hash)
}

func TestParseEd2k(t *testing.T) {
	l, ok := ParseEd2k("ed2k://|file|Show%2001.mkv|734003200|0123456789ABCDEF0123456789ABCDEF|/")
	require.True(t, ok)
	require.Equal(t, "Show 01.mkv", l.Name)
	require.Equal(t, int64(734003200), l.Size)
	require.Equal(t, "0123456789abcdef0123456789abcdef", l.Hash)

	_, ok = ParseEd2k("ed2k://|file|broken|")
	require.False(t, ok)
}
