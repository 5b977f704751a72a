// Package linktype classe les liens découverts dans les flux et convertit
// les références .torrent en URI magnet. Seuls magnet et ed2k sont persistables.
package linktype

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/anacrolix/torrent/metainfo"

	"github.com/insomniacdoll/animeloader/internal/domain"
)

var reEd2k = regexp.MustCompile(`(?i)^ed2k://\|file\|(.+?)\|(\d+)\|([a-fA-F0-9]{32})\|`)

// Classify devine le type d'un lien brut à partir de sa forme.
func Classify(raw string) domain.LinkType {
	s := strings.TrimSpace(raw)
	lower := strings.ToLower(s)
	switch {
	case strings.HasPrefix(lower, "magnet:?") && strings.Contains(lower, "xt=urn:btih:"):
		return domain.LinkMagnet
	case strings.HasPrefix(lower, "ed2k://"):
		return domain.LinkEd2k
	case strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://"):
		if IsTorrentURL(s) {
			return domain.LinkTorrent
		}
		return domain.LinkHTTP
	default:
		return domain.LinkUnknown
	}
}

// IsTorrentURL teste l'extension du chemin, query exclue.
func IsTorrentURL(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return false
	}
	return strings.HasSuffix(strings.ToLower(u.Path), ".torrent")
}

func ValidMagnet(raw string) bool {
	if Classify(raw) != domain.LinkMagnet {
		return false
	}
	_, err := metainfo.ParseMagnetUri(strings.TrimSpace(raw))
	return err == nil
}

type Ed2kLink struct {
	Name string
	Size int64
	Hash string
}

func ParseEd2k(raw string) (Ed2kLink, bool) {
	m := reEd2k.FindStringSubmatch(strings.TrimSpace(raw))
	if m == nil {
		return Ed2kLink{}, false
	}
	size, err := strconv.ParseInt(m[2], 10, 64)
	if err != nil {
		return Ed2kLink{}, false
	}
	name := m[1]
	if unescaped, err := url.PathUnescape(name); err == nil {
		name = unescaped
	}
	return Ed2kLink{Name: name, Size: size, Hash: strings.ToLower(m[3])}, true
}

// MagnetInfoHash extrait le btih (hex minuscule) d'un magnet valide.
func MagnetInfoHash(raw string) (string, bool) {
	m, err := metainfo.ParseMagnetUri(strings.TrimSpace(raw))
	if err != nil {
		return "", false
	}
	return m.InfoHash.HexString(), true
}
