package linktype

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/anacrolix/torrent/bencode"

	"github.com/insomniacdoll/animeloader/internal/domain"
	"github.com/insomniacdoll/animeloader/internal/fetch"
)

var (
	ErrDisallowedType   = errors.New("link type not allowed")
	ErrInvalidLink      = errors.New("invalid link")
	ErrMalformedTorrent = errors.New("malformed torrent metadata")
	ErrMissingInfo      = errors.New("torrent metadata has no info dictionary")
)

const magnetPrefix = "magnet:?xt=urn:btih:"

type Normalizer struct {
	getter fetch.Getter
}

func NewNormalizer(getter fetch.Getter) *Normalizer {
	return &Normalizer{getter: getter}
}

// Normalize renvoie l'URL persistable et son type.
// declared est le type annoncé par le parser ; s'il est vide, le lien est classé ici.
func (n *Normalizer) Normalize(ctx context.Context, raw string, declared domain.LinkType) (string, domain.LinkType, error) {
	typ := declared
	if detected := Classify(raw); detected == domain.LinkMagnet || detected == domain.LinkEd2k || typ == "" || typ == domain.LinkUnknown {
		typ = detected
	}

	switch typ {
	case domain.LinkMagnet:
		if !ValidMagnet(raw) {
			return "", typ, fmt.Errorf("%w: %s", ErrInvalidLink, raw)
		}
		return raw, domain.LinkMagnet, nil
	case domain.LinkEd2k:
		if _, ok := ParseEd2k(raw); !ok {
			return "", typ, fmt.Errorf("%w: %s", ErrInvalidLink, raw)
		}
		return raw, domain.LinkEd2k, nil
	case domain.LinkTorrent:
		if n.getter == nil {
			return "", typ, errors.New("no fetcher configured for torrent links")
		}
		b, err := n.getter.Get(ctx, raw)
		if err != nil {
			return "", typ, fmt.Errorf("fetch torrent: %w", err)
		}
		magnet, err := InfoHashMagnet(b)
		if err != nil {
			return "", typ, err
		}
		return magnet, domain.LinkMagnet, nil
	default:
		return "", typ, fmt.Errorf("%w: %s", ErrDisallowedType, typ)
	}
}

// InfoHashMagnet calcule le magnet d'un fichier .torrent : SHA-1 du ré-encodage
// bencode du seul dictionnaire "info".
func InfoHashMagnet(torrent []byte) (string, error) {
	var meta any
	if err := bencode.Unmarshal(torrent, &meta); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedTorrent, err)
	}
	root, ok := meta.(map[string]any)
	if !ok {
		return "", fmt.Errorf("%w: top-level value is not a dictionary", ErrMalformedTorrent)
	}
	info, ok := root["info"]
	if !ok {
		return "", ErrMissingInfo
	}
	if _, ok := info.(map[string]any); !ok {
		return "", fmt.Errorf("%w: info is not a dictionary", ErrMalformedTorrent)
	}

	encoded, err := bencode.Marshal(info)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedTorrent, err)
	}
	sum := sha1.Sum(encoded)
	return magnetPrefix + hex.EncodeToString(sum[:]), nil
}
