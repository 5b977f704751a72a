package sources

import (
	"bytes"
	"context"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/moistari/rls"

	"github.com/insomniacdoll/animeloader/internal/fetch"
)

// loadFeed récupère et parse un flux ; l'échec distingue réseau et contenu.
func loadFeed(ctx context.Context, getter fetch.Getter, url string) (*gofeed.Feed, FeedResult) {
	b, err := getter.Get(ctx, url)
	if err != nil {
		return nil, failed(FailureUnreachable, err)
	}
	feed, err := gofeed.NewParser().Parse(bytes.NewReader(b))
	if err != nil {
		return nil, failed(FailureUnparsable, err)
	}
	return feed, FeedResult{OK: true, Title: feed.Title, Description: feed.Description}
}

// newRawItem applique l'extraction d'épisode et le nettoyage du titre.
func newRawItem(entry *gofeed.Item) RawItem {
	it := RawItem{
		Title:        strings.TrimSpace(entry.Title),
		EpisodeTitle: CleanTitle(entry.Title),
		Episode:      ExtractEpisode(entry.Title),
		PublishedAt:  publishedAt(entry),
	}
	return it
}

func publishedAt(entry *gofeed.Item) *time.Time {
	if entry.PublishedParsed != nil {
		t := entry.PublishedParsed.UTC()
		return &t
	}
	if entry.UpdatedParsed != nil {
		t := entry.UpdatedParsed.UTC()
		return &t
	}
	return nil
}

func enclosureSize(enc *gofeed.Enclosure) *int64 {
	if enc == nil || enc.Length == "" {
		return nil
	}
	n, err := strconv.ParseInt(strings.TrimSpace(enc.Length), 10, 64)
	if err != nil || n <= 0 {
		return nil
	}
	return &n
}

func isTorrentEnclosure(enc *gofeed.Enclosure) bool {
	if enc == nil || enc.URL == "" {
		return false
	}
	return strings.EqualFold(enc.Type, "application/x-bittorrent") || strings.HasSuffix(strings.ToLower(enc.URL), ".torrent")
}

// entryLinks renvoie Link puis Links, sans doublon.
func entryLinks(entry *gofeed.Item) []string {
	seen := map[string]struct{}{}
	out := []string{}
	for _, l := range append([]string{entry.Link}, entry.Links...) {
		l = strings.TrimSpace(l)
		if l == "" {
			continue
		}
		if _, ok := seen[l]; ok {
			continue
		}
		seen[l] = struct{}{}
		out = append(out, l)
	}
	return out
}

// releaseMetadata complète les métadonnées avec groupe et résolution déduits du nom de release.
func releaseMetadata(parts []string, title string) string {
	r := rls.ParseString(title)
	if r.Group != "" {
		parts = append(parts, "group:"+r.Group)
	}
	if r.Resolution != "" {
		parts = append(parts, "resolution:"+r.Resolution)
	}
	return strings.Join(parts, "|")
}

// hostMatches compare l'hôte de rawURL (ou un sous-domaine) aux hôtes donnés.
// Le reste de l'URL (chemin, query) n'entre pas en compte.
func hostMatches(rawURL string, hosts ...string) bool {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return false
	}
	for _, h := range hosts {
		if host == h || strings.HasSuffix(host, "."+h) {
			return true
		}
	}
	return false
}
