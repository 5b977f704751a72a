package sources

import (
	"context"

	"github.com/insomniacdoll/animeloader/internal/domain"
	"github.com/insomniacdoll/animeloader/internal/fetch"
	"github.com/insomniacdoll/animeloader/internal/linktype"
)

// MikanFeedParser lit les flux RSS de mikanani.me : le .torrent est dans
// l'enclosure, le lien d'entrée pointe vers la page de l'épisode (ou un magnet).
type MikanFeedParser struct {
	getter fetch.Getter
}

func NewMikanFeedParser(getter fetch.Getter) *MikanFeedParser {
	return &MikanFeedParser{getter: getter}
}

func (p *MikanFeedParser) Name() string { return "mikan" }

func (p *MikanFeedParser) CanParse(url string) bool {
	return hostMatches(url, "mikanani.me", "mikanani.org")
}

func (p *MikanFeedParser) ParseFeed(ctx context.Context, url string, known map[string]struct{}) FeedResult {
	feed, res := loadFeed(ctx, p.getter, url)
	if !res.OK {
		return res
	}

	for _, entry := range feed.Items {
		if entry == nil {
			continue
		}
		it := newRawItem(entry)
		var meta []string

		for _, l := range entryLinks(entry) {
			if linktype.Classify(l) == domain.LinkMagnet {
				it.Links = append(it.Links, RawLink{URL: l, Type: domain.LinkMagnet})
				meta = append(meta, "magnet_link:"+l)
			}
		}
		for _, enc := range entry.Enclosures {
			if !isTorrentEnclosure(enc) {
				continue
			}
			it.Links = append(it.Links, RawLink{URL: enc.URL, Type: domain.LinkTorrent})
			meta = append(meta, "torrent_file:"+enc.URL)
			if it.Size == nil {
				it.Size = enclosureSize(enc)
			}
		}
		it.Metadata = releaseMetadata(meta, entry.Title)
		res.Items = append(res.Items, it)
	}
	res.NewItems = filterNew(res.Items, known)
	return res
}
