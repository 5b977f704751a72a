package sources

import (
	"context"
	"regexp"
	"strings"

	"github.com/insomniacdoll/animeloader/internal/domain"
	"github.com/insomniacdoll/animeloader/internal/fetch"
	"github.com/insomniacdoll/animeloader/internal/linktype"
)

var reInlineLink = regexp.MustCompile(`(?i)(magnet:\?[^\s"'<>]+|ed2k://\|file\|[^\s"'<>]+?\|/?)`)

// GenericFeedParser accepte tout flux RSS/Atom http(s). Il doit rester en dernier dans le Registry.
type GenericFeedParser struct {
	getter fetch.Getter
}

func NewGenericFeedParser(getter fetch.Getter) *GenericFeedParser {
	return &GenericFeedParser{getter: getter}
}

func (p *GenericFeedParser) Name() string { return "generic" }

func (p *GenericFeedParser) CanParse(url string) bool {
	lower := strings.ToLower(strings.TrimSpace(url))
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

func (p *GenericFeedParser) ParseFeed(ctx context.Context, url string, known map[string]struct{}) FeedResult {
	feed, res := loadFeed(ctx, p.getter, url)
	if !res.OK {
		return res
	}

	for _, entry := range feed.Items {
		if entry == nil {
			continue
		}
		it := newRawItem(entry)
		seen := map[string]struct{}{}
		add := func(u string, t domain.LinkType) {
			if u == "" {
				return
			}
			if _, ok := seen[u]; ok {
				return
			}
			seen[u] = struct{}{}
			it.Links = append(it.Links, RawLink{URL: u, Type: t})
		}

		// Liens directs d'abord, puis ceux trouvés dans le texte, puis le lien de page.
		var pages []string
		for _, l := range entryLinks(entry) {
			switch t := linktype.Classify(l); t {
			case domain.LinkMagnet, domain.LinkEd2k, domain.LinkTorrent:
				add(l, t)
			default:
				pages = append(pages, l)
			}
		}
		for _, enc := range entry.Enclosures {
			if isTorrentEnclosure(enc) {
				add(enc.URL, domain.LinkTorrent)
				if it.Size == nil {
					it.Size = enclosureSize(enc)
				}
			} else if enc != nil {
				add(enc.URL, linktype.Classify(enc.URL))
			}
		}
		for _, m := range reInlineLink.FindAllString(entry.Description+" "+entry.Content, -1) {
			add(m, linktype.Classify(m))
		}
		for _, l := range pages {
			add(l, linktype.Classify(l))
		}

		it.Metadata = releaseMetadata(nil, entry.Title)
		res.Items = append(res.Items, it)
	}
	res.NewItems = filterNew(res.Items, known)
	return res
}
