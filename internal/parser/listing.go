package parser

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/enotrack/enotrack/internal/observability"
	"github.com/enotrack/enotrack/internal/types"
)

// promoLabelSelector matches the promotional badge elements the catalog
// renders on listing tiles ("best seller", "limited", seasonal labels).
const promoLabelSelector = `[class*="promo-label"], [class*="ico-product"], [class*="label"]`

// ListingExtractor turns one page's markup fragment into raw item records.
type ListingExtractor struct {
	baseURL string
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewListingExtractor creates an extractor resolving relative links against
// baseURL. metrics may be nil.
func NewListingExtractor(baseURL string, metrics *observability.Metrics, logger *slog.Logger) *ListingExtractor {
	return &ListingExtractor{
		baseURL: strings.TrimRight(baseURL, "/"),
		metrics: metrics,
		logger:  logger.With("component", "listing_extractor"),
	}
}

// Extract parses the fragment and returns the listing entries in document
// order. A failure on one entry is logged and the entry dropped; it never
// aborts the page. Entries missing the mandatory name/link pair are
// skipped silently. A blank fragment is ErrEmptyMarkup.
func (e *ListingExtractor) Extract(markup string, observedAt time.Time) ([]types.RawItem, error) {
	if strings.TrimSpace(markup) == "" {
		return nil, types.ErrEmptyMarkup
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("parse markup fragment: %w", err)
	}

	var items []types.RawItem
	doc.Find("li.item").Each(func(i int, sel *goquery.Selection) {
		item, err := e.extractEntry(sel, observedAt)
		if err != nil {
			e.metrics.IncDropped()
			e.logger.Warn("listing entry dropped", "position", i, "error", err)
			return
		}
		if item == nil {
			e.metrics.IncDropped()
			return
		}
		items = append(items, *item)
	})
	return items, nil
}

// extractEntry parses a single listing tile. A nil item with nil error
// means the entry lacked its mandatory fields.
func (e *ListingExtractor) extractEntry(sel *goquery.Selection, observedAt time.Time) (*types.RawItem, error) {
	title := sel.Find("h3.item-title a").First()
	name := strings.TrimSpace(title.Text())
	link, _ := title.Attr("href")
	link = strings.TrimSpace(link)
	if name == "" || link == "" {
		return nil, nil
	}
	if !strings.HasPrefix(link, "http") {
		link = e.baseURL + link
	}

	item := &types.RawItem{
		Name:       name,
		Link:       link,
		ObservedAt: observedAt,
	}
	item.Identifier = ResolveIdentity(sel, link, name)

	if src, ok := sel.Find("img").First().Attr("src"); ok {
		item.ImageURL = strings.TrimSpace(src)
	}

	e.extractPrices(sel, item)
	item.Tags = extractTags(sel)
	return item, nil
}

// extractPrices fills the three price fields. The special (discounted)
// price is authoritative over the nominal regular price; the crossed-out
// old price and the "lowest in 30 days" price are captured independently.
func (e *ListingExtractor) extractPrices(sel *goquery.Selection, item *types.RawItem) {
	box := sel.Find("div.price-box").First()
	if box.Length() == 0 {
		return
	}

	special := box.Find("p.special-price span.price").First()
	if special.Length() > 0 {
		if v, ok := ParsePrice(special.Text()); ok {
			item.CurrentPrice = types.Float(v)
		}
	} else {
		regular := box.Find("span.regular-price span.price").First()
		if v, ok := ParsePrice(regular.Text()); ok {
			item.CurrentPrice = types.Float(v)
		}
	}

	if v, ok := ParsePrice(box.Find("p.old-price span.price").First().Text()); ok {
		item.OrdinaryPrice = types.Float(v)
	}
	if v, ok := ParsePrice(box.Find("p.previous-price span.price").First().Text()); ok {
		item.ComparativePrice = types.Float(v)
	}
}

// extractTags collects promotional badge texts in document order,
// de-duplicated by exact text only.
func extractTags(sel *goquery.Selection) []string {
	var tags []string
	seen := make(map[string]struct{})
	sel.Find(promoLabelSelector).Each(func(_ int, label *goquery.Selection) {
		txt := strings.TrimSpace(label.Text())
		if txt == "" {
			return
		}
		if _, dup := seen[txt]; dup {
			return
		}
		seen[txt] = struct{}{}
		tags = append(tags, txt)
	})
	return tags
}
