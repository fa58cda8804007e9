package parser

import (
	"fmt"
	"hash/fnv"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var (
	cartActionRe = regexp.MustCompile(`/product/(\d+)/`)
	priceElemRe  = regexp.MustCompile(`product-price-(\d+)`)
)

// HashedIDPrefix marks identifiers derived from the product name rather
// than from an ID-bearing source. Downstream consumers can recognize these
// as low confidence and merge them when a stronger identifier appears for
// the same product.
const HashedIDPrefix = "name-"

// ResolveIdentity derives a stable product identifier for one listing
// entry. The fallback chain, each step tried only when the previous yields
// nothing:
//
//  1. the last path segment of the product link (query string and trailing
//     slash stripped);
//  2. a numeric ID embedded in the add-to-cart button's onclick action, or
//     in a pricing element's own id attribute;
//  3. a deterministic hash of the whitespace-normalized, lower-cased name,
//     prefixed with HashedIDPrefix.
//
// The same physical product resolves to the same identifier across crawls
// as long as its URL slug is stable.
func ResolveIdentity(entry *goquery.Selection, link, name string) string {
	if slug := linkSlug(link); slug != "" {
		return slug
	}
	if id := embeddedNumericID(entry); id != "" {
		return id
	}
	return hashedNameID(name)
}

// linkSlug returns the last path segment of link with the query string and
// any trailing slash removed.
func linkSlug(link string) string {
	if link == "" {
		return ""
	}
	if i := strings.IndexByte(link, '?'); i >= 0 {
		link = link[:i]
	}
	if i := strings.Index(link, "://"); i >= 0 {
		link = link[i+3:]
	}
	link = strings.TrimRight(link, "/")
	// A bare host leaves no path segment to use.
	if !strings.Contains(link, "/") {
		return ""
	}
	link = link[strings.LastIndexByte(link, '/')+1:]
	return link
}

// embeddedNumericID looks for the numeric product ID in the add-to-cart
// affordance, then in pricing element ids ("product-price-19132").
func embeddedNumericID(entry *goquery.Selection) string {
	if entry == nil {
		return ""
	}
	onclick, _ := entry.Find("button.btn-cart").First().Attr("onclick")
	if m := cartActionRe.FindStringSubmatch(onclick); m != nil {
		return m[1]
	}

	var id string
	entry.Find(`[id^="product-price-"]`).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		attr, _ := sel.Attr("id")
		if m := priceElemRe.FindStringSubmatch(attr); m != nil {
			id = m[1]
			return false
		}
		return true
	})
	return id
}

// hashedNameID builds the low-confidence fallback identifier from the
// product name. Whitespace runs collapse to single spaces and the name is
// lower-cased first, so cosmetic markup changes do not shift the hash.
func hashedNameID(name string) string {
	normalized := strings.Join(strings.Fields(strings.ToLower(name)), " ")
	h := fnv.New64a()
	h.Write([]byte(normalized))
	return fmt.Sprintf("%s%016x", HashedIDPrefix, h.Sum64())
}
