package types

import (
	"time"
)

// RawItem is one product listing entry as extracted from a catalog page.
// It lives for the duration of one page and is handed to the sink as part
// of a per-page batch.
type RawItem struct {
	// Identifier is the stable product code resolved for this listing.
	Identifier string

	// Name is the product display name.
	Name string

	// Link is the absolute product page URL.
	Link string

	// ImageURL is the listing thumbnail, when present.
	ImageURL string

	// CurrentPrice is the effective price shown on the listing. A special
	// (discounted) price wins over the nominal regular price. Nil means the
	// listing carried no parseable price (out of stock, malformed markup).
	CurrentPrice *float64

	// OrdinaryPrice is the crossed-out "old" price, when present.
	OrdinaryPrice *float64

	// ComparativePrice is the site's own "lowest in the last 30 days"
	// claim, when present.
	ComparativePrice *float64

	// Tags holds promotional badge texts in document order, de-duplicated
	// by exact text.
	Tags []string

	// ObservedAt is when the listing was scraped.
	ObservedAt time.Time
}

// Float returns a pointer to v, for the optional price fields.
func Float(v float64) *float64 { return &v }

// PageStatus classifies the outcome of one paginated catalog request.
type PageStatus int

const (
	// PageSuccess means markup was obtained and can be extracted.
	PageSuccess PageStatus = iota

	// PageNotFound means the site reports the page does not exist: end of
	// pagination, not an error.
	PageNotFound

	// PageBlocked means the site's anti-automation defense rejected the
	// request. Fatal for the current crawl cycle.
	PageBlocked

	// PageMalformed means a network or decode failure: the page loop stops
	// but the condition is not escalated as blocking.
	PageMalformed
)

func (s PageStatus) String() string {
	switch s {
	case PageSuccess:
		return "success"
	case PageNotFound:
		return "not_found"
	case PageBlocked:
		return "blocked"
	case PageMalformed:
		return "malformed"
	default:
		return "unknown"
	}
}

// PageOutcome is the uniform result of one paginated fetch. Blocking and
// end-of-data are ordinary values here, not errors; the engine and the
// scheduler switch on Status.
type PageOutcome struct {
	Status     PageStatus
	Markup     string
	StatusCode int
	Err        error
}
