package parser

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
)

func selectionFrom(t *testing.T, markup string) *goquery.Selection {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		t.Fatalf("parse markup: %v", err)
	}
	return doc.Find("li.item").First()
}

func TestResolveIdentityPrefersLinkSlug(t *testing.T) {
	entry := selectionFrom(t, `<li class="item">
		<button class="btn-cart" onclick="setLocation('/checkout/cart/product/19132/')"></button>
	</li>`)

	got := ResolveIdentity(entry, "https://www.bernabei.it/barolo-docg-2019/", "Barolo DOCG 2019")
	if got != "barolo-docg-2019" {
		t.Errorf("identity = %q, want %q", got, "barolo-docg-2019")
	}
}

func TestResolveIdentityStripsQueryString(t *testing.T) {
	got := ResolveIdentity(nil, "https://www.bernabei.it/barolo-docg-2019?utm_source=x", "Barolo")
	if got != "barolo-docg-2019" {
		t.Errorf("identity = %q, want %q", got, "barolo-docg-2019")
	}
}

func TestResolveIdentityCartButtonFallback(t *testing.T) {
	entry := selectionFrom(t, `<li class="item">
		<button class="btn-cart" onclick="setLocation('/checkout/cart/product/19132/')"></button>
	</li>`)

	// An empty link leaves no slug, so the cart action's numeric ID wins.
	got := ResolveIdentity(entry, "", "Barolo DOCG 2019")
	if got != "19132" {
		t.Errorf("identity = %q, want %q", got, "19132")
	}
}

func TestResolveIdentityPriceElementFallback(t *testing.T) {
	entry := selectionFrom(t, `<li class="item">
		<div class="price-box"><span id="product-price-20871" class="price">€ 12,90</span></div>
	</li>`)

	got := ResolveIdentity(entry, "", "Chianti Classico")
	if got != "20871" {
		t.Errorf("identity = %q, want %q", got, "20871")
	}
}

func TestResolveIdentityHashedNameFallback(t *testing.T) {
	entry := selectionFrom(t, `<li class="item"></li>`)

	got := ResolveIdentity(entry, "", "Barolo DOCG 2019")
	if !strings.HasPrefix(got, HashedIDPrefix) {
		t.Fatalf("identity = %q, want prefix %q", got, HashedIDPrefix)
	}

	// The hash must survive cosmetic whitespace and case changes.
	again := ResolveIdentity(entry, "", "  barolo   DOCG \t 2019 ")
	if got != again {
		t.Errorf("hashed identity unstable: %q vs %q", got, again)
	}

	other := ResolveIdentity(entry, "", "Barolo DOCG 2020")
	if got == other {
		t.Error("different names produced the same hashed identity")
	}
}

func TestLinkSlugRejectsBareHost(t *testing.T) {
	tests := []struct {
		link string
		want string
	}{
		{"https://www.bernabei.it/barolo-docg-2019/", "barolo-docg-2019"},
		{"https://www.bernabei.it/", ""},
		{"https://www.bernabei.it", ""},
		{"/vino/barolo-docg-2019", "barolo-docg-2019"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := linkSlug(tt.link); got != tt.want {
			t.Errorf("linkSlug(%q) = %q, want %q", tt.link, got, tt.want)
		}
	}
}
