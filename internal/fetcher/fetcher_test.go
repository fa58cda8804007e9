package fetcher

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"testing"

	"github.com/jarcoal/httpmock"

	"github.com/enotrack/enotrack/internal/config"
	"github.com/enotrack/enotrack/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

const categoryURL = "https://catalog.test/vino-online/"

func newTestFetcher(t *testing.T, transport http.RoundTripper) *PageFetcher {
	t.Helper()
	f, err := New(config.DefaultConfig(), testLogger)
	if err != nil {
		t.Fatalf("new fetcher: %v", err)
	}
	f.client.Transport = transport
	return f
}

func TestFetchPageUnwrapsJSONEnvelope(t *testing.T) {
	transport := httpmock.NewMockTransport()
	transport.RegisterResponderWithQuery("GET", categoryURL,
		map[string]string{"isAjax": "1", "p": "2"},
		httpmock.NewStringResponder(200, `{"productlist":"<li class=\"item\">x</li>"}`))

	f := newTestFetcher(t, transport)
	out := f.FetchPage(context.Background(), categoryURL, 2)

	if out.Status != types.PageSuccess {
		t.Fatalf("status = %s, want %s (err: %v)", out.Status, types.PageSuccess, out.Err)
	}
	if out.Markup != `<li class="item">x</li>` {
		t.Errorf("markup = %q, envelope not unwrapped", out.Markup)
	}
}

func TestFetchPageRawHTMLFallback(t *testing.T) {
	transport := httpmock.NewMockTransport()
	transport.RegisterResponderWithQuery("GET", categoryURL,
		map[string]string{"isAjax": "1", "p": "1"},
		httpmock.NewStringResponder(200, `<li class="item">raw</li>`))

	f := newTestFetcher(t, transport)
	out := f.FetchPage(context.Background(), categoryURL, 1)

	if out.Status != types.PageSuccess {
		t.Fatalf("status = %s, want %s (err: %v)", out.Status, types.PageSuccess, out.Err)
	}
	if out.Markup != `<li class="item">raw</li>` {
		t.Errorf("markup = %q, non-JSON body not passed through", out.Markup)
	}
}

func TestFetchPageStatusClassification(t *testing.T) {
	tests := []struct {
		status int
		want   types.PageStatus
	}{
		{http.StatusNotFound, types.PageNotFound},
		{http.StatusForbidden, types.PageBlocked},
		{http.StatusInternalServerError, types.PageMalformed},
		{http.StatusTooManyRequests, types.PageMalformed},
	}

	for _, tt := range tests {
		transport := httpmock.NewMockTransport()
		transport.RegisterResponderWithQuery("GET", categoryURL,
			map[string]string{"isAjax": "1", "p": "1"},
			httpmock.NewStringResponder(tt.status, ""))

		f := newTestFetcher(t, transport)
		out := f.FetchPage(context.Background(), categoryURL, 1)

		if out.Status != tt.want {
			t.Errorf("HTTP %d classified as %s, want %s", tt.status, out.Status, tt.want)
		}
		if out.StatusCode != tt.status {
			t.Errorf("HTTP %d: recorded status code %d", tt.status, out.StatusCode)
		}
	}
}

func TestFetchPageNetworkErrorIsMalformed(t *testing.T) {
	transport := httpmock.NewMockTransport()
	transport.RegisterResponderWithQuery("GET", categoryURL,
		map[string]string{"isAjax": "1", "p": "1"},
		httpmock.NewErrorResponder(errors.New("connection reset")))

	f := newTestFetcher(t, transport)
	out := f.FetchPage(context.Background(), categoryURL, 1)

	if out.Status != types.PageMalformed {
		t.Fatalf("status = %s, want %s", out.Status, types.PageMalformed)
	}
	var fe *types.FetchError
	if !errors.As(out.Err, &fe) {
		t.Fatalf("err = %T, want *types.FetchError", out.Err)
	}
	if fe.Page != 1 {
		t.Errorf("FetchError.Page = %d, want 1", fe.Page)
	}
}

func TestBuildPageURL(t *testing.T) {
	got, err := buildPageURL("https://catalog.test/vino-online/?sort=asc", 7)
	if err != nil {
		t.Fatalf("buildPageURL: %v", err)
	}
	want := "https://catalog.test/vino-online/?isAjax=1&p=7"
	if got != want {
		t.Errorf("url = %q, want %q (pre-existing query not dropped)", got, want)
	}
}
