package scraper

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

const primaryPage = `<html><body><article>
<h1>Supported AI models in Copilot</h1>
<table>
<tr><th>Model</th><th>Provider</th><th>Status</th></tr>
<tr><td>GPT-5</td><td>OpenAI</td><td>GA</td></tr>
<tr><td>Claude Sonnet 4.5</td><td>Anthropic</td><td>GA</td></tr>
<tr><td>Gemini 2.5 Pro</td><td>Google</td><td>Preview</td></tr>
</table>
<table>
<tr><th>Model</th><th>Chat</th><th>Completions</th></tr>
<tr><td>GPT-5</td><td>1</td><td>Not applicable</td></tr>
<tr><td>Claude Opus 4.1</td><td>10</td><td>Not applicable</td></tr>
</table>
<table>
<tr><th>Model</th><th>Retirement date</th><th>Replacement</th></tr>
<tr><td>GPT-4o</td><td>2025-08-06</td><td>GPT-4.1</td></tr>
</table>
</article></body></html>`

func TestFetchPrimaryClassifiesRows(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, primaryPage)
	}))
	defer server.Close()

	fetcher := NewFetcherForSources(server.URL, nil, 5*time.Second, testLogger())
	snapshot, err := fetcher.FetchPrimary()
	require.NoError(t, err)

	require.Len(t, snapshot.Models, 3)
	assert.Equal(t, ModelRow{Name: "GPT-5", Provider: "OpenAI", Status: "GA"}, snapshot.Models[0])
	assert.Equal(t, "Preview", snapshot.Models[2].Status)

	require.Len(t, snapshot.Multipliers, 2)
	assert.Equal(t, Multiplier{Chat: "1", Completions: "Not applicable"}, snapshot.Multipliers["GPT-5"])
	assert.Equal(t, "10", snapshot.Multipliers["Claude Opus 4.1"].Chat)

	require.Len(t, snapshot.Retired, 1)
	assert.Equal(t, RetiredModel{Name: "GPT-4o", RetirementDate: "2025-08-06", Replacement: "GPT-4.1"}, snapshot.Retired[0])

	assert.Contains(t, snapshot.RawText, "Supported AI models in Copilot")
}

func TestFetchPrimaryFailureAbortsAttempt(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	fetcher := NewFetcherForSources(server.URL, nil, 5*time.Second, testLogger())
	_, err := fetcher.FetchPrimary()
	assert.Error(t, err)
}

func TestFetchDetailSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><main><p>Model pricing and context windows.</p></main></body></html>`)
	}))
	defer server.Close()

	fetcher := NewFetcherForSources("", nil, 5*time.Second, testLogger())
	snapshot := fetcher.FetchDetail(Source{ID: "openai_models", Name: "OpenAI model listing", URL: server.URL})

	assert.Equal(t, StatusSuccess, snapshot.Status)
	assert.Contains(t, snapshot.Content, "Model pricing and context windows.")
	assert.Empty(t, snapshot.Err)
}

func TestFetchDetailDegradesOnError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	fetcher := NewFetcherForSources("", nil, 5*time.Second, testLogger())
	snapshot := fetcher.FetchDetail(Source{ID: "xai_models", Name: "xAI Grok model listing", URL: server.URL})

	assert.Equal(t, StatusError, snapshot.Status)
	assert.Empty(t, snapshot.Content)
	assert.NotEmpty(t, snapshot.Err)
}

func TestFetchDetailTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
	}))
	defer server.Close()

	fetcher := NewFetcherForSources("", nil, 50*time.Millisecond, testLogger())
	snapshot := fetcher.FetchDetail(Source{ID: "google_models", Name: "Google AI model listing", URL: server.URL})

	assert.Equal(t, StatusTimeout, snapshot.Status)
	assert.Empty(t, snapshot.Content)
}

func TestScrapeAllReportsProgress(t *testing.T) {
	primary := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, primaryPage)
	}))
	defer primary.Close()

	detail := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><article>Detail page content.</article></body></html>`)
	}))
	defer detail.Close()

	sources := []Source{
		{ID: "a", Name: "Source A", URL: detail.URL},
		{ID: "b", Name: "Source B", URL: detail.URL},
	}

	var mu sync.Mutex
	var checkpoints []int
	fetcher := NewFetcherForSources(primary.URL, sources, 5*time.Second, testLogger())
	result, err := fetcher.ScrapeAll(func(pct int, msg string) {
		mu.Lock()
		checkpoints = append(checkpoints, pct)
		mu.Unlock()
	})
	require.NoError(t, err)

	assert.Len(t, result.Primary.Models, 3)
	assert.Len(t, result.Details, 2)
	for _, d := range result.Details {
		assert.Equal(t, StatusSuccess, d.Status)
	}

	require.NotEmpty(t, checkpoints)
	assert.Equal(t, 5, checkpoints[0])
	last := checkpoints[0]
	for _, pct := range checkpoints[1:] {
		assert.GreaterOrEqual(t, pct, last)
		last = pct
	}
	assert.Equal(t, 40, checkpoints[len(checkpoints)-1])
}

func TestScrapeAllDetailFailureDoesNotAbort(t *testing.T) {
	primary := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, primaryPage)
	}))
	defer primary.Close()

	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer broken.Close()

	sources := []Source{{ID: "broken", Name: "Broken source", URL: broken.URL}}
	fetcher := NewFetcherForSources(primary.URL, sources, 5*time.Second, testLogger())

	result, err := fetcher.ScrapeAll(nil)
	require.NoError(t, err)
	require.Len(t, result.Details, 1)
	assert.Equal(t, StatusError, result.Details[0].Status)
}

func TestExtractTextPrefersArticleAndTruncates(t *testing.T) {
	long := strings.Repeat("abcdefghij", 2000) // 20000 chars
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `<html><body><nav>navigation chrome</nav><article>%s</article></body></html>`, long)
	}))
	defer server.Close()

	fetcher := NewFetcherForSources("", nil, 5*time.Second, testLogger())
	snapshot := fetcher.FetchDetail(Source{ID: "long", Name: "Long page", URL: server.URL})

	assert.NotContains(t, snapshot.Content, "navigation chrome")
	assert.True(t, strings.HasSuffix(snapshot.Content, "... (truncated)"))
	assert.LessOrEqual(t, len(snapshot.Content), maxExcerptChars+len("\n... (truncated)"))
}

func TestExtractTextTruncationKeepsValidUTF8(t *testing.T) {
	// One ASCII byte shifts every following three-byte rune off the byte
	// boundary the excerpt cap would otherwise land on.
	long := "a" + strings.Repeat("日", maxExcerptChars/3+2000)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `<html><body><article>%s</article></body></html>`, long)
	}))
	defer server.Close()

	fetcher := NewFetcherForSources("", nil, 5*time.Second, testLogger())
	snapshot := fetcher.FetchDetail(Source{ID: "multibyte", Name: "Multibyte page", URL: server.URL})

	assert.Equal(t, StatusSuccess, snapshot.Status)
	assert.True(t, strings.HasSuffix(snapshot.Content, "... (truncated)"))
	assert.True(t, utf8.ValidString(snapshot.Content))
}
