// Package scraper fetches the public documentation pages the refresh
// pipeline feeds into the LLM analysis.
//
// Phase 1 scrapes the GitHub Copilot supported-models page into three row
// buckets (model rows, premium-multiplier rows, retirement rows). Phase 2
// collects bounded plain-text excerpts from each provider's model
// documentation. Detail sources degrade to an empty, status-tagged result
// on failure; only a primary fetch failure aborts the batch.
package scraper

import (
	"errors"
	"fmt"
	"net"
	"regexp"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"
	"github.com/sirupsen/logrus"
)

const (
	// PrimaryURL is the ground truth for catalog membership.
	PrimaryURL = "https://docs.github.com/en/copilot/reference/ai-models/supported-models"

	browserUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) " +
		"AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

	// maxExcerptChars bounds the plain-text excerpt taken from each page.
	maxExcerptChars = 15000
)

// Source is one secondary documentation page.
type Source struct {
	ID   string
	Name string
	URL  string
}

// DetailSources lists the provider pages scraped in phase 2.
var DetailSources = []Source{
	{ID: "github_model_comparison", Name: "GitHub Copilot model comparison", URL: "https://docs.github.com/en/copilot/reference/ai-models/model-comparison"},
	{ID: "openai_models", Name: "OpenAI model listing", URL: "https://platform.openai.com/docs/models"},
	{ID: "anthropic_models", Name: "Anthropic model listing", URL: "https://docs.anthropic.com/en/docs/about-claude/models/overview"},
	{ID: "google_models", Name: "Google AI model listing", URL: "https://ai.google.dev/gemini-api/docs/models"},
	{ID: "xai_models", Name: "xAI Grok model listing", URL: "https://docs.x.ai/docs/models"},
}

// Per-source fetch statuses.
const (
	StatusSuccess = "success"
	StatusTimeout = "timeout"
	StatusError   = "error"
)

// ModelRow is a phase-1 table row naming a supported model.
type ModelRow struct {
	Name     string `json:"name"`
	Provider string `json:"provider"`
	Status   string `json:"status"`
}

// Multiplier is a phase-1 premium-request multiplier row. Values are
// numeric strings or "Not applicable".
type Multiplier struct {
	Chat        string `json:"chat"`
	Completions string `json:"completions"`
}

// RetiredModel is a phase-1 retirement row.
type RetiredModel struct {
	Name           string `json:"name"`
	RetirementDate string `json:"retirement_date"`
	Replacement    string `json:"replacement"`
}

// PrimarySnapshot is the parsed supported-models page.
type PrimarySnapshot struct {
	URL         string                `json:"url"`
	Models      []ModelRow            `json:"models"`
	Multipliers map[string]Multiplier `json:"multipliers"`
	Retired     []RetiredModel        `json:"retired"`
	RawText     string                `json:"raw_text"`
}

// DetailSnapshot is one phase-2 source result. Content is empty unless
// Status is success.
type DetailSnapshot struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	URL     string `json:"url"`
	Status  string `json:"status"`
	Content string `json:"content"`
	Err     string `json:"error,omitempty"`
}

// Result aggregates both phases. Details carries one entry per configured
// source; ordering carries no meaning.
type Result struct {
	Primary PrimarySnapshot  `json:"copilot_models"`
	Details []DetailSnapshot `json:"detail_sources"`
}

// ProgressFunc receives percentage checkpoints and a human-readable message.
type ProgressFunc func(progress int, message string)

// Fetcher performs the HTTP fetches. URLs are fixed in production and
// overridable for tests.
type Fetcher struct {
	primaryURL string
	sources    []Source
	timeout    time.Duration
	logger     *logrus.Logger
}

func NewFetcher(timeout time.Duration, logger *logrus.Logger) *Fetcher {
	return &Fetcher{
		primaryURL: PrimaryURL,
		sources:    DetailSources,
		timeout:    timeout,
		logger:     logger,
	}
}

// NewFetcherForSources builds a fetcher against explicit URLs.
func NewFetcherForSources(primaryURL string, sources []Source, timeout time.Duration, logger *logrus.Logger) *Fetcher {
	return &Fetcher{
		primaryURL: primaryURL,
		sources:    sources,
		timeout:    timeout,
		logger:     logger,
	}
}

var (
	multiplierPattern = regexp.MustCompile(`^([\d.]+|Not applicable)$`)
	datePattern       = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}`)
	knownProviders    = []string{"openai", "anthropic", "google", "xai", "fine-tuned"}
)

// FetchPrimary scrapes the supported-models page and classifies its table
// rows into the three buckets. Rows matching no heuristic are dropped.
// A fetch failure aborts the refresh attempt and is returned as an error.
func (f *Fetcher) FetchPrimary() (*PrimarySnapshot, error) {
	snapshot := &PrimarySnapshot{
		URL:         f.primaryURL,
		Models:      []ModelRow{},
		Multipliers: map[string]Multiplier{},
		Retired:     []RetiredModel{},
	}

	var fetchErr error
	c := f.newCollector()

	c.OnHTML("html", func(e *colly.HTMLElement) {
		e.DOM.Find("table").Each(func(_ int, table *goquery.Selection) {
			table.Find("tr").Each(func(rowIdx int, tr *goquery.Selection) {
				// First row is the header.
				if rowIdx == 0 {
					return
				}
				f.classifyRow(snapshot, extractCells(tr))
			})
		})
		snapshot.RawText = extractText(e.DOM)
	})

	c.OnError(func(_ *colly.Response, err error) {
		fetchErr = err
	})

	if err := c.Visit(f.primaryURL); err != nil {
		fetchErr = err
	}
	if fetchErr != nil {
		return nil, fmt.Errorf("failed to fetch primary source: %w", fetchErr)
	}

	f.logger.WithFields(logrus.Fields{
		"models":      len(snapshot.Models),
		"multipliers": len(snapshot.Multipliers),
		"retired":     len(snapshot.Retired),
	}).Info("Primary source scraped")

	return snapshot, nil
}

// classifyRow sorts one table row into a bucket by its second column:
// a known provider means a model row, a numeric-or-"Not applicable" value
// means a multiplier row, a date means a retirement row.
func (f *Fetcher) classifyRow(snapshot *PrimarySnapshot, cells []string) {
	if len(cells) < 2 {
		return
	}
	name := strings.TrimSpace(cells[0])
	if name == "" {
		return
	}
	second := strings.TrimSpace(cells[1])

	switch {
	case len(cells) >= 3 && isKnownProvider(second):
		status := "GA"
		if len(cells) > 2 && strings.TrimSpace(cells[2]) != "" {
			status = strings.TrimSpace(cells[2])
		}
		snapshot.Models = append(snapshot.Models, ModelRow{
			Name:     name,
			Provider: second,
			Status:   status,
		})

	case multiplierPattern.MatchString(second):
		completions := "Not applicable"
		if len(cells) > 2 {
			completions = strings.TrimSpace(cells[2])
		}
		snapshot.Multipliers[name] = Multiplier{
			Chat:        second,
			Completions: completions,
		}

	case len(cells) >= 3 && datePattern.MatchString(second):
		snapshot.Retired = append(snapshot.Retired, RetiredModel{
			Name:           name,
			RetirementDate: second,
			Replacement:    strings.TrimSpace(cells[2]),
		})
	}
}

// FetchDetail scrapes one secondary source. It never fails: network errors
// degrade to a status-tagged snapshot with empty content so one bad source
// cannot abort the batch.
func (f *Fetcher) FetchDetail(source Source) DetailSnapshot {
	snapshot := DetailSnapshot{
		ID:     source.ID,
		Name:   source.Name,
		URL:    source.URL,
		Status: StatusSuccess,
	}

	var fetchErr error
	c := f.newCollector()

	c.OnHTML("html", func(e *colly.HTMLElement) {
		snapshot.Content = extractText(e.DOM)
	})

	c.OnError(func(_ *colly.Response, err error) {
		fetchErr = err
	})

	if err := c.Visit(source.URL); err != nil {
		fetchErr = err
	}

	if fetchErr != nil {
		snapshot.Content = ""
		snapshot.Err = fetchErr.Error()
		if isTimeout(fetchErr) {
			snapshot.Status = StatusTimeout
			f.logger.WithField("url", source.URL).Warn("Timeout scraping detail source")
		} else {
			snapshot.Status = StatusError
			f.logger.WithError(fetchErr).WithField("url", source.URL).Error("Error scraping detail source")
		}
	}

	return snapshot
}

// ScrapeAll runs phase 1 then phase 2. Detail sources are fetched
// concurrently and reported through progress as they complete; the final
// aggregation is order-independent.
func (f *Fetcher) ScrapeAll(progress ProgressFunc) (*Result, error) {
	if progress == nil {
		progress = func(int, string) {}
	}

	progress(5, "Fetching the model list from the GitHub documentation...")

	primary, err := f.FetchPrimary()
	if err != nil {
		return nil, err
	}

	progress(15, fmt.Sprintf("GitHub official: %d models detected, collecting detail sources...", len(primary.Models)))

	total := len(f.sources)
	results := make(chan DetailSnapshot, total)

	var wg sync.WaitGroup
	for _, source := range f.sources {
		wg.Add(1)
		go func(src Source) {
			defer wg.Done()
			results <- f.FetchDetail(src)
		}(source)
	}
	go func() {
		wg.Wait()
		close(results)
	}()

	details := make([]DetailSnapshot, 0, total)
	for snapshot := range results {
		details = append(details, snapshot)
		pct := 15 + len(details)*25/total // 15-40%
		progress(pct, fmt.Sprintf("Collecting detail sources... (%d/%d: %s)", len(details), total, snapshot.Name))
	}

	return &Result{Primary: *primary, Details: details}, nil
}

func (f *Fetcher) newCollector() *colly.Collector {
	c := colly.NewCollector(
		colly.UserAgent(browserUserAgent),
	)
	c.SetRequestTimeout(f.timeout)
	return c
}

func extractCells(tr *goquery.Selection) []string {
	var cells []string
	tr.Find("td, th").Each(func(_ int, cell *goquery.Selection) {
		cells = append(cells, strings.TrimSpace(cell.Text()))
	})
	return cells
}

// extractText pulls a bounded plain-text excerpt from the main content
// region, preferring semantic containers over the whole body.
func extractText(doc *goquery.Selection) string {
	for _, selector := range []string{"article", "main", ".content", ".documentation", "body"} {
		el := doc.Find(selector).First()
		if el.Length() == 0 {
			continue
		}
		el.Find("script, style, nav, footer, header").Remove()

		text := normalizeWhitespace(el.Text())
		if len(text) > maxExcerptChars {
			text = truncateRunes(text, maxExcerptChars) + "\n... (truncated)"
		}
		return text
	}
	return ""
}

// truncateRunes cuts text to at most limit bytes, backing up so the cut
// never splits a multi-byte rune.
func truncateRunes(text string, limit int) string {
	for limit > 0 && !utf8.RuneStart(text[limit]) {
		limit--
	}
	return text[:limit]
}

func normalizeWhitespace(text string) string {
	lines := strings.Split(text, "\n")
	var cleaned []string
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line != "" {
			cleaned = append(cleaned, line)
		}
	}
	return strings.Join(cleaned, "\n")
}

func isKnownProvider(value string) bool {
	lower := strings.ToLower(value)
	for _, provider := range knownProviders {
		if strings.Contains(lower, provider) {
			return true
		}
	}
	return false
}

func isTimeout(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	// colly surfaces client timeouts as plain errors in some paths
	return strings.Contains(err.Error(), "Client.Timeout") ||
		strings.Contains(err.Error(), "context deadline exceeded")
}
