package websearch

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Snippet assembly bounds. The concatenated result is cut at maxChars
// regardless of word boundaries.
const (
	maxSnippets = 5
	maxChars    = 1500
)

// Client queries a DuckDuckGo-style instant answer API for short text
// snippets. It is strictly best-effort: every failure path yields an empty
// string so a broken or slow search never blocks an answer.
type Client struct {
	endpoint   string
	httpClient *http.Client
	log        *logrus.Logger
}

// NewClient creates a search client for the given instant answer endpoint.
func NewClient(endpoint string, timeout time.Duration, log *logrus.Logger) *Client {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Client{
		endpoint: endpoint,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		log: log,
	}
}

type relatedTopic struct {
	Text   string         `json:"Text"`
	Topics []relatedTopic `json:"Topics"`
}

type searchResponse struct {
	AbstractText  string         `json:"AbstractText"`
	RelatedTopics []relatedTopic `json:"RelatedTopics"`
}

// Search returns up to five snippets for the query, joined by blank lines
// and truncated to 1500 characters. It never returns an error.
func (c *Client) Search(ctx context.Context, query string) string {
	params := url.Values{}
	params.Set("q", query)
	params.Set("format", "json")
	params.Set("no_html", "1")
	params.Set("skip_disambig", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		c.warn(err, "build search request")
		return ""
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.warn(err, "search request failed")
		return ""
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.log.WithField("status", resp.StatusCode).Debug("search returned non-success status")
		return ""
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.warn(err, "read search response")
		return ""
	}

	var parsed searchResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		c.warn(err, "parse search response")
		return ""
	}

	snippets := make([]string, 0, maxSnippets)
	if text := strings.TrimSpace(parsed.AbstractText); text != "" {
		snippets = append(snippets, text)
	}
	snippets = collectTopics(snippets, parsed.RelatedTopics)

	joined := strings.Join(snippets, "\n\n")
	runes := []rune(joined)
	if len(runes) > maxChars {
		joined = string(runes[:maxChars])
	}
	return joined
}

// collectTopics walks related topics depth-first, flattening nested topic
// groups, until the snippet budget is spent.
func collectTopics(snippets []string, topics []relatedTopic) []string {
	for _, t := range topics {
		if len(snippets) >= maxSnippets {
			break
		}
		if text := strings.TrimSpace(t.Text); text != "" {
			snippets = append(snippets, text)
			continue
		}
		if len(t.Topics) > 0 {
			snippets = collectTopics(snippets, t.Topics)
		}
	}
	return snippets
}

func (c *Client) warn(err error, msg string) {
	c.log.WithError(err).Debug(msg)
}
