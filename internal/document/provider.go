package document

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/ledongthuc/pdf"
	"github.com/sethvargo/go-retry"
	"github.com/sirupsen/logrus"
)

// Provider fetches the course document from a configured URL, extracts its
// plain text, and caches it in memory for the process lifetime. The cache is
// written on Load and only read afterwards, so concurrent requests share it
// without contention.
type Provider struct {
	url        string
	maxRunes   int
	httpClient *http.Client
	log        *logrus.Logger

	// extract is overridable in tests; defaults to PDF extraction.
	extract func(data []byte) (string, error)

	mu      sync.RWMutex
	content string
	loaded  bool
}

// NewProvider creates a document provider for the given URL. maxRunes bounds
// the cached text; zero or negative means unbounded.
func NewProvider(url string, maxRunes int, timeout time.Duration, log *logrus.Logger) *Provider {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Provider{
		url:      url,
		maxRunes: maxRunes,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		log:     log,
		extract: extractText,
	}
}

// Load downloads the document and caches its extracted text. Transport
// failures are retried a bounded number of times; HTTP error statuses are
// not. On failure the provider reports unloaded and empty content.
func (p *Provider) Load(ctx context.Context) error {
	data, err := p.fetch(ctx)
	if err != nil {
		p.mu.Lock()
		p.content = ""
		p.loaded = false
		p.mu.Unlock()
		return err
	}

	text, err := p.extract(data)
	if err != nil {
		p.mu.Lock()
		p.content = ""
		p.loaded = false
		p.mu.Unlock()
		return fmt.Errorf("extract document text: %w", err)
	}

	if p.maxRunes > 0 {
		runes := []rune(text)
		if len(runes) > p.maxRunes {
			p.log.WithFields(logrus.Fields{
				"chars": len(runes),
				"limit": p.maxRunes,
			}).Warn("document text truncated to fit prompt budget")
			text = string(runes[:p.maxRunes])
		}
	}

	p.mu.Lock()
	p.content = text
	p.loaded = true
	p.mu.Unlock()

	p.log.WithFields(logrus.Fields{
		"bytes": len(data),
		"chars": len([]rune(text)),
	}).Info("course document loaded")
	return nil
}

// Content returns the cached document text, or "" when not loaded.
func (p *Provider) Content() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if !p.loaded {
		return ""
	}
	return p.content
}

// Loaded reports whether the document has been loaded successfully.
func (p *Provider) Loaded() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.loaded
}

// Fetch downloads the raw document bytes for sending as an attachment. It
// does not touch the text cache.
func (p *Provider) Fetch(ctx context.Context) ([]byte, error) {
	return p.fetch(ctx)
}

func (p *Provider) fetch(ctx context.Context) ([]byte, error) {
	var data []byte
	backoff := retry.WithMaxRetries(2, retry.NewFibonacci(500*time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
		if err != nil {
			return err
		}
		resp, err := p.httpClient.Do(req)
		if err != nil {
			// Transient transport failure; worth another attempt.
			return retry.RetryableError(fmt.Errorf("document request failed: %w", err))
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			io.Copy(io.Discard, resp.Body)
			return fmt.Errorf("document request returned status %d", resp.StatusCode)
		}
		data, err = io.ReadAll(resp.Body)
		if err != nil {
			return retry.RetryableError(fmt.Errorf("read document body: %w", err))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}

// extractText pulls plain text from a PDF, one entry per page, joined with
// blank lines. Pages yielding no text are skipped. The parser panics on some
// malformed files, so panics are converted to errors here.
func extractText(data []byte) (_ string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("parse pdf: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("parse pdf: %w", err)
	}

	var pages []string
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		pages = append(pages, text)
	}
	return strings.Join(pages, "\n\n"), nil
}
