package chat

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"
)

// DocumentSource exposes the cached course document text.
type DocumentSource interface {
	Content() string
}

// Searcher returns supplementary web text for a question. Implementations
// are best-effort: a failed search yields an empty string, never an error.
type Searcher interface {
	Search(ctx context.Context, query string) string
}

// HistoryProvider returns the retained turns for a chat, oldest first.
type HistoryProvider interface {
	Recent(chatID int64) ([]Message, error)
}

// Completion is the common response model for model providers.
type Completion struct {
	Content      string
	InputTokens  int
	OutputTokens int
}

// Completer is the model provider abstraction used by the engine.
type Completer interface {
	ChatCompletion(ctx context.Context, messages []Message, temperature float32) (Completion, error)
}

// Generation temperatures per grounding mode. Document-only answers stay
// close to the source; blended answers get more room.
const (
	documentTemperature = 0.3
	blendedTemperature  = 0.7
)

// Answer is the outcome of one successful exchange.
type Answer struct {
	Text    string
	Source  string
	UsedWeb bool
}

// Engine produces one grounded answer per question: it checks document
// availability, gathers best-effort web snippets, assembles the prompt, and
// calls the model. It returns structured errors, never user-facing text.
type Engine struct {
	Docs      DocumentSource
	Web       Searcher
	History   HistoryProvider
	Model     Completer
	Assembler Assembler
	Log       *logrus.Logger
}

// Answer generates a reply for the question in the given chat.
func (e *Engine) Answer(ctx context.Context, chatID int64, question string) (Answer, error) {
	if strings.TrimSpace(question) == "" {
		return Answer{}, ErrEmptyQuestion
	}

	document := e.Docs.Content()
	if strings.TrimSpace(document) == "" {
		return Answer{}, ErrDocumentUnavailable
	}

	snippets := ""
	if e.Web != nil {
		snippets = e.Web.Search(ctx, question)
	}

	var history []Message
	if e.History != nil {
		h, err := e.History.Recent(chatID)
		if err != nil {
			// History loss degrades follow-up quality but never blocks an answer.
			e.logger().WithError(err).WithField("chat_id", chatID).Warn("history read failed, answering without it")
		} else {
			history = h
		}
	}

	messages := e.Assembler.Assemble(document, snippets, history, question)

	temperature := float32(documentTemperature)
	usedWeb := snippets != ""
	if usedWeb {
		temperature = blendedTemperature
	}

	resp, err := e.Model.ChatCompletion(ctx, messages, temperature)
	if err != nil {
		return Answer{}, err
	}

	source := "document"
	if usedWeb {
		source = "document+web"
	}
	return Answer{Text: resp.Content, Source: source, UsedWeb: usedWeb}, nil
}

func (e *Engine) logger() *logrus.Logger {
	if e.Log != nil {
		return e.Log
	}
	return logrus.StandardLogger()
}
