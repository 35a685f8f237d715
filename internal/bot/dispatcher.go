package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sourcegraph/conc"

	"github.com/osoriodev/coursebot/internal/analytics"
	"github.com/osoriodev/coursebot/internal/chat"
	"github.com/osoriodev/coursebot/internal/telegram"
)

// Messenger is the platform surface the dispatcher drives.
type Messenger interface {
	GetUpdates(offset int64, timeout int) ([]telegram.Update, error)
	SendMessage(chatID int64, text string) error
	SendChatAction(chatID int64, action string) error
	SendDocument(chatID int64, filename string, data []byte, caption string) error
	SendResourceMenu(chatID int64, prompt string, resources []telegram.Resource) error
}

// Answerer produces one grounded answer per question.
type Answerer interface {
	Answer(ctx context.Context, chatID int64, question string) (chat.Answer, error)
}

// Appender persists conversation turns after a successful exchange.
type Appender interface {
	Append(chatID int64, role, content string) error
}

// Fetcher provides the raw course document for attachment sending.
type Fetcher interface {
	Fetch(ctx context.Context) ([]byte, error)
}

// Recorder receives interaction records, fire-and-forget.
type Recorder interface {
	Record(x analytics.Exchange)
}

// Resource is one configured course resource offered via the menu.
type Resource struct {
	Key   string
	Label string
	URL   string
}

// User-facing texts. The dispatcher is the only layer that renders errors
// for users; causes stay in operator logs.
const (
	msgDocumentUnavailable = "❌ The course material is not available. Please contact the administrator."
	msgEmptyQuestion       = "❌ Please send a non-empty question."
	msgAnswerFailed        = "❌ Something went wrong while generating the answer. Please try again in a moment."
	msgDownloadFailed      = "❌ Could not download the course material. Please try again later."
	msgBusy                = "⌛ I'm still working on your previous questions. Please wait a moment."
	msgDownloading         = "📄 Downloading the course material..."
	msgDocumentCaption     = "📚 Here is the course material."
	msgInvite              = "📖 Read the material and ask any question about its content.\n\n💬 Just type your question and I'll answer based on the course material."
	msgResourcePrompt      = "📚 Course resources:"
)

const resourceCallbackPrefix = "resource:"

// Config wires a Dispatcher.
type Config struct {
	Messenger           Messenger
	Engine              Answerer
	History             Appender
	Docs                Fetcher
	Analytics           Recorder
	Log                 *logrus.Logger
	Topic               string
	PollTimeout         int
	Sleep               time.Duration
	DocumentFilename    string
	Resources           []Resource
	RecommendedMaterial string
}

// Dispatcher long-polls the platform for updates and routes them: commands,
// resource callbacks, and free-text questions. Each chat gets its own serial
// worker so replies within one chat keep question order; different chats
// proceed independently.
type Dispatcher struct {
	cfg Config
	log *logrus.Logger

	mu      sync.Mutex
	workers map[int64]chan string
	wg      conc.WaitGroup
}

// New creates a Dispatcher from the given config.
func New(cfg Config) *Dispatcher {
	log := cfg.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	if cfg.Sleep <= 0 {
		cfg.Sleep = time.Second
	}
	return &Dispatcher{
		cfg:     cfg,
		log:     log,
		workers: make(map[int64]chan string),
	}
}

// Run polls for updates until the context is cancelled, then waits for
// in-flight exchanges to drain.
func (d *Dispatcher) Run(ctx context.Context) error {
	defer d.wg.Wait()

	var offset int64
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		updates, err := d.cfg.Messenger.GetUpdates(offset, d.cfg.PollTimeout)
		if err != nil {
			d.log.WithError(err).Warn("getUpdates failed")
			if !sleepCtx(ctx, d.cfg.Sleep) {
				return ctx.Err()
			}
			continue
		}

		for _, update := range updates {
			offset = update.UpdateID + 1
			if update.Message == nil || update.Message.Text == nil {
				continue
			}
			text := strings.TrimSpace(*update.Message.Text)
			if text == "" {
				continue
			}
			d.enqueue(ctx, update.Message.Chat.ID, text)
		}
	}
}

// enqueue hands the message to the chat's serial worker, creating one on
// first contact. A full queue gets a busy notice instead of blocking the
// poll loop (which would stall unrelated chats).
func (d *Dispatcher) enqueue(ctx context.Context, chatID int64, text string) {
	d.mu.Lock()
	ch, ok := d.workers[chatID]
	if !ok {
		ch = make(chan string, 32)
		d.workers[chatID] = ch
		d.wg.Go(func() {
			d.chatWorker(ctx, chatID, ch)
		})
	}
	d.mu.Unlock()

	select {
	case ch <- text:
	default:
		d.log.WithField("chat_id", chatID).Warn("chat queue full, rejecting message")
		if err := d.cfg.Messenger.SendMessage(chatID, msgBusy); err != nil {
			d.log.WithError(err).WithField("chat_id", chatID).Warn("busy notice failed")
		}
	}
}

func (d *Dispatcher) chatWorker(ctx context.Context, chatID int64, ch <-chan string) {
	for {
		select {
		case <-ctx.Done():
			return
		case text := <-ch:
			d.handle(ctx, chatID, text)
		}
	}
}

func (d *Dispatcher) handle(ctx context.Context, chatID int64, text string) {
	switch {
	case text == "/start":
		d.handleStart(ctx, chatID)
	case text == "/materials":
		d.handleMaterials(chatID)
	case strings.HasPrefix(text, resourceCallbackPrefix):
		d.handleResource(chatID, strings.TrimPrefix(text, resourceCallbackPrefix))
	default:
		d.handleQuestion(ctx, chatID, text)
	}
}

func (d *Dispatcher) handleStart(ctx context.Context, chatID int64) {
	welcome := fmt.Sprintf("Welcome! I'm the assistant for the %s course.", d.cfg.Topic)
	d.send(chatID, welcome)
	d.send(chatID, msgDownloading)

	data, err := d.cfg.Docs.Fetch(ctx)
	if err != nil {
		d.log.WithError(err).WithField("chat_id", chatID).Warn("document fetch for /start failed")
		d.send(chatID, msgDownloadFailed)
		return
	}
	if err := d.cfg.Messenger.SendDocument(chatID, d.cfg.DocumentFilename, data, msgDocumentCaption); err != nil {
		d.log.WithError(err).WithField("chat_id", chatID).Warn("sendDocument failed")
		d.send(chatID, msgDownloadFailed)
		return
	}
	d.send(chatID, msgInvite)
}

func (d *Dispatcher) handleMaterials(chatID int64) {
	resources := make([]telegram.Resource, 0, len(d.cfg.Resources))
	for _, r := range d.cfg.Resources {
		resources = append(resources, telegram.Resource{
			Label:    r.Label,
			Callback: resourceCallbackPrefix + r.Key,
		})
	}
	if err := d.cfg.Messenger.SendResourceMenu(chatID, msgResourcePrompt, resources); err != nil {
		d.log.WithError(err).WithField("chat_id", chatID).Warn("sendResourceMenu failed")
	}
}

func (d *Dispatcher) handleResource(chatID int64, key string) {
	for _, r := range d.cfg.Resources {
		if r.Key == key && r.URL != "" {
			d.send(chatID, fmt.Sprintf("%s: %s", r.Label, r.URL))
			return
		}
	}
	d.send(chatID, d.cfg.RecommendedMaterial)
}

func (d *Dispatcher) handleQuestion(ctx context.Context, chatID int64, question string) {
	if err := d.cfg.Messenger.SendChatAction(chatID, "typing"); err != nil {
		d.log.WithError(err).WithField("chat_id", chatID).Debug("sendChatAction failed")
	}

	answer, err := d.cfg.Engine.Answer(ctx, chatID, question)
	if err != nil {
		d.log.WithError(err).WithField("chat_id", chatID).Warn("answer generation failed")
		d.send(chatID, presentError(err))
		return
	}

	d.send(chatID, answer.Text)

	if err := d.cfg.History.Append(chatID, chat.RoleUser, question); err != nil {
		d.log.WithError(err).WithField("chat_id", chatID).Warn("history append failed")
	}
	if err := d.cfg.History.Append(chatID, chat.RoleAssistant, answer.Text); err != nil {
		d.log.WithError(err).WithField("chat_id", chatID).Warn("history append failed")
	}

	if d.cfg.Analytics != nil {
		d.cfg.Analytics.Record(analytics.Exchange{
			ChatID:   chatID,
			Question: question,
			Answer:   answer.Text,
			Source:   answer.Source,
			UsedWeb:  answer.UsedWeb,
		})
	}
}

func (d *Dispatcher) send(chatID int64, text string) {
	if err := d.cfg.Messenger.SendMessage(chatID, text); err != nil {
		d.log.WithError(err).WithField("chat_id", chatID).Warn("sendMessage failed")
	}
}

// presentError maps a structured core error to a short, non-technical user
// notice. Every question gets exactly one outcome message.
func presentError(err error) string {
	switch {
	case errors.Is(err, chat.ErrDocumentUnavailable):
		return msgDocumentUnavailable
	case errors.Is(err, chat.ErrEmptyQuestion):
		return msgEmptyQuestion
	default:
		// Provider failures and anything unexpected: same short notice,
		// cause stays in the logs.
		return msgAnswerFailed
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
