package analytics

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Exchange is one question/answer interaction to record.
type Exchange struct {
	ChatID   int64
	Question string
	Answer   string
	Source   string
	UsedWeb  bool
}

// Logger appends one JSON line per exchange to a file. It is fire-and-forget:
// write failures are swallowed and never affect the response path.
type Logger struct {
	log       *logrus.Logger
	anonymize bool
}

// New creates an interaction logger writing to the given path. An empty path
// discards all records.
func New(path string, anonymize bool) (*Logger, error) {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})

	if path == "" {
		log.SetOutput(io.Discard)
		return &Logger{log: log, anonymize: anonymize}, nil
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create log directory %s: %w", dir, err)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file %s: %w", path, err)
	}
	log.SetOutput(f)
	return &Logger{log: log, anonymize: anonymize}, nil
}

// Record writes one exchange entry.
func (l *Logger) Record(x Exchange) {
	l.log.WithFields(logrus.Fields{
		"exchange_id": uuid.NewString(),
		"user_id":     l.userID(x.ChatID),
		"question":    x.Question,
		"answer":      x.Answer,
		"source":      x.Source,
		"used_web":    x.UsedWeb,
	}).Info("exchange")
}

func (l *Logger) userID(chatID int64) string {
	id := strconv.FormatInt(chatID, 10)
	if !l.anonymize {
		return id
	}
	sum := sha256.Sum256([]byte(id))
	return hex.EncodeToString(sum[:])
}
