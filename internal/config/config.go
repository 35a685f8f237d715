package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/osoriodev/coursebot/internal/bot"
	"github.com/osoriodev/coursebot/internal/history"
)

// Config holds the bot configuration. Values are read by viper from
// environment variables prefixed with BOT_ (e.g. BOT_TELEGRAM_TOKEN).
type Config struct {
	TelegramToken   string
	TelegramAPIBase string
	PollTimeout     int
	SleepSeconds    int

	OpenAIAPIKey      string
	OpenAIChatCompURL string
	OpenAIModel       string

	DocumentURL      string
	DocumentFilename string
	DocumentMaxChars int

	WebSearchEnabled bool
	WebSearchURL     string

	HistoryDBPath string
	HistoryWindow int

	Topic               string
	Resources           []bot.Resource
	RecommendedMaterial string

	LogFilePath   string
	AnonymizeLogs bool

	HealthAddr string
}

// Load reads configuration from the environment.
func Load() (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("BOT")
	v.AutomaticEnv()

	v.SetDefault("poll_timeout_seconds", 30)
	v.SetDefault("sleep_seconds", 1)
	v.SetDefault("openai_chat_completions_url", "https://openrouter.ai/api/v1/chat/completions")
	v.SetDefault("openai_model", "deepseek/deepseek-chat-v3.1")
	v.SetDefault("document_filename", "course-material.pdf")
	v.SetDefault("document_max_chars", 400000)
	v.SetDefault("web_search_enabled", true)
	v.SetDefault("web_search_url", "https://api.duckduckgo.com/")
	v.SetDefault("history_db_path", "state/coursebot.db")
	v.SetDefault("history_window", history.DefaultWindow)
	v.SetDefault("topic", "Artificial Intelligence")
	v.SetDefault("resource_links", "")
	v.SetDefault("recommended_material", "📘 Recommended reading: the course material sent by /start covers the whole syllabus.")
	v.SetDefault("log_file_path", "logs/interactions.log")
	v.SetDefault("anonymize_logs", false)
	v.SetDefault("health_addr", ":8080")

	token := v.GetString("telegram_token")
	if token == "" {
		return Config{}, fmt.Errorf("BOT_TELEGRAM_TOKEN is required in environment")
	}
	apiKey := v.GetString("openai_api_key")
	if apiKey == "" {
		return Config{}, fmt.Errorf("BOT_OPENAI_API_KEY is required in environment")
	}
	documentURL := v.GetString("document_url")
	if documentURL == "" {
		return Config{}, fmt.Errorf("BOT_DOCUMENT_URL is required in environment")
	}
	window := v.GetInt("history_window")
	if window <= 0 {
		return Config{}, fmt.Errorf("BOT_HISTORY_WINDOW must be positive")
	}

	resources, err := parseResources(v.GetString("resource_links"))
	if err != nil {
		return Config{}, err
	}

	return Config{
		TelegramToken:       token,
		TelegramAPIBase:     fmt.Sprintf("https://api.telegram.org/bot%s", token),
		PollTimeout:         v.GetInt("poll_timeout_seconds"),
		SleepSeconds:        v.GetInt("sleep_seconds"),
		OpenAIAPIKey:        apiKey,
		OpenAIChatCompURL:   v.GetString("openai_chat_completions_url"),
		OpenAIModel:         v.GetString("openai_model"),
		DocumentURL:         documentURL,
		DocumentFilename:    v.GetString("document_filename"),
		DocumentMaxChars:    v.GetInt("document_max_chars"),
		WebSearchEnabled:    v.GetBool("web_search_enabled"),
		WebSearchURL:        v.GetString("web_search_url"),
		HistoryDBPath:       v.GetString("history_db_path"),
		HistoryWindow:       window,
		Topic:               v.GetString("topic"),
		Resources:           resources,
		RecommendedMaterial: v.GetString("recommended_material"),
		LogFilePath:         v.GetString("log_file_path"),
		AnonymizeLogs:       v.GetBool("anonymize_logs"),
		HealthAddr:          v.GetString("health_addr"),
	}, nil
}

// parseResources parses BOT_RESOURCE_LINKS: semicolon-separated entries of
// "key|label|url". The url may be empty; such entries fall back to the
// recommended-material text when selected.
func parseResources(raw string) ([]bot.Resource, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	var resources []bot.Resource
	for _, entry := range strings.Split(raw, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.SplitN(entry, "|", 3)
		if len(parts) < 2 {
			return nil, fmt.Errorf("BOT_RESOURCE_LINKS entry %q must be key|label|url", entry)
		}
		r := bot.Resource{
			Key:   strings.TrimSpace(parts[0]),
			Label: strings.TrimSpace(parts[1]),
		}
		if len(parts) == 3 {
			r.URL = strings.TrimSpace(parts[2])
		}
		if r.Key == "" || r.Label == "" {
			return nil, fmt.Errorf("BOT_RESOURCE_LINKS entry %q has empty key or label", entry)
		}
		resources = append(resources, r)
	}
	return resources, nil
}
