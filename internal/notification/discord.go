package notification

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/adevnylo/hll-seed-ping/internal/config"
	"github.com/adevnylo/hll-seed-ping/internal/models"
)

const (
	DefaultTimeout = 10 * time.Second

	maxTitleLen       = 256
	maxDescriptionLen = 4096
)

// SendError wraps any failure to deliver a seeding message.
type SendError struct {
	Err error
}

func (e *SendError) Error() string { return "send seed message: " + e.Err.Error() }

func (e *SendError) Unwrap() error { return e.Err }

// WebhookExecutor is the part of *discordgo.Session the sender needs.
type WebhookExecutor interface {
	WebhookExecute(webhookID, token string, wait bool, data *discordgo.WebhookParams, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

type DiscordSender struct {
	Executor WebhookExecutor
	Logger   *zap.Logger
	Now      func() time.Time
}

// NewDiscordSender builds a sender on a discordgo session with an explicit
// HTTP timeout. Rate-limited requests are retried by discordgo when
// cfg.RateLimitRetry is set.
func NewDiscordSender(cfg config.DiscordConfig, logger *zap.Logger) (*DiscordSender, error) {
	session, err := discordgo.New("")
	if err != nil {
		return nil, err
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	session.Client = &http.Client{Timeout: timeout}
	session.ShouldRetryOnRateLimit = cfg.RateLimitRetry
	if cfg.MaxRetries >= 0 {
		session.MaxRestRetries = cfg.MaxRetries
	}
	return &DiscordSender{Executor: session, Logger: logger}, nil
}

func (s *DiscordSender) Send(ctx context.Context, settings *models.SeedSettings, playerCount int, mapName string) error {
	if s == nil || s.Executor == nil {
		return &SendError{Err: errors.New("discord sender not configured")}
	}
	id, token, err := ParseWebhookURL(settings.WebhookURL)
	if err != nil {
		return &SendError{Err: err}
	}
	params := s.Compose(settings, playerCount, mapName)
	if _, err := s.Executor.WebhookExecute(id, token, true, params, discordgo.WithContext(ctx)); err != nil {
		return &SendError{Err: err}
	}
	if s.Logger != nil {
		s.Logger.Info("seed message sent",
			zap.String("webhook_id", id),
			zap.Int("player_count", playerCount),
			zap.String("map", mapName),
		)
	}
	return nil
}

// Compose builds the webhook payload: the configured content plus one embed.
func (s *DiscordSender) Compose(settings *models.SeedSettings, playerCount int, mapName string) *discordgo.WebhookParams {
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}

	title := strings.TrimSpace(settings.EmbedTitle)
	if title == "" {
		title = settings.ServerName
	}

	color, err := ParseColor(settings.EmbedColor)
	if err != nil && s.Logger != nil {
		s.Logger.Warn("invalid embed color, sending without color",
			zap.String("embed_color", settings.EmbedColor), zap.Error(err))
	}

	embed := &discordgo.MessageEmbed{
		Title:       truncate(title, maxTitleLen),
		Description: truncate(FormatBody(settings.EmbedBody, playerCount, mapName), maxDescriptionLen),
		Color:       color,
		Timestamp:   now().UTC().Format(time.RFC3339),
	}
	if settings.EmbedFooterText != "" || settings.EmbedFooterIconURL != "" {
		embed.Footer = &discordgo.MessageEmbedFooter{
			Text:    settings.EmbedFooterText,
			IconURL: settings.EmbedFooterIconURL,
		}
	}

	return &discordgo.WebhookParams{
		Content:         settings.WebhookContent,
		Embeds:          []*discordgo.MessageEmbed{embed},
		AllowedMentions: allowedMentions(settings.AllowedMentions),
	}
}

// allowedMentions maps the stored allow-list to Discord's shape. Discord
// rejects a parse type that is also given as an explicit id list, so the
// explicit list wins.
func allowedMentions(m models.AllowedMentions) *discordgo.MessageAllowedMentions {
	out := &discordgo.MessageAllowedMentions{
		Parse: []discordgo.AllowedMentionType{},
		Roles: cleanIDs(m.Roles),
		Users: cleanIDs(m.Users),
	}
	seen := map[string]bool{}
	for _, p := range m.Parse {
		p = strings.ToLower(strings.TrimSpace(p))
		if seen[p] {
			continue
		}
		seen[p] = true
		switch discordgo.AllowedMentionType(p) {
		case discordgo.AllowedMentionTypeRoles:
			if len(out.Roles) > 0 {
				continue
			}
		case discordgo.AllowedMentionTypeUsers:
			if len(out.Users) > 0 {
				continue
			}
		case discordgo.AllowedMentionTypeEveryone:
		default:
			continue
		}
		out.Parse = append(out.Parse, discordgo.AllowedMentionType(p))
	}
	return out
}

func cleanIDs(in []string) []string {
	out := []string{}
	for _, id := range in {
		if id = strings.TrimSpace(id); id != "" {
			out = append(out, id)
		}
	}
	return out
}

// webhookHosts are the hosts Discord issues webhook URLs on. Messages are
// always posted to discordgo's API endpoint.
var webhookHosts = map[string]bool{
	"discord.com":           true,
	"ptb.discord.com":       true,
	"canary.discord.com":    true,
	"discordapp.com":        true,
	"ptb.discordapp.com":    true,
	"canary.discordapp.com": true,
}

// ParseWebhookURL extracts the id and token from
// https://discord.com/api/webhooks/<id>/<token>.
func ParseWebhookURL(raw string) (id, token string, err error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", "", errors.New("webhook_url is empty")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", fmt.Errorf("parse webhook_url: %w", err)
	}
	if u.Scheme != "https" {
		return "", "", fmt.Errorf("webhook_url %q is not an https url", raw)
	}
	if !webhookHosts[strings.ToLower(u.Hostname())] {
		return "", "", fmt.Errorf("webhook_url host %q is not a Discord host", u.Host)
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i := 0; i+2 < len(parts); i++ {
		if parts[i] != "webhooks" {
			continue
		}
		id, token = parts[i+1], parts[i+2]
		if _, err := strconv.ParseUint(id, 10, 64); err != nil {
			return "", "", fmt.Errorf("webhook id %q is not numeric", id)
		}
		if token == "" {
			break
		}
		return id, token, nil
	}
	return "", "", fmt.Errorf("webhook_url %q has no /webhooks/<id>/<token> path", raw)
}

// ParseColor reads a hex color such as "03b2f8", "#03b2f8" or "0x03b2f8".
func ParseColor(v string) (int, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, nil
	}
	v = strings.TrimPrefix(v, "#")
	v = strings.TrimPrefix(strings.TrimPrefix(v, "0x"), "0X")
	n, err := strconv.ParseUint(v, 16, 24)
	if err != nil {
		return 0, fmt.Errorf("embed_color %q: %w", v, err)
	}
	return int(n), nil
}

func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	r := []rune(s)
	return string(r[:limit-1]) + "…"
}
