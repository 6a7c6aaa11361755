package monitor

import (
	"time"

	"github.com/adevnylo/hll-seed-ping/internal/config"
	"github.com/adevnylo/hll-seed-ping/internal/models"
)

// DefaultSettings builds the record written on first run or after the
// settings file was found corrupt.
func DefaultSettings(cfg config.Config) *models.SeedSettings {
	d := cfg.Defaults
	slow := cfg.Monitor.CheckIntervalSlow
	if slow <= 0 {
		slow = DefaultSlowInterval
	}
	return &models.SeedSettings{
		ServerName:           d.ServerName,
		APIURL:               cfg.CRCON.StatusURL(),
		PlayerCountThreshold: d.PlayerCountThreshold,
		PlayerCountSeeded:    d.PlayerCountSeeded,
		CheckInterval:        seconds(slow),
		SeedCooldownTime:     seconds(d.SeedCooldownTime),
		WebhookURL:           d.WebhookURL,
		WebhookContent:       d.WebhookContent,
		AllowedMentions: models.AllowedMentions{
			Parse: nonNil(d.AllowedMentions.Parse),
			Roles: nonNil(d.AllowedMentions.Roles),
			Users: nonNil(d.AllowedMentions.Users),
		},
		EmbedTitle:         d.Embed.Title,
		EmbedBody:          d.Embed.Body,
		EmbedColor:         d.Embed.Color,
		EmbedFooterText:    d.Embed.FooterText,
		EmbedFooterIconURL: d.Embed.FooterIconURL,
	}
}

func seconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(d / time.Second)
}

func nonNil(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	return out
}
