// Package report renders the single-shot status summary.
package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/adevnylo/hll-seed-ping/internal/client/crcon"
	"github.com/adevnylo/hll-seed-ping/internal/models"
	"github.com/adevnylo/hll-seed-ping/internal/monitor"
	"github.com/adevnylo/hll-seed-ping/internal/notification"
)

const (
	width      = 58
	timeLayout = "2006/01/02 15:04:05"
)

var (
	colorAccent = lipgloss.AdaptiveColor{Light: "#0366d6", Dark: "#39BAE6"}
	colorMuted  = lipgloss.AdaptiveColor{Light: "#6a737d", Dark: "#6C7680"}
	colorWarn   = lipgloss.AdaptiveColor{Light: "#b08800", Dark: "#FFB454"}
	colorFail   = lipgloss.AdaptiveColor{Light: "#cb2431", Dark: "#F07178"}
)

type styles struct {
	header lipgloss.Style
	label  lipgloss.Style
	dim    lipgloss.Style
	warn   lipgloss.Style
	fail   lipgloss.Style
}

func newStyles(w io.Writer) styles {
	r := lipgloss.NewRenderer(w)
	return styles{
		header: r.NewStyle().
			Border(lipgloss.DoubleBorder()).
			BorderForeground(colorMuted).
			Foreground(colorAccent).
			Bold(true).
			Width(width - 2).
			Align(lipgloss.Center),
		label: r.NewStyle().Bold(true),
		dim:   r.NewStyle().Foreground(colorMuted),
		warn:  r.NewStyle().Foreground(colorWarn).Bold(true),
		fail:  r.NewStyle().Foreground(colorFail),
	}
}

// Report is everything print mode shows. Live and LiveErr are both zero when
// no fetch was attempted.
type Report struct {
	Settings     *models.SeedSettings
	SettingsPath string
	Live         *crcon.ServerStatus
	LiveErr      error
}

// Banner is printed when either mode starts.
func Banner(w io.Writer, mode string) {
	st := newStyles(w)
	fmt.Fprintln(w)
	fmt.Fprintln(w, st.header.Render("AUTOMATED DISCORD SEED PING FOR THE HLL CRCON TOOL"))
	fmt.Fprintln(w, st.dim.Render("    CREATED BY: dr_nylon (https://github.com/adevnylo)"))
	fmt.Fprintln(w)
	fmt.Fprintln(w, st.label.Render(fmt.Sprintf("             ===|| %s MODE STARTED ||===", strings.ToUpper(mode))))
	fmt.Fprintln(w)
}

func Render(w io.Writer, r Report) error {
	if r.Settings == nil {
		return fmt.Errorf("report: no settings")
	}
	st := newStyles(w)
	var b strings.Builder
	s := r.Settings

	section(&b, st, "STATISTICS")
	if s.TimeLastPlayerCount == nil {
		field(&b, st, "Server", s.ServerName+" (default value)")
		field(&b, st, "Player Count", "N/A")
		field(&b, st, "Last CRCON Check", "Never")
		field(&b, st, "Last Seed Ping", formatTime(s.TimeLastSeedMessage))
		field(&b, st, "Next Scheduled Check", "N/A")
		b.WriteString("\n")
		b.WriteString(st.warn.Render(`PLEASE NOTE: Run with "--daemon" or start the service.`))
		b.WriteString("\n")
	} else {
		next := s.TimeLastPlayerCount.Add(s.CheckEvery())
		field(&b, st, "Server", s.ServerName)
		field(&b, st, "Player Count", strconv.Itoa(s.LastPlayerCount))
		field(&b, st, "Last CRCON Check", formatTime(s.TimeLastPlayerCount))
		field(&b, st, "Last Seed Ping", formatTime(s.TimeLastSeedMessage))
		field(&b, st, "Next Scheduled Check", formatTime(&next))
	}

	switch {
	case r.Live != nil:
		section(&b, st, "LIVE")
		regime := monitor.Classify(r.Live.PlayerCount, s.PlayerCountThreshold, s.PlayerCountSeeded)
		field(&b, st, "Server", r.Live.ServerName)
		field(&b, st, "Player Count", strconv.Itoa(r.Live.PlayerCount))
		field(&b, st, "Current Map", r.Live.MapName)
		field(&b, st, "Regime", string(regime))
	case r.LiveErr != nil:
		section(&b, st, "LIVE")
		b.WriteString(st.fail.Render("Live check failed: " + r.LiveErr.Error()))
		b.WriteString("\n")
	}

	section(&b, st, `CURRENT "SERVICE MODE" CONFIGS`)
	if r.SettingsPath != "" {
		field(&b, st, "settings_file", r.SettingsPath)
	}
	field(&b, st, "api_url", s.APIURL)
	field(&b, st, "player_count_threshold", strconv.Itoa(s.PlayerCountThreshold))
	field(&b, st, "player_count_seeded", strconv.Itoa(s.PlayerCountSeeded))
	field(&b, st, "check_interval", strconv.Itoa(s.CheckInterval))
	field(&b, st, "seed_cooldown_time", strconv.Itoa(s.SeedCooldownTime))
	field(&b, st, "webhook_url", MaskWebhookURL(s.WebhookURL))
	block(&b, st, "webhook_content", "WEBHOOK CONTENT", s.WebhookContent)
	field(&b, st, "webhook_allowed_mentions", formatMentions(s.AllowedMentions))
	field(&b, st, "embed_title", s.EmbedTitle)
	block(&b, st, "embed_body", "EMBED BODY", s.EmbedBody)
	field(&b, st, "embed_color", s.EmbedColor)
	field(&b, st, "embed_footer_text", s.EmbedFooterText)
	field(&b, st, "embed_footer_icon_url", s.EmbedFooterIconURL)
	b.WriteString("\n")

	_, err := io.WriteString(w, b.String())
	return err
}

func section(b *strings.Builder, st styles, title string) {
	b.WriteString("\n")
	b.WriteString(st.header.Render(title))
	b.WriteString("\n\n")
}

func field(b *strings.Builder, st styles, label, value string) {
	b.WriteString(st.label.Render(label + ":"))
	b.WriteString(" ")
	b.WriteString(value)
	b.WriteString("\n")
}

// block prints multi-line values between delimiters so leading and trailing
// lines stay visible.
func block(b *strings.Builder, st styles, label, title, value string) {
	if !strings.Contains(value, "\n") {
		field(b, st, label, value)
		return
	}
	field(b, st, label, "[MULTIPLE LINES BELOW]")
	b.WriteString("\n")
	b.WriteString(st.dim.Render(fmt.Sprintf("      =======||  START OF %s  ||=======", title)))
	b.WriteString("\n\n")
	b.WriteString(value)
	b.WriteString("\n\n")
	b.WriteString(st.dim.Render(fmt.Sprintf("       =======||  END OF %s  ||=======", title)))
	b.WriteString("\n\n")
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "Never"
	}
	return t.Local().Format(timeLayout)
}

func formatMentions(m models.AllowedMentions) string {
	return fmt.Sprintf("parse=[%s] roles=[%s] users=[%s]",
		strings.Join(m.Parse, ", "), strings.Join(m.Roles, ", "), strings.Join(m.Users, ", "))
}

// MaskWebhookURL hides the token part of a webhook URL.
func MaskWebhookURL(raw string) string {
	_, token, err := notification.ParseWebhookURL(raw)
	if err != nil {
		return raw
	}
	keep := ""
	if len(token) > 8 {
		keep = token[len(token)-4:]
	}
	return strings.Replace(raw, token, "****"+keep, 1)
}
