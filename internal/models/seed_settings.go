package models

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// SeedSettings is the single persisted record shared between cycles.
// A nil timestamp means the event never happened.
type SeedSettings struct {
	ServerName           string `json:"server_name"`
	APIURL               string `json:"api_url"`
	PlayerCountThreshold int    `json:"player_count_threshold"`
	PlayerCountSeeded    int    `json:"player_count_seeded"`
	// CheckInterval and SeedCooldownTime are in seconds.
	CheckInterval       int        `json:"check_interval"`
	SeedCooldownTime    int        `json:"seed_cooldown_time"`
	LastPlayerCount     int        `json:"last_player_count"`
	TimeLastPlayerCount *time.Time `json:"time_last_player_count"`
	TimeLastSeedMessage *time.Time `json:"time_last_seed_message"`

	WebhookURL         string          `json:"webhook_url"`
	WebhookContent     string          `json:"webhook_content"`
	AllowedMentions    AllowedMentions `json:"webhook_allowed_mentions"`
	EmbedTitle         string          `json:"embed_title"`
	EmbedBody          string          `json:"embed_body"`
	EmbedColor         string          `json:"embed_color"`
	EmbedFooterText    string          `json:"embed_footer_text"`
	EmbedFooterIconURL string          `json:"embed_footer_icon_url"`

	// decodeIssues lists fields that were present but unreadable; Normalize
	// reports and clears them.
	decodeIssues []string
}

// AllowedMentions restricts who the webhook content may ping.
type AllowedMentions struct {
	Parse []string `json:"parse"`
	Roles []string `json:"roles"`
	Users []string `json:"users"`
}

func (m AllowedMentions) Clone() AllowedMentions {
	return AllowedMentions{
		Parse: cloneStrings(m.Parse),
		Roles: cloneStrings(m.Roles),
		Users: cloneStrings(m.Users),
	}
}

func (s *SeedSettings) Clone() *SeedSettings {
	if s == nil {
		return nil
	}
	c := *s
	c.TimeLastPlayerCount = cloneTime(s.TimeLastPlayerCount)
	c.TimeLastSeedMessage = cloneTime(s.TimeLastSeedMessage)
	c.AllowedMentions = s.AllowedMentions.Clone()
	c.decodeIssues = cloneStrings(s.decodeIssues)
	return &c
}

func (s *SeedSettings) CheckEvery() time.Duration {
	return time.Duration(s.CheckInterval) * time.Second
}

func (s *SeedSettings) Cooldown() time.Duration {
	return time.Duration(s.SeedCooldownTime) * time.Second
}

// NextCheckAt is the earliest time the continuous loop will query the server
// again. Nil means a check is due immediately.
func (s *SeedSettings) NextCheckAt() *time.Time {
	if s.TimeLastSeedMessage == nil {
		return nil
	}
	t := s.TimeLastSeedMessage.Add(s.CheckEvery())
	return &t
}

// Normalize repairs numeric invariants broken by manual edits, taking values
// from defaults. It returns one description per repaired field.
func (s *SeedSettings) Normalize(defaults *SeedSettings) []string {
	fixed := s.decodeIssues
	s.decodeIssues = nil
	if strings.TrimSpace(s.APIURL) == "" && defaults.APIURL != "" {
		s.APIURL = defaults.APIURL
		fixed = append(fixed, "api_url was empty")
	}
	if s.PlayerCountThreshold <= 0 {
		fixed = append(fixed, fmt.Sprintf("player_count_threshold %d is not positive", s.PlayerCountThreshold))
		s.PlayerCountThreshold = defaults.PlayerCountThreshold
	}
	if s.PlayerCountSeeded <= s.PlayerCountThreshold {
		fixed = append(fixed, fmt.Sprintf("player_count_seeded %d is not above player_count_threshold %d", s.PlayerCountSeeded, s.PlayerCountThreshold))
		s.PlayerCountSeeded = defaults.PlayerCountSeeded
		if s.PlayerCountSeeded <= s.PlayerCountThreshold {
			s.PlayerCountSeeded = s.PlayerCountThreshold + 1
		}
	}
	if s.CheckInterval <= 0 {
		fixed = append(fixed, fmt.Sprintf("check_interval %d is not positive", s.CheckInterval))
		s.CheckInterval = defaults.CheckInterval
	}
	if s.SeedCooldownTime < 0 {
		fixed = append(fixed, fmt.Sprintf("seed_cooldown_time %d is negative", s.SeedCooldownTime))
		s.SeedCooldownTime = defaults.SeedCooldownTime
	}
	if s.LastPlayerCount < 0 {
		fixed = append(fixed, fmt.Sprintf("last_player_count %d is negative", s.LastPlayerCount))
		s.LastPlayerCount = 0
	}
	return fixed
}

// UnmarshalJSON decodes field by field so one mistyped value does not cost
// the rest of a hand-edited record. Such a field keeps its previous value and
// is reported by Normalize. Timestamps may be RFC 3339 or the naive ISO-8601
// form older settings files carry; the Unix epoch is read as "never".
func (s *SeedSettings) UnmarshalJSON(b []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(b, &fields); err != nil {
		return err
	}
	if fields == nil {
		return fmt.Errorf("settings record is null")
	}
	s.decodeIssues = nil

	for _, f := range []struct {
		key string
		dst *string
	}{
		{"server_name", &s.ServerName},
		{"api_url", &s.APIURL},
		{"webhook_url", &s.WebhookURL},
		{"webhook_content", &s.WebhookContent},
		{"embed_title", &s.EmbedTitle},
		{"embed_body", &s.EmbedBody},
		{"embed_footer_text", &s.EmbedFooterText},
		{"embed_footer_icon_url", &s.EmbedFooterIconURL},
	} {
		if raw, ok := present(fields, f.key); ok {
			if err := json.Unmarshal(raw, f.dst); err != nil {
				s.issue(f.key, "is not a string")
			}
		}
	}

	for _, f := range []struct {
		key string
		dst *int
	}{
		{"player_count_threshold", &s.PlayerCountThreshold},
		{"player_count_seeded", &s.PlayerCountSeeded},
		{"check_interval", &s.CheckInterval},
		{"seed_cooldown_time", &s.SeedCooldownTime},
		{"last_player_count", &s.LastPlayerCount},
	} {
		if raw, ok := present(fields, f.key); ok {
			n, err := decodeInt(raw)
			if err != nil {
				s.issue(f.key, err.Error())
				continue
			}
			*f.dst = n
		}
	}

	if raw, ok := present(fields, "embed_color"); ok {
		color, err := decodeColor(raw)
		if err != nil {
			s.issue("embed_color", err.Error())
		} else {
			s.EmbedColor = color
		}
	}

	if raw, ok := present(fields, "webhook_allowed_mentions"); ok {
		m := s.AllowedMentions.Clone()
		if err := json.Unmarshal(raw, &m); err != nil {
			s.issue("webhook_allowed_mentions", "is not a {parse, roles, users} object")
		} else {
			s.AllowedMentions = m
		}
	}

	var err error
	if s.TimeLastPlayerCount, err = parseTimestamp(fields["time_last_player_count"]); err != nil {
		s.issue("time_last_player_count", err.Error()+", read as never")
	}
	if s.TimeLastSeedMessage, err = parseTimestamp(fields["time_last_seed_message"]); err != nil {
		s.issue("time_last_seed_message", err.Error()+", read as never")
	}
	return nil
}

func (s *SeedSettings) issue(key, problem string) {
	s.decodeIssues = append(s.decodeIssues, key+" "+problem)
}

// present returns the raw value of key unless it is missing or null.
func present(fields map[string]json.RawMessage, key string) (json.RawMessage, bool) {
	raw, ok := fields[key]
	if !ok || string(raw) == "null" {
		return nil, false
	}
	return raw, true
}

// decodeInt accepts an integral number or a string holding one.
func decodeInt(raw json.RawMessage) (int, error) {
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		var str string
		if json.Unmarshal(raw, &str) != nil {
			return 0, fmt.Errorf("is not a number")
		}
		if f, err = strconv.ParseFloat(strings.TrimSpace(str), 64); err != nil {
			return 0, fmt.Errorf("%q is not a number", str)
		}
	}
	if f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
		return 0, fmt.Errorf("%v is not a whole number", f)
	}
	return int(f), nil
}

// decodeColor accepts a hex string or the decimal color value Discord uses.
func decodeColor(raw json.RawMessage) (string, error) {
	var str string
	if err := json.Unmarshal(raw, &str); err == nil {
		return str, nil
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", fmt.Errorf("is neither a hex string nor a number")
	}
	if n < 0 || n > 0xffffff || n != math.Trunc(n) {
		return "", fmt.Errorf("%v is not a 24-bit color", n)
	}
	return fmt.Sprintf("%06x", int(n)), nil
}

var naiveLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
}

// Anything up to one day past the epoch, in any zone, is the old "never" marker.
var neverCutoff = time.Unix(0, 0).Add(24 * time.Hour)

func parseTimestamp(raw json.RawMessage) (*time.Time, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var v string
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("timestamp %s is not a string", raw)
	}
	v = strings.TrimSpace(v)
	if v == "" {
		return nil, nil
	}

	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		parsed := false
		for _, layout := range naiveLayouts {
			if t, err = time.ParseInLocation(layout, v, time.Local); err == nil {
				parsed = true
				break
			}
		}
		if !parsed {
			return nil, fmt.Errorf("unrecognized timestamp %q", v)
		}
	}
	if t.Before(neverCutoff) {
		return nil, nil
	}
	t = t.UTC()
	return &t, nil
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}
