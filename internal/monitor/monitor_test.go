package monitor

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/adevnylo/hll-seed-ping/internal/client/crcon"
	"github.com/adevnylo/hll-seed-ping/internal/config"
	"github.com/adevnylo/hll-seed-ping/internal/metrics"
	"github.com/adevnylo/hll-seed-ping/internal/models"
	"github.com/adevnylo/hll-seed-ping/internal/notification"
	"github.com/adevnylo/hll-seed-ping/internal/store"
)

type fakeFetcher struct {
	status crcon.ServerStatus
	err    error
	calls  int
}

func (f *fakeFetcher) Fetch(_ context.Context, _ string) (crcon.ServerStatus, error) {
	f.calls++
	return f.status, f.err
}

type sendCall struct {
	count int
	body  string
}

type fakeNotifier struct {
	calls []sendCall
	err   error
}

func (f *fakeNotifier) Send(_ context.Context, s *models.SeedSettings, count int, mapName string) error {
	body := notification.FormatBody(s.EmbedBody, count, mapName)
	f.calls = append(f.calls, sendCall{count: count, body: body})
	return f.err
}

type memStore struct {
	rec     *models.SeedSettings
	loadErr error
	saveErr error
	saves   int
	moved   bool
}

func (s *memStore) Load() (*models.SeedSettings, error) {
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	if s.rec == nil {
		return nil, store.ErrNotFound
	}
	return s.rec.Clone(), nil
}

func (s *memStore) Save(v *models.SeedSettings) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	s.saves++
	s.rec = v.Clone()
	return nil
}

func (s *memStore) Quarantine() (string, error) {
	s.moved = true
	s.loadErr = nil
	return "settings.corrupt", nil
}

var t0 = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

type clock struct{ now time.Time }

func (c *clock) Now() time.Time { return c.now }

func baseSettings() *models.SeedSettings {
	return &models.SeedSettings{
		ServerName:           "YOUR_SERVER_NAME",
		APIURL:               "http://crcon/api/public_info",
		PlayerCountThreshold: 5,
		PlayerCountSeeded:    30,
		CheckInterval:        600,
		SeedCooldownTime:     64800,
		EmbedBody:            "{player_count} players on {map_name}",
	}
}

func newMonitor(f *fakeFetcher, n *fakeNotifier, st Store, c *clock) *Monitor {
	return &Monitor{
		Store:    st,
		Fetcher:  f,
		Notifier: n,
		Defaults: baseSettings(),
		Fast:     60 * time.Second,
		Slow:     600 * time.Second,
		Metrics:  metrics.New(),
		Now:      c.Now,
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		count int
		want  Regime
	}{
		{0, RegimeIdle},
		{1, RegimeQuiet},
		{4, RegimeQuiet},
		{5, RegimeSeeding},
		{29, RegimeSeeding},
		{30, RegimeIdle},
		{100, RegimeIdle},
	}
	for _, tt := range tests {
		if got := Classify(tt.count, 5, 30); got != tt.want {
			t.Fatalf("Classify(%d)=%q want %q", tt.count, got, tt.want)
		}
	}
}

func TestTick_Regimes(t *testing.T) {
	tests := []struct {
		name     string
		count    int
		regime   Regime
		interval int
		sends    int
	}{
		{"quiet", 3, RegimeQuiet, 60, 0},
		{"seeding lower bound", 5, RegimeSeeding, 64800, 1},
		{"seeding upper bound", 29, RegimeSeeding, 64800, 1},
		{"empty", 0, RegimeIdle, 600, 0},
		{"seeded", 30, RegimeIdle, 600, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fakeFetcher{status: crcon.ServerStatus{ServerName: "EU #1", PlayerCount: tt.count, MapName: "Foy"}}
			n := &fakeNotifier{}
			c := &clock{now: t0}
			m := newMonitor(f, n, &memStore{}, c)
			s := baseSettings()

			res, err := m.Tick(context.Background(), s)
			if err != nil {
				t.Fatalf("tick: %v", err)
			}
			if res.Regime != tt.regime || s.CheckInterval != tt.interval || len(n.calls) != tt.sends {
				t.Fatalf("res=%+v interval=%d sends=%d", res, s.CheckInterval, len(n.calls))
			}
			if s.ServerName != "EU #1" || s.LastPlayerCount != tt.count || s.TimeLastPlayerCount == nil || !s.TimeLastPlayerCount.Equal(t0) {
				t.Fatalf("observation not recorded: %+v", s)
			}
			if tt.sends == 0 && s.TimeLastSeedMessage != nil {
				t.Fatalf("seed time set without a send")
			}
			if tt.sends == 1 && (s.TimeLastSeedMessage == nil || s.TimeLastSeedMessage.Before(*s.TimeLastPlayerCount)) {
				t.Fatalf("seed time=%v", s.TimeLastSeedMessage)
			}
		})
	}
}

func TestTick_TimestampsAreUTC(t *testing.T) {
	f := &fakeFetcher{status: crcon.ServerStatus{PlayerCount: 12, MapName: "Foy"}}
	n := &fakeNotifier{}
	c := &clock{now: t0.In(time.FixedZone("CEST", 2*60*60))}
	m := newMonitor(f, n, &memStore{}, c)
	s := baseSettings()

	if _, err := m.Tick(context.Background(), s); err != nil {
		t.Fatalf("tick: %v", err)
	}
	if s.TimeLastPlayerCount == nil || s.TimeLastPlayerCount.Location() != time.UTC {
		t.Fatalf("time_last_player_count=%v", s.TimeLastPlayerCount)
	}
	if s.TimeLastSeedMessage == nil || s.TimeLastSeedMessage.Location() != time.UTC {
		t.Fatalf("time_last_seed_message=%v", s.TimeLastSeedMessage)
	}
	b, err := store.Marshal(s)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(b), `"time_last_seed_message": "2025-06-01T12:00:00Z"`) {
		t.Fatalf("file=%s", b)
	}
}

func TestCycle_SeedingScenario(t *testing.T) {
	f := &fakeFetcher{status: crcon.ServerStatus{ServerName: "EU #1", PlayerCount: 12, MapName: "Sainte-Marie-du-Mont"}}
	n := &fakeNotifier{}
	ms := &memStore{}
	c := &clock{now: t0}
	m := newMonitor(f, n, ms, c)
	s := baseSettings()

	res, err := m.Cycle(context.Background(), s)
	if err != nil {
		t.Fatalf("cycle: %v", err)
	}
	if !res.Checked || !res.Notified || res.SendErr != nil {
		t.Fatalf("res=%+v", res)
	}
	if len(n.calls) != 1 {
		t.Fatalf("sends=%d", len(n.calls))
	}
	if body := n.calls[0].body; !strings.Contains(body, "12") || !strings.Contains(body, "Sainte-Marie-du-Mont") {
		t.Fatalf("body=%q", body)
	}
	if s.CheckInterval != 64800 || ms.saves != 1 || ms.rec.CheckInterval != 64800 {
		t.Fatalf("interval=%d saves=%d", s.CheckInterval, ms.saves)
	}

	c.now = t0.Add(5 * time.Second)
	res, err = m.Cycle(context.Background(), s)
	if err != nil {
		t.Fatalf("second cycle: %v", err)
	}
	if res.Checked || f.calls != 1 || len(n.calls) != 1 || ms.saves != 1 {
		t.Fatalf("second cycle not gated: res=%+v fetches=%d sends=%d", res, f.calls, len(n.calls))
	}
}

func TestDue_Boundary(t *testing.T) {
	s := baseSettings()
	if !Due(s, t0) {
		t.Fatalf("never-seeded record must be due")
	}
	last := t0
	s.TimeLastSeedMessage = &last
	s.CheckInterval = 600
	if Due(s, t0.Add(599*time.Second)) {
		t.Fatalf("due before interval elapsed")
	}
	if !Due(s, t0.Add(600*time.Second)) {
		t.Fatalf("exact boundary must be due")
	}
}

func TestCycle_GatedDoesNotFetch(t *testing.T) {
	f := &fakeFetcher{}
	c := &clock{now: t0.Add(time.Minute)}
	m := newMonitor(f, &fakeNotifier{}, &memStore{}, c)
	s := baseSettings()
	last := t0
	s.TimeLastSeedMessage = &last

	if res, err := m.Cycle(context.Background(), s); err != nil || res.Checked || f.calls != 0 {
		t.Fatalf("res=%+v err=%v fetches=%d", res, err, f.calls)
	}
}

func TestCycle_SendFailureStillCoolsDown(t *testing.T) {
	f := &fakeFetcher{status: crcon.ServerStatus{ServerName: "x", PlayerCount: 10, MapName: "Kursk"}}
	n := &fakeNotifier{err: errors.New("webhook 500")}
	ms := &memStore{}
	m := newMonitor(f, n, ms, &clock{now: t0})
	s := baseSettings()

	res, err := m.Cycle(context.Background(), s)
	if err != nil {
		t.Fatalf("cycle: %v", err)
	}
	if res.SendErr == nil || s.TimeLastSeedMessage == nil || s.CheckInterval != 64800 || ms.saves != 1 {
		t.Fatalf("res=%+v settings=%+v saves=%d", res, s, ms.saves)
	}
	if st := m.Status(); st.LastError == "" {
		t.Fatalf("status should carry the send error")
	}
}

func TestTick_ZeroCooldownFallsBackToFast(t *testing.T) {
	f := &fakeFetcher{status: crcon.ServerStatus{ServerName: "x", PlayerCount: 10, MapName: "Kursk"}}
	m := newMonitor(f, &fakeNotifier{}, &memStore{}, &clock{now: t0})
	s := baseSettings()
	s.SeedCooldownTime = 0
	if _, err := m.Tick(context.Background(), s); err != nil {
		t.Fatalf("tick: %v", err)
	}
	if s.CheckInterval != 60 {
		t.Fatalf("interval=%d want 60", s.CheckInterval)
	}
}

func TestCycle_FetchErrorLeavesStateUnchanged(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "config.json")
	fs := store.NewFileStore(path, nil)
	s := baseSettings()
	s.APIURL = srv.URL + "/api/public_info"
	if err := fs.Save(s); err != nil {
		t.Fatalf("save: %v", err)
	}
	before, _ := os.ReadFile(path)

	n := &fakeNotifier{}
	m := &Monitor{Store: fs, Fetcher: crcon.NewClient(nil), Notifier: n, Logger: zap.New(core), Now: (&clock{now: t0}).Now}
	loaded, err := m.LoadSettings()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	snapshot := loaded.Clone()

	_, err = m.Cycle(context.Background(), loaded)
	var fe *crcon.FetchError
	if !errors.As(err, &fe) || fe.StatusCode != http.StatusInternalServerError {
		t.Fatalf("err=%v want FetchError 500", err)
	}
	after, _ := os.ReadFile(path)
	if string(before) != string(after) {
		t.Fatalf("settings file changed")
	}
	if loaded.CheckInterval != snapshot.CheckInterval || loaded.TimeLastPlayerCount != nil || len(n.calls) != 0 {
		t.Fatalf("in-memory record changed: %+v", loaded)
	}
	if logs.FilterLevelExact(zapcore.ErrorLevel).Len() != 1 {
		t.Fatalf("expected one error log, got %v", logs.All())
	}
	if m.Status().Ready {
		t.Fatalf("monitor should not be ready before a successful fetch")
	}
}

func TestLoadSettings_MissingWritesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	fs := store.NewFileStore(path, nil)
	m := &Monitor{Store: fs, Defaults: baseSettings()}

	s, err := m.LoadSettings()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if s.TimeLastSeedMessage != nil || s.PlayerCountThreshold != 5 {
		t.Fatalf("settings=%+v", s)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("defaults not persisted: %v", err)
	}
	if !strings.Contains(string(b), `"time_last_seed_message": null`) {
		t.Fatalf("file=%s", b)
	}
}

func TestLoadSettings_CorruptIsQuarantined(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{"server_name": `), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	m := &Monitor{Store: store.NewFileStore(path, nil), Defaults: baseSettings()}
	s, err := m.LoadSettings()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if s.TimeLastSeedMessage != nil {
		t.Fatalf("seed time should be never")
	}
	if _, err := os.Stat(path + ".corrupt"); err != nil {
		t.Fatalf("corrupt file not kept: %v", err)
	}
	b, _ := os.ReadFile(path)
	if !strings.Contains(string(b), `"time_last_seed_message": null`) {
		t.Fatalf("file=%s", b)
	}
}

func TestLoadSettings_RepairsInvariants(t *testing.T) {
	bad := baseSettings()
	bad.PlayerCountSeeded = 2
	bad.CheckInterval = 0
	ms := &memStore{rec: bad}
	m := &Monitor{Store: ms, Defaults: baseSettings()}
	s, err := m.LoadSettings()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if s.PlayerCountSeeded != 30 || s.CheckInterval != 600 {
		t.Fatalf("settings=%+v", s)
	}
}

func TestLoadSettings_MistypedFieldKeepsRestOfFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	body := `{
		"server_name": "EU #1",
		"api_url": "http://crcon/api/public_info",
		"webhook_url": "https://discord.com/api/webhooks/1/abc",
		"player_count_threshold": 8,
		"player_count_seeded": 40,
		"check_interval": "often",
		"seed_cooldown_time": 3600,
		"embed_color": 242424
	}`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	core, logs := observer.New(zapcore.WarnLevel)
	m := &Monitor{Store: store.NewFileStore(path, baseSettings()), Defaults: baseSettings(), Logger: zap.New(core)}

	s, err := m.LoadSettings()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if s.PlayerCountThreshold != 8 || s.PlayerCountSeeded != 40 || s.SeedCooldownTime != 3600 {
		t.Fatalf("user thresholds lost: %+v", s)
	}
	if s.WebhookURL != "https://discord.com/api/webhooks/1/abc" || s.EmbedColor != "03b2f8" {
		t.Fatalf("webhook=%q color=%q", s.WebhookURL, s.EmbedColor)
	}
	if s.CheckInterval != 600 {
		t.Fatalf("check_interval=%d want default 600", s.CheckInterval)
	}
	if _, err := os.Stat(path + ".corrupt"); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("file should not be quarantined: %v", err)
	}
	if logs.FilterMessage("repaired settings value").Len() != 1 {
		t.Fatalf("warnings=%v", logs.All())
	}
}

func TestLoadSettings_UnexpectedErrorIsReturned(t *testing.T) {
	m := &Monitor{Store: &memStore{loadErr: os.ErrPermission}}
	if _, err := m.LoadSettings(); !errors.Is(err, os.ErrPermission) {
		t.Fatalf("err=%v", err)
	}
}

func TestLoadSettings_SaveFailureKeepsRecord(t *testing.T) {
	ms := &memStore{saveErr: &store.PersistError{Path: "x", Err: os.ErrPermission}}
	m := &Monitor{Store: ms, Defaults: baseSettings()}
	s, err := m.LoadSettings()
	var pe *store.PersistError
	if !errors.As(err, &pe) || s == nil {
		t.Fatalf("s=%v err=%v", s, err)
	}
}

func TestDefaultSettings(t *testing.T) {
	var cfg config.Config
	cfg.CRCON.BaseURL = "http://10.0.0.5:7010/"
	cfg.CRCON.StatusPath = "api/public_info"
	cfg.Monitor.CheckIntervalSlow = 10 * time.Minute
	cfg.Defaults.PlayerCountThreshold = 5
	cfg.Defaults.PlayerCountSeeded = 30
	cfg.Defaults.SeedCooldownTime = 18 * time.Hour
	cfg.Defaults.AllowedMentions.Parse = []string{"roles"}

	s := DefaultSettings(cfg)
	if s.APIURL != "http://10.0.0.5:7010/api/public_info" {
		t.Fatalf("api_url=%q", s.APIURL)
	}
	if s.CheckInterval != 600 || s.SeedCooldownTime != 64800 {
		t.Fatalf("interval=%d cooldown=%d", s.CheckInterval, s.SeedCooldownTime)
	}
	if s.AllowedMentions.Roles == nil || s.AllowedMentions.Users == nil {
		t.Fatalf("mention lists should be empty, not null")
	}
	if s.TimeLastSeedMessage != nil || s.TimeLastPlayerCount != nil {
		t.Fatalf("fresh record must have no timestamps")
	}
}
