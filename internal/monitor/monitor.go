package monitor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/adevnylo/hll-seed-ping/internal/client/crcon"
	"github.com/adevnylo/hll-seed-ping/internal/metrics"
	"github.com/adevnylo/hll-seed-ping/internal/models"
	"github.com/adevnylo/hll-seed-ping/internal/store"
)

var errNoNotifier = errors.New("no notifier configured")

const (
	DefaultFastInterval = 60 * time.Second
	DefaultSlowInterval = 600 * time.Second
)

type Store interface {
	Load() (*models.SeedSettings, error)
	Save(*models.SeedSettings) error
	Quarantine() (string, error)
}

type Fetcher interface {
	Fetch(ctx context.Context, apiURL string) (crcon.ServerStatus, error)
}

type Notifier interface {
	Send(ctx context.Context, settings *models.SeedSettings, playerCount int, mapName string) error
}

// Monitor decides, per fresh player count, whether to ping for seeders and
// how long to wait before looking again.
type Monitor struct {
	Store    Store
	Fetcher  Fetcher
	Notifier Notifier
	// Defaults repairs and replaces the persisted record.
	Defaults *models.SeedSettings
	Fast     time.Duration
	Slow     time.Duration
	Logger   *zap.Logger
	Metrics  *metrics.Metrics
	Now      func() time.Time

	status statusTracker
}

// Result describes one cycle. Checked is false when the cycle was gated.
type Result struct {
	Checked     bool
	Regime      Regime
	PlayerCount int
	MapName     string
	// Notified is set when a send was attempted; SendErr holds its failure.
	Notified bool
	SendErr  error
}

// Due reports whether the gate allows a fetch at now.
func Due(s *models.SeedSettings, now time.Time) bool {
	next := s.NextCheckAt()
	return next == nil || !now.Before(*next)
}

// LoadSettings returns the persisted record, writing defaults when the file is
// missing or unreadable. A *store.PersistError is returned together with a
// usable record.
func (m *Monitor) LoadSettings() (*models.SeedSettings, error) {
	log := m.logger()
	s, err := m.Store.Load()
	switch {
	case err == nil:
	case errors.Is(err, store.ErrNotFound):
		log.Info("settings file not found, writing defaults")
		return m.reset()
	case errors.Is(err, store.ErrCorrupt):
		moved, qerr := m.Store.Quarantine()
		if qerr != nil {
			log.Warn("could not move corrupt settings aside", zap.Error(qerr))
		}
		log.Warn("settings file corrupt, writing defaults", zap.String("moved_to", moved), zap.Error(err))
		return m.reset()
	default:
		return nil, fmt.Errorf("load settings: %w", err)
	}

	for _, fix := range s.Normalize(m.defaults()) {
		log.Warn("repaired settings value", zap.String("problem", fix))
	}
	m.status.observeSettings(s)
	return s, nil
}

func (m *Monitor) reset() (*models.SeedSettings, error) {
	s := m.defaults().Clone()
	m.status.observeSettings(s)
	if err := m.Store.Save(s); err != nil {
		return s, err
	}
	return s, nil
}

// Cycle applies the gate, then fetches, decides and persists. A fetch error
// leaves s untouched and nothing is written.
func (m *Monitor) Cycle(ctx context.Context, s *models.SeedSettings) (Result, error) {
	if !Due(s, m.now()) {
		m.Metrics.Check(metrics.CheckSkipped)
		m.status.observeSettings(s)
		m.logger().Debug("check gated", zap.Timep("next_check", s.NextCheckAt()))
		return Result{}, nil
	}

	start := time.Now()
	res, err := m.Tick(ctx, s)
	m.Metrics.ObserveCycle(time.Since(start))
	if err != nil {
		return res, err
	}
	if err := m.Store.Save(s); err != nil {
		return res, err
	}
	return res, nil
}

// Tick runs one ungated fetch and decision, mutating s in place.
func (m *Monitor) Tick(ctx context.Context, s *models.SeedSettings) (Result, error) {
	log := m.logger()
	if m.Fetcher == nil {
		return Result{}, errors.New("no status fetcher configured")
	}
	st, err := m.Fetcher.Fetch(ctx, s.APIURL)
	if err != nil {
		m.Metrics.Check(metrics.CheckFailed)
		m.status.fail(err)
		log.Error("server status check failed", zap.String("api_url", s.APIURL), zap.Error(err))
		return Result{}, err
	}

	now := m.now().UTC()
	s.ServerName = st.ServerName
	s.LastPlayerCount = st.PlayerCount
	s.TimeLastPlayerCount = &now

	res := Result{
		Checked:     true,
		Regime:      Classify(st.PlayerCount, s.PlayerCountThreshold, s.PlayerCountSeeded),
		PlayerCount: st.PlayerCount,
		MapName:     st.MapName,
	}

	switch res.Regime {
	case RegimeQuiet:
		s.CheckInterval = seconds(m.fast())
	case RegimeSeeding:
		res.Notified = true
		res.SendErr = m.send(ctx, s, st)
		sent := m.now().UTC()
		s.TimeLastSeedMessage = &sent
		s.CheckInterval = s.SeedCooldownTime
		if s.CheckInterval <= 0 {
			s.CheckInterval = seconds(m.fast())
		}
	default:
		s.CheckInterval = seconds(m.slow())
	}

	m.Metrics.Check(metrics.CheckOK)
	m.Metrics.PlayerCount(st.PlayerCount)
	m.Metrics.CheckInterval(s.CheckEvery())
	m.status.observeCheck(s, res)

	log.Info("server checked",
		zap.String("server", st.ServerName),
		zap.Int("player_count", st.PlayerCount),
		zap.String("map", st.MapName),
		zap.String("regime", string(res.Regime)),
		zap.Int("check_interval", s.CheckInterval),
	)
	return res, nil
}

func (m *Monitor) send(ctx context.Context, s *models.SeedSettings, st crcon.ServerStatus) error {
	var err error
	if m.Notifier == nil {
		err = errNoNotifier
	} else {
		err = m.Notifier.Send(ctx, s, st.PlayerCount, st.MapName)
	}
	if err != nil {
		m.Metrics.Notification(metrics.NotifyFailed)
		// The cooldown is applied anyway, so no retry happens until it ends.
		m.logger().Error("seed message failed, cooldown still applies",
			zap.Int("player_count", st.PlayerCount),
			zap.Int("cooldown_seconds", s.SeedCooldownTime),
			zap.Error(err),
		)
		return err
	}
	m.Metrics.Notification(metrics.NotifySent)
	return nil
}

// Status returns the latest snapshot; safe for concurrent use.
func (m *Monitor) Status() Status { return m.status.snapshot() }

func (m *Monitor) defaults() *models.SeedSettings {
	if m.Defaults != nil {
		return m.Defaults
	}
	return &models.SeedSettings{
		ServerName:           "YOUR_SERVER_NAME",
		PlayerCountThreshold: 5,
		PlayerCountSeeded:    30,
		CheckInterval:        seconds(m.slow()),
		SeedCooldownTime:     seconds(18 * time.Hour),
		AllowedMentions:      models.AllowedMentions{Parse: []string{}, Roles: []string{}, Users: []string{}},
	}
}

func (m *Monitor) fast() time.Duration {
	if m.Fast > 0 {
		return m.Fast
	}
	return DefaultFastInterval
}

func (m *Monitor) slow() time.Duration {
	if m.Slow > 0 {
		return m.Slow
	}
	return DefaultSlowInterval
}

func (m *Monitor) now() time.Time {
	if m.Now != nil {
		return m.Now()
	}
	return time.Now()
}

func (m *Monitor) logger() *zap.Logger {
	if m.Logger != nil {
		return m.Logger
	}
	return zap.NewNop()
}
