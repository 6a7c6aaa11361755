package monitor

import (
	"sync"
	"time"

	"github.com/adevnylo/hll-seed-ping/internal/models"
)

// Status is a read-only view of the monitor for the HTTP surface.
type Status struct {
	ServerName      string     `json:"server_name"`
	PlayerCount     int        `json:"player_count"`
	MapName         string     `json:"map_name,omitempty"`
	Regime          Regime     `json:"regime,omitempty"`
	CheckInterval   int        `json:"check_interval_seconds"`
	LastCheck       *time.Time `json:"last_check"`
	LastSeedMessage *time.Time `json:"last_seed_message"`
	NextCheck       *time.Time `json:"next_check"`
	LastError       string     `json:"last_error,omitempty"`
	Ready           bool       `json:"ready"`
}

type statusTracker struct {
	mu sync.RWMutex
	st Status
}

func (t *statusTracker) observeSettings(s *models.SeedSettings) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.st.ServerName = s.ServerName
	t.st.PlayerCount = s.LastPlayerCount
	t.st.CheckInterval = s.CheckInterval
	t.st.LastCheck = copyTime(s.TimeLastPlayerCount)
	t.st.LastSeedMessage = copyTime(s.TimeLastSeedMessage)
	t.st.NextCheck = s.NextCheckAt()
}

func (t *statusTracker) observeCheck(s *models.SeedSettings, res Result) {
	t.observeSettings(s)
	t.mu.Lock()
	defer t.mu.Unlock()
	t.st.MapName = res.MapName
	t.st.Regime = res.Regime
	t.st.LastError = ""
	if res.SendErr != nil {
		t.st.LastError = res.SendErr.Error()
	}
	t.st.Ready = true
}

func (t *statusTracker) fail(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.st.LastError = err.Error()
}

func (t *statusTracker) snapshot() Status {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := t.st
	out.LastCheck = copyTime(t.st.LastCheck)
	out.LastSeedMessage = copyTime(t.st.LastSeedMessage)
	out.NextCheck = copyTime(t.st.NextCheck)
	return out
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
