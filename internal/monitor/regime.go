package monitor

// Regime is the population band a fresh player count falls into.
type Regime string

const (
	RegimeUnknown Regime = ""
	// RegimeQuiet: a few players are on, not enough to ping for.
	RegimeQuiet Regime = "quiet"
	// RegimeSeeding: enough players to be worth calling in more.
	RegimeSeeding Regime = "seeding"
	// RegimeIdle covers an empty server and one that is already seeded.
	RegimeIdle Regime = "idle"
)

func Classify(count, threshold, seeded int) Regime {
	switch {
	case count > 0 && count < threshold:
		return RegimeQuiet
	case count >= threshold && count < seeded:
		return RegimeSeeding
	default:
		return RegimeIdle
	}
}
