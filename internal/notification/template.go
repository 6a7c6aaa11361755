package notification

import (
	"strconv"
	"strings"
)

// Body placeholders. {0} and {1} are accepted as aliases for the positional
// form used by older settings files, and {{ / }} render as literal braces.
const (
	PlaceholderPlayerCount = "{player_count}"
	PlaceholderMapName     = "{map_name}"
)

// FormatBody fills the two substitution slots of an embed body template.
func FormatBody(template string, playerCount int, mapName string) string {
	count := strconv.Itoa(playerCount)
	r := strings.NewReplacer(
		"{{", "{",
		"}}", "}",
		PlaceholderPlayerCount, count,
		PlaceholderMapName, mapName,
		"{0}", count,
		"{1}", mapName,
	)
	return r.Replace(template)
}
