// game/mode.go
package game

import "time"

// Mode 对局模式
type Mode string

const (
	ModeRanked Mode = "RANKED"
	ModeCasual Mode = "CASUAL"
)

// Rules holds the per-match tuning shared by the room engine and the bot
// simulator. Zero values are never used directly; DefaultRules matches the
// production configuration.
type Rules struct {
	RoundDuration time.Duration // choice window per round
	Intermission  time.Duration // delay between round result and next round
	WinThreshold  int           // score that ends the match
	GracePeriod   time.Duration // disconnect-to-forfeit window
}

func DefaultRules() Rules {
	return Rules{
		RoundDuration: 30 * time.Second,
		Intermission:  5 * time.Second,
		WinThreshold:  4,
		GracePeriod:   15 * time.Second,
	}
}
