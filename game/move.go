// game/move.go
package game

import (
	"encoding/json"
	"fmt"
	"math/rand"
)

// Move 出拳类型
type Move int

const (
	Rock Move = iota
	Paper
	Scissors
)

var moveNames = map[Move]string{
	Rock:     "ROCK",
	Paper:    "PAPER",
	Scissors: "SCISSORS",
}

var movesByName = map[string]Move{
	"ROCK":     Rock,
	"PAPER":    Paper,
	"SCISSORS": Scissors,
}

func (m Move) String() string {
	if name, ok := moveNames[m]; ok {
		return name
	}
	return fmt.Sprintf("Move(%d)", int(m))
}

// ParseMove converts the wire representation into a Move.
func ParseMove(s string) (Move, error) {
	if m, ok := movesByName[s]; ok {
		return m, nil
	}
	return 0, fmt.Errorf("invalid move: %q", s)
}

func (m Move) MarshalJSON() ([]byte, error) {
	name, ok := moveNames[m]
	if !ok {
		return nil, fmt.Errorf("invalid move: %d", int(m))
	}
	return json.Marshal(name)
}

func (m *Move) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseMove(s)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Beats 实现标准的循环克制关系
func (m Move) Beats(other Move) bool {
	switch m {
	case Rock:
		return other == Scissors
	case Paper:
		return other == Rock
	case Scissors:
		return other == Paper
	}
	return false
}

// Outcome of a single round from the first player's perspective.
type Outcome int

const (
	Draw Outcome = iota
	FirstWins
	SecondWins
)

// Judge is a pure function of the two committed moves.
func Judge(first, second Move) Outcome {
	if first == second {
		return Draw
	}
	if first.Beats(second) {
		return FirstWins
	}
	return SecondWins
}

// RandomMove returns a uniformly random move, used by the bot simulator.
func RandomMove(rng *rand.Rand) Move {
	return Move(rng.Intn(3))
}
