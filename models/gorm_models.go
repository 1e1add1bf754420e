// models/gorm_models.go
package models

import (
	"gorm.io/gorm"
)

// GormPlayer 玩家档案
type GormPlayer struct {
	gorm.Model
	UID      string `gorm:"uniqueIndex;not null"`
	Username string
	PhotoURL string
	Elo      int `gorm:"default:1000"`
}

// GormMatch is one completed or in-progress duel. Winner stays empty until
// the match is finalized; "draw" is a valid terminal value.
type GormMatch struct {
	gorm.Model
	Player1 string `gorm:"index;not null"`
	Player2 string `gorm:"index;not null"`
	Winner  string
	Reason  string
}

// GormRound 单回合记录
type GormRound struct {
	gorm.Model
	MatchID     uint   `gorm:"index;not null"`
	RoundNumber int    `gorm:"not null"`
	Player1Hand string `gorm:"not null"`
	Player2Hand string `gorm:"not null"`
	Winner      string `gorm:"not null"` // player1 / player2 / draw
}

// GormHandStats aggregates hand usage per player for the stats surface.
type GormHandStats struct {
	gorm.Model
	UID      string `gorm:"uniqueIndex;not null"`
	Rock     int    `gorm:"default:0"`
	Paper    int    `gorm:"default:0"`
	Scissors int    `gorm:"default:0"`
}
