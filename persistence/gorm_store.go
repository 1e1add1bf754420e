// persistence/gorm_store.go
package persistence

import (
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/wfunc/duelserver/models"
)

// GormStore 使用GORM的PostgreSQL实现
type GormStore struct {
	db *gorm.DB
}

// NewGormStore 创建GORM PostgreSQL数据库连接
func NewGormStore(host string, port int, user, password, dbname string) (*GormStore, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname)

	gormLogger := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold: time.Second,
			LogLevel:      logger.Silent,
			Colorful:      false,
		},
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormLogger,
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	// 设置连接池
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := autoMigrate(db); err != nil {
		return nil, err
	}

	return &GormStore{db: db}, nil
}

func autoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.GormPlayer{},
		&models.GormMatch{},
		&models.GormRound{},
		&models.GormHandStats{},
	)
}

// UpsertPlayer refreshes the profile snapshot we got from the identity
// provider. Rating is pairing input only; it is stored, never computed.
func (s *GormStore) UpsertPlayer(uid, username, photoURL string, elo int) error {
	player := models.GormPlayer{
		UID:      uid,
		Username: username,
		PhotoURL: photoURL,
		Elo:      elo,
	}
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "uid"}},
		DoUpdates: clause.AssignmentColumns([]string{"username", "photo_url", "elo", "updated_at"}),
	}).Create(&player).Error
}

// GetPlayer loads the stored profile snapshot.
func (s *GormStore) GetPlayer(uid string) (*models.PlayerProfile, error) {
	var player models.GormPlayer
	if err := s.db.Where("uid = ?", uid).First(&player).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return &models.PlayerProfile{
		UID:      player.UID,
		Username: player.Username,
		PhotoURL: player.PhotoURL,
		Elo:      player.Elo,
	}, nil
}

// CreateMatch opens a match record with no winner yet.
func (s *GormStore) CreateMatch(player1, player2 string) (uint, error) {
	match := models.GormMatch{
		Player1: player1,
		Player2: player2,
	}
	if err := s.db.Create(&match).Error; err != nil {
		return 0, err
	}
	return match.ID, nil
}

// AppendRound 保存单回合记录
func (s *GormStore) AppendRound(matchID uint, roundNumber int, player1Hand, player2Hand, winner string) error {
	round := models.GormRound{
		MatchID:     matchID,
		RoundNumber: roundNumber,
		Player1Hand: player1Hand,
		Player2Hand: player2Hand,
		Winner:      winner,
	}
	return s.db.Create(&round).Error
}

// FinalizeMatch seals the match record with the overall winner.
func (s *GormStore) FinalizeMatch(matchID uint, winner, reason string) error {
	return s.db.Model(&models.GormMatch{}).
		Where("id = ?", matchID).
		Updates(map[string]interface{}{"winner": winner, "reason": reason}).Error
}

// RecordHand bumps the per-player hand frequency counters.
func (s *GormStore) RecordHand(uid, hand string) error {
	column := ""
	switch hand {
	case "ROCK":
		column = "rock"
	case "PAPER":
		column = "paper"
	case "SCISSORS":
		column = "scissors"
	default:
		return fmt.Errorf("invalid hand: %q", hand)
	}

	stats := models.GormHandStats{UID: uid}
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "uid"}},
			DoNothing: true,
		}).Create(&stats).Error; err != nil {
			return err
		}
		return tx.Model(&models.GormHandStats{}).
			Where("uid = ?", uid).
			Update(column, gorm.Expr(column+" + 1")).Error
	})
}

// GetPlayerMatches returns the player's most recent finished matches.
func (s *GormStore) GetPlayerMatches(uid string, limit int) ([]models.MatchSummary, error) {
	var summaries []models.MatchSummary

	err := s.db.Transaction(func(tx *gorm.DB) error {
		var matches []models.GormMatch
		if err := tx.Where("player1 = ? OR player2 = ?", uid, uid).
			Where("winner <> ''").
			Order("created_at DESC").
			Limit(limit).
			Find(&matches).Error; err != nil {
			return err
		}

		for _, match := range matches {
			var rounds int64
			if err := tx.Model(&models.GormRound{}).
				Where("match_id = ?", match.ID).
				Count(&rounds).Error; err != nil {
				return err
			}

			opponent := match.Player2
			if opponent == uid {
				opponent = match.Player1
			}

			summaries = append(summaries, models.MatchSummary{
				MatchID:   match.ID,
				Opponent:  opponent,
				Winner:    match.Winner,
				Reason:    match.Reason,
				Rounds:    int(rounds),
				CreatedAt: match.CreatedAt.Unix(),
			})
		}
		return nil
	})

	return summaries, err
}

// GetPlayerStats aggregates win/loss/draw counts over finished matches.
func (s *GormStore) GetPlayerStats(uid string) (*models.PlayerStats, error) {
	var stats models.PlayerStats

	err := s.db.Raw(`
        SELECT
            COUNT(*) AS total_matches,
            SUM(CASE WHEN winner = ? THEN 1 ELSE 0 END) AS wins,
            SUM(CASE WHEN winner = 'draw' THEN 1 ELSE 0 END) AS draws,
            SUM(CASE WHEN winner <> ? AND winner <> 'draw' THEN 1 ELSE 0 END) AS losses
        FROM gorm_matches
        WHERE (player1 = ? OR player2 = ?) AND winner <> '' AND deleted_at IS NULL`,
		uid, uid, uid, uid,
	).Scan(&stats).Error
	if err != nil {
		return nil, err
	}

	return &stats, nil
}

// Close 关闭数据库连接
func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
