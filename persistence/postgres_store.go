// persistence/postgres_store.go
package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	// PostgreSQL 驱动
	_ "github.com/lib/pq"

	"github.com/wfunc/duelserver/models"
)

// PostgresStore is the plain database/sql backend, selectable when GORM is
// not wanted on the write path.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore 创建 PostgreSQL 数据库连接
func NewPostgresStore(host string, port int, user, password, dbname string) (*PostgresStore, error) {
	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := initTables(db); err != nil {
		return nil, err
	}

	return &PostgresStore{db: db}, nil
}

func initTables(db *sql.DB) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS players (
            id SERIAL PRIMARY KEY,
            uid TEXT UNIQUE NOT NULL,
            username TEXT,
            photo_url TEXT,
            elo INT DEFAULT 1000,
            created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
            updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
        )`,
		`CREATE TABLE IF NOT EXISTS matches (
            id SERIAL PRIMARY KEY,
            player1 TEXT NOT NULL,
            player2 TEXT NOT NULL,
            winner TEXT DEFAULT '',
            reason TEXT DEFAULT '',
            created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
        )`,
		`CREATE TABLE IF NOT EXISTS rounds (
            id SERIAL PRIMARY KEY,
            match_id INT NOT NULL REFERENCES matches(id),
            round_number INT NOT NULL,
            player1_hand TEXT NOT NULL,
            player2_hand TEXT NOT NULL,
            winner TEXT NOT NULL,
            created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
        )`,
		`CREATE TABLE IF NOT EXISTS hand_stats (
            id SERIAL PRIMARY KEY,
            uid TEXT UNIQUE NOT NULL,
            rock INT DEFAULT 0,
            paper INT DEFAULT 0,
            scissors INT DEFAULT 0
        )`,
	}

	for _, stmt := range statements {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *PostgresStore) UpsertPlayer(uid, username, photoURL string, elo int) error {
	_, err := s.db.Exec(`
        INSERT INTO players (uid, username, photo_url, elo)
        VALUES ($1, $2, $3, $4)
        ON CONFLICT (uid) DO UPDATE
        SET username = $2, photo_url = $3, elo = $4, updated_at = CURRENT_TIMESTAMP`,
		uid, username, photoURL, elo)
	return err
}

func (s *PostgresStore) GetPlayer(uid string) (*models.PlayerProfile, error) {
	var profile models.PlayerProfile
	err := s.db.QueryRow(`
        SELECT uid, username, photo_url, elo FROM players WHERE uid = $1`,
		uid).Scan(&profile.UID, &profile.Username, &profile.PhotoURL, &profile.Elo)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return &profile, nil
}

func (s *PostgresStore) CreateMatch(player1, player2 string) (uint, error) {
	var id uint
	err := s.db.QueryRow(`
        INSERT INTO matches (player1, player2) VALUES ($1, $2) RETURNING id`,
		player1, player2).Scan(&id)
	return id, err
}

func (s *PostgresStore) AppendRound(matchID uint, roundNumber int, player1Hand, player2Hand, winner string) error {
	_, err := s.db.Exec(`
        INSERT INTO rounds (match_id, round_number, player1_hand, player2_hand, winner)
        VALUES ($1, $2, $3, $4, $5)`,
		matchID, roundNumber, player1Hand, player2Hand, winner)
	return err
}

func (s *PostgresStore) FinalizeMatch(matchID uint, winner, reason string) error {
	_, err := s.db.Exec(`UPDATE matches SET winner = $1, reason = $2 WHERE id = $3`,
		winner, reason, matchID)
	return err
}

func (s *PostgresStore) RecordHand(uid, hand string) error {
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

	_, err := s.db.Exec(fmt.Sprintf(`
        INSERT INTO hand_stats (uid, %[1]s) VALUES ($1, 1)
        ON CONFLICT (uid) DO UPDATE SET %[1]s = hand_stats.%[1]s + 1`, column),
		uid)
	return err
}

func (s *PostgresStore) GetPlayerMatches(uid string, limit int) ([]models.MatchSummary, error) {
	rows, err := s.db.Query(`
        SELECT m.id, m.player1, m.player2, m.winner, m.reason,
               (SELECT COUNT(*) FROM rounds r WHERE r.match_id = m.id),
               EXTRACT(EPOCH FROM m.created_at)::bigint
        FROM matches m
        WHERE (m.player1 = $1 OR m.player2 = $1) AND m.winner <> ''
        ORDER BY m.created_at DESC
        LIMIT $2`, uid, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var summaries []models.MatchSummary
	for rows.Next() {
		var (
			summary          models.MatchSummary
			player1, player2 string
		)
		if err := rows.Scan(&summary.MatchID, &player1, &player2, &summary.Winner,
			&summary.Reason, &summary.Rounds, &summary.CreatedAt); err != nil {
			return nil, err
		}
		summary.Opponent = player2
		if summary.Opponent == uid {
			summary.Opponent = player1
		}
		summaries = append(summaries, summary)
	}
	return summaries, rows.Err()
}

func (s *PostgresStore) GetPlayerStats(uid string) (*models.PlayerStats, error) {
	var stats models.PlayerStats
	err := s.db.QueryRow(`
        SELECT
            COUNT(*),
            COALESCE(SUM(CASE WHEN winner = $1 THEN 1 ELSE 0 END), 0),
            COALESCE(SUM(CASE WHEN winner <> $1 AND winner <> 'draw' THEN 1 ELSE 0 END), 0),
            COALESCE(SUM(CASE WHEN winner = 'draw' THEN 1 ELSE 0 END), 0)
        FROM matches
        WHERE (player1 = $1 OR player2 = $1) AND winner <> ''`,
		uid).Scan(&stats.TotalMatches, &stats.Wins, &stats.Losses, &stats.Draws)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return &stats, nil
}

// Close 关闭数据库连接
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
