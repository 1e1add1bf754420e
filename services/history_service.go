package services

import (
	"github.com/wfunc/duelserver/models"
	"github.com/wfunc/duelserver/persistence"
)

const defaultHistoryLimit = 20

// HistoryService exposes a player's persisted record: profile aggregates
// plus recent matches.
type HistoryService struct {
	store persistence.Store
}

func NewHistoryService(store persistence.Store) *HistoryService {
	return &HistoryService{store: store}
}

// GetPlayerHistory 获取玩家档案、统计和最近对局
func (s *HistoryService) GetPlayerHistory(uid string) (*models.PlayerProfile, *models.PlayerStats, []models.MatchSummary, error) {
	profile, err := s.store.GetPlayer(uid)
	if err != nil {
		return nil, nil, nil, err
	}

	stats, err := s.store.GetPlayerStats(uid)
	if err != nil {
		return nil, nil, nil, err
	}

	matches, err := s.store.GetPlayerMatches(uid, defaultHistoryLimit)
	if err != nil {
		return nil, nil, nil, err
	}

	return profile, stats, matches, nil
}
