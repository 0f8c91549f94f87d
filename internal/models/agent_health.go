package models

import "time"

// AgentHealth is a point-in-time snapshot written by the health loop.
type AgentHealth struct {
	ID              int64     `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	Timestamp       time.Time `gorm:"column:timestamp;not null;index:idx_health_ts" json:"timestamp"`
	WalletsTracked  int64     `gorm:"column:wallets_tracked;not null;default:0" json:"wallets_tracked"`
	Tier1Count      int64     `gorm:"column:tier1_count;not null;default:0" json:"tier1_count"`
	Tier2Count      int64     `gorm:"column:tier2_count;not null;default:0" json:"tier2_count"`
	CandidatesCount int64     `gorm:"column:candidates_count;not null;default:0" json:"candidates_count"`
	ExiledCount     int64     `gorm:"column:exiled_count;not null;default:0" json:"exiled_count"`
	ArchivedCount   int64     `gorm:"column:archived_count;not null;default:0" json:"archived_count"`
	PrunedCount     int64     `gorm:"column:pruned_count;not null;default:0" json:"pruned_count"`
	TradesLastHour  int       `gorm:"column:trades_processed_last_hour;not null;default:0" json:"trades_last_hour"`
	AlertsLastHour  int       `gorm:"column:alerts_sent_last_hour;not null;default:0" json:"alerts_last_hour"`
	ErrorsLastHour  int       `gorm:"column:errors_last_hour;not null;default:0" json:"errors_last_hour"`
}

func (AgentHealth) TableName() string {
	return "agent_health"
}
