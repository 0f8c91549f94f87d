package models

import "time"

// WalletEdge links two wallets that traded the same token close together.
type WalletEdge struct {
	ID            int64     `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	SourceAddress string    `gorm:"column:source_address;type:varchar(64);not null;uniqueIndex:uidx_edge_pair,priority:1" json:"source_address"`
	TargetAddress string    `gorm:"column:target_address;type:varchar(64);not null;uniqueIndex:uidx_edge_pair,priority:2;index:idx_edge_target" json:"target_address"`
	SharedToken   string    `gorm:"column:shared_token;type:varchar(64);not null;default:''" json:"shared_token"`
	BlockDelta    int       `gorm:"column:block_delta;not null;default:0" json:"block_delta"`
	CoOccurrences int       `gorm:"column:co_occurrences;not null;default:1" json:"co_occurrences"`
	FirstSeen     time.Time `gorm:"column:first_seen;not null" json:"first_seen"`
	LastSeen      time.Time `gorm:"column:last_seen;not null" json:"last_seen"`
}

func (WalletEdge) TableName() string {
	return "wallet_edges"
}
