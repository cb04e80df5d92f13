package postgres

import (
	"time"

	"github.com/google/uuid"
)

type warmRunModel struct {
	RunID      uuid.UUID `gorm:"column:run_id;type:uuid;primaryKey"`
	Trigger    string    `gorm:"column:trigger"`
	StartedAt  time.Time `gorm:"column:started_at"`
	FinishedAt time.Time `gorm:"column:finished_at"`
	Succeeded  string    `gorm:"column:succeeded"`
	Failed     string    `gorm:"column:failed"`
	Cancelled  bool      `gorm:"column:cancelled"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (warmRunModel) TableName() string { return "cache_warm_runs" }
