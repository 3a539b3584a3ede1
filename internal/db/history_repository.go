package db

import (
	"strconv"
	"strings"

	"gorm.io/gorm"

	"backend/internal/broadcast"
)

type HistoryRepository struct {
	db *gorm.DB
}

func NewHistoryRepository() *HistoryRepository {
	return &HistoryRepository{db: DB}
}

// Record 归档一次广播，实现broadcast.HistoryRecorder
func (r *HistoryRepository) Record(entry broadcast.HistoryEntry) error {
	rec := BroadcastRecord{
		JobID:     entry.JobID,
		Kind:      entry.Kind,
		Content:   entry.Content,
		Targets:   strings.Join(entry.Targets, ","),
		Rooms:     joinInts(entry.Rooms),
		Status:    entry.Status,
		Detail:    entry.Detail,
		StartedAt: entry.StartedAt,
		EndedAt:   entry.EndedAt,
		Duration:  entry.EndedAt.Sub(entry.StartedAt).Seconds(),
	}
	return r.db.Create(&rec).Error
}

// Recent 按开始时间倒序取最近limit条记录
func (r *HistoryRepository) Recent(limit int) ([]BroadcastRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	var records []BroadcastRecord
	err := r.db.Order("started_at desc").Limit(limit).Find(&records).Error
	return records, err
}

// GetByJobID 按任务ID查询
func (r *HistoryRepository) GetByJobID(jobID string) (*BroadcastRecord, error) {
	var rec BroadcastRecord
	if err := r.db.Where("job_id = ?", jobID).First(&rec).Error; err != nil {
		return nil, err
	}
	return &rec, nil
}

func joinInts(nums []int) string {
	parts := make([]string, 0, len(nums))
	for _, n := range nums {
		parts = append(parts, strconv.Itoa(n))
	}
	return strings.Join(parts, ",")
}
