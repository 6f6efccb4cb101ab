package repository

import (
	"vmigrate/internal/db"
	"vmigrate/internal/model"

	"gorm.io/gorm"
)

type LogRepository struct{}

func NewLogRepository() *LogRepository {
	return &LogRepository{}
}

// Append stores the next log line for a job. Sequence numbers are dense and
// start at 0; the executor goroutine owning the job is the only appender, so
// counting existing rows inside the transaction is race-free.
func (r *LogRepository) Append(jobID uint, message string) (model.JobLog, error) {
	line := model.JobLog{
		JobID:   jobID,
		Message: message,
	}

	err := db.DB.Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&model.JobLog{}).
			Where("job_id = ?", jobID).
			Count(&count).Error; err != nil {
			return err
		}

		line.Seq = int(count)
		return tx.Create(&line).Error
	})

	return line, err
}

func (r *LogRepository) ReadAll(jobID uint) ([]model.JobLog, error) {
	var lines []model.JobLog
	return lines, db.DB.
		Where("job_id = ?", jobID).
		Order("seq asc").
		Find(&lines).Error
}
