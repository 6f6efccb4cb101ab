package repository

import (
	"vmigrate/internal/db"
	"vmigrate/internal/model"

	"gorm.io/gorm"
)

type JobRepository struct{}

func NewJobRepository() *JobRepository {
	return &JobRepository{}
}

// CreateBatch persists all rows in one transaction so a concurrent reader
// never observes a partially created batch.
func (r *JobRepository) CreateBatch(jobs []model.Job) ([]model.Job, error) {
	err := db.DB.Transaction(func(tx *gorm.DB) error {
		for i := range jobs {
			if err := tx.Create(&jobs[i]).Error; err != nil {
				return err
			}
		}
		return nil
	})

	return jobs, err
}

func (r *JobRepository) GetAll() ([]model.Job, error) {
	var jobs []model.Job
	return jobs, db.DB.Order("id asc").Find(&jobs).Error
}

func (r *JobRepository) GetByID(id uint) (model.Job, error) {
	var job model.Job
	return job, db.DB.First(&job, id).Error
}

func (r *JobRepository) UpdateStatus(id uint, status model.JobStatus) error {
	return db.DB.Model(&model.Job{}).
		Where("id = ?", id).
		Update("status", status).Error
}

func (r *JobRepository) UpdateProgress(id uint, progress int) error {
	return db.DB.Model(&model.Job{}).
		Where("id = ?", id).
		Update("progress", progress).Error
}

func (r *JobRepository) UpdateTargetNode(id uint, node string) error {
	return db.DB.Model(&model.Job{}).
		Where("id = ?", id).
		Update("target_node", node).Error
}

// Complete marks a job finished in a single row update, so status and the
// final progress value are never observed apart.
func (r *JobRepository) Complete(id uint) error {
	return db.DB.Model(&model.Job{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":   model.JobCompleted,
			"progress": 100,
		}).Error
}
