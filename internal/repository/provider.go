package repository

import (
	"vmigrate/internal/db"
	"vmigrate/internal/model"
)

type ProviderRepository struct{}

func NewProviderRepository() *ProviderRepository {
	return &ProviderRepository{}
}

func (r *ProviderRepository) Add(provider *model.Provider) error {
	return db.DB.Create(provider).Error
}

func (r *ProviderRepository) GetAll() ([]model.Provider, error) {
	var providers []model.Provider
	return providers, db.DB.Order("id desc").Find(&providers).Error
}

func (r *ProviderRepository) GetByID(id uint) (model.Provider, error) {
	var provider model.Provider
	return provider, db.DB.First(&provider, id).Error
}

func (r *ProviderRepository) Delete(id uint) error {
	return db.DB.Delete(&model.Provider{}, id).Error
}
