package watchlist

import (
	"context"
	"errors"

	"incident-quiz/internal/models"

	"gorm.io/gorm"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) List(ctx context.Context) ([]models.WatchlistItem, error) {
	var items []models.WatchlistItem
	err := r.db.WithContext(ctx).Preload("BusinessLine").Order("id").Find(&items).Error
	return items, err
}

func (r *Repository) ByQuiz(ctx context.Context, quizID string) ([]models.WatchlistItem, error) {
	var items []models.WatchlistItem
	err := r.db.WithContext(ctx).
		Preload("BusinessLine").
		Where("quiz_id = ?", quizID).
		Order("id").
		Find(&items).Error
	return items, err
}

func (r *Repository) Get(ctx context.Context, id uint) (*models.WatchlistItem, error) {
	var item models.WatchlistItem
	if err := r.db.WithContext(ctx).Preload("BusinessLine").First(&item, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &item, nil
}

// Add stores the (quiz, business line) pair unless it is already watched.
func (r *Repository) Add(ctx context.Context, quizID string, businessLineID uint) (*models.WatchlistItem, error) {
	item := models.WatchlistItem{QuizID: quizID, BusinessLineID: businessLineID}
	err := r.db.WithContext(ctx).
		Where(models.WatchlistItem{QuizID: quizID, BusinessLineID: businessLineID}).
		Omit("BusinessLine").
		FirstOrCreate(&item).Error
	return &item, err
}

func (r *Repository) Delete(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&models.WatchlistItem{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
