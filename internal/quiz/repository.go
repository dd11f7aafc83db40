package quiz

import (
	"context"
	"errors"

	"incident-quiz/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func byOrderIndex(db *gorm.DB) *gorm.DB {
	return db.Order("order_index")
}

// preloadQuiz loads the template tree, the owner and the watch list.
func preloadQuiz(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Template").
		Preload("Template.Category").
		Preload("Template.Groups", byOrderIndex).
		Preload("Template.Groups.Group").
		Preload("Template.Groups.Group.Questions", byOrderIndex).
		Preload("Template.Groups.Group.Questions.Question").
		Preload("Template.UsefulLinks", byOrderIndex).
		Preload("User").
		Preload("Watchlist").
		Preload("Watchlist.BusinessLine")
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

func (r *Repository) Get(ctx context.Context, id string) (*models.Quiz, error) {
	var q models.Quiz
	if err := preloadQuiz(r.db.WithContext(ctx)).Where("id = ?", id).First(&q).Error; err != nil {
		return nil, notFound(err)
	}
	return &q, nil
}

func (r *Repository) ByIncident(ctx context.Context, incidentID uint) (*models.Quiz, error) {
	var q models.Quiz
	if err := preloadQuiz(r.db.WithContext(ctx)).Where("incident_id = ?", incidentID).First(&q).Error; err != nil {
		return nil, notFound(err)
	}
	return &q, nil
}

func (r *Repository) List(ctx context.Context) ([]models.Quiz, error) {
	var quizzes []models.Quiz
	err := r.db.WithContext(ctx).
		Preload("User").
		Preload("Watchlist").
		Order("created_at DESC").
		Find(&quizzes).Error
	return quizzes, err
}

func (r *Repository) Create(ctx context.Context, q *models.Quiz) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(q).Error
}

func (r *Repository) UpdateOwner(ctx context.Context, id string, userID *uint) error {
	res := r.db.WithContext(ctx).Model(&models.Quiz{}).Where("id = ?", id).Update("user_id", userID)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a quiz with its answers and watch list.
func (r *Repository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("quiz_id = ?", id).Delete(&models.QuizAnswer{}).Error; err != nil {
			return err
		}
		if err := tx.Where("quiz_id = ?", id).Delete(&models.WatchlistItem{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&models.Quiz{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// Record stores one answer inside tx.
func (r *Repository) Record(tx *gorm.DB, a *models.QuizAnswer) error {
	return tx.Omit(clause.Associations).Create(a).Error
}

// Submit flips is_answered and stores answers in one transaction. The flip
// is a compare-and-set: when another submission won, nothing is written
// and ErrAlreadyAnswered is returned.
func (r *Repository) Submit(ctx context.Context, quizID string, answers []models.QuizAnswer) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Quiz{}).
			Where("id = ? AND is_answered = ?", quizID, false).
			Update("is_answered", true)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			var count int64
			if err := tx.Model(&models.Quiz{}).Where("id = ?", quizID).Count(&count).Error; err != nil {
				return err
			}
			if count == 0 {
				return ErrNotFound
			}
			return ErrAlreadyAnswered
		}

		for i := range answers {
			answers[i].QuizID = quizID
			if err := r.Record(tx, &answers[i]); err != nil {
				return err
			}
		}
		return nil
	})
}

// Answers returns the stored answers of a quiz with their questions.
func (r *Repository) Answers(ctx context.Context, quizID string) ([]models.QuizAnswer, error) {
	var answers []models.QuizAnswer
	err := r.db.WithContext(ctx).
		Preload("Question").
		Where("quiz_id = ?", quizID).
		Order("id").
		Find(&answers).Error
	return answers, err
}
