package catalog

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

// preloadTemplate loads groups, their questions and links, each by order_index.
func preloadTemplate(db *gorm.DB) *gorm.DB {
	return db.Preload("Category").
		Preload("Groups", byOrderIndex).
		Preload("Groups.Group").
		Preload("Groups.Group.Questions", byOrderIndex).
		Preload("Groups.Group.Questions.Question").
		Preload("UsefulLinks", byOrderIndex)
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

func (r *Repository) CreateQuestion(ctx context.Context, q *models.Question) error {
	return r.db.WithContext(ctx).Create(q).Error
}

func (r *Repository) SaveQuestion(ctx context.Context, q *models.Question) error {
	return r.db.WithContext(ctx).Save(q).Error
}

func (r *Repository) GetQuestion(ctx context.Context, id uint) (*models.Question, error) {
	var q models.Question
	if err := r.db.WithContext(ctx).First(&q, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &q, nil
}

func (r *Repository) ListQuestions(ctx context.Context) ([]models.Question, error) {
	var questions []models.Question
	err := r.db.WithContext(ctx).Order("id").Find(&questions).Error
	return questions, err
}

// QuestionAnswered reports whether any stored answer references the question.
func (r *Repository) QuestionAnswered(ctx context.Context, id uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.QuizAnswer{}).
		Where("question_id = ?", id).
		Count(&count).Error
	return count > 0, err
}

func (r *Repository) CountQuestions(ctx context.Context, ids []uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Question{}).Where("id IN ?", ids).Count(&count).Error
	return count, err
}

// CreateGroup stores a group and its ordered questions in one transaction.
func (r *Repository) CreateGroup(ctx context.Context, g *models.QuestionGroup, items []models.GroupQuestion) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(g).Error; err != nil {
			return err
		}
		for i := range items {
			items[i].GroupID = g.ID
			if err := tx.Omit(clause.Associations).Create(&items[i]).Error; err != nil {
				return err
			}
		}
		g.Questions = items
		return nil
	})
}

func (r *Repository) GetGroup(ctx context.Context, id uint) (*models.QuestionGroup, error) {
	var g models.QuestionGroup
	err := r.db.WithContext(ctx).
		Preload("Questions", byOrderIndex).
		Preload("Questions.Question").
		First(&g, id).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &g, nil
}

func (r *Repository) ListGroups(ctx context.Context) ([]models.QuestionGroup, error) {
	var groups []models.QuestionGroup
	err := r.db.WithContext(ctx).
		Preload("Questions", byOrderIndex).
		Preload("Questions.Question").
		Order("id").
		Find(&groups).Error
	return groups, err
}

func (r *Repository) CountGroups(ctx context.Context, ids []uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.QuestionGroup{}).Where("id IN ?", ids).Count(&count).Error
	return count, err
}

func (r *Repository) CategoryExists(ctx context.Context, id uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.IncidentCategory{}).Where("id = ?", id).Count(&count).Error
	return count > 0, err
}

// CreateTemplate stores a template with its ordered groups and links.
func (r *Repository) CreateTemplate(ctx context.Context, tpl *models.QuizTemplate, groups []models.TemplateGroup, links []models.UsefulLink) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(tpl).Error; err != nil {
			return err
		}
		for i := range groups {
			groups[i].TemplateID = tpl.ID
			if err := tx.Omit(clause.Associations).Create(&groups[i]).Error; err != nil {
				return err
			}
		}
		for i := range links {
			links[i].TemplateID = tpl.ID
			if err := tx.Create(&links[i]).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *Repository) GetTemplate(ctx context.Context, id uint) (*models.QuizTemplate, error) {
	var tpl models.QuizTemplate
	if err := preloadTemplate(r.db.WithContext(ctx)).First(&tpl, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &tpl, nil
}

func (r *Repository) TemplateByCategory(ctx context.Context, categoryID uint) (*models.QuizTemplate, error) {
	var tpl models.QuizTemplate
	err := preloadTemplate(r.db.WithContext(ctx)).
		Where("category_id = ?", categoryID).
		First(&tpl).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &tpl, nil
}

func (r *Repository) ListTemplates(ctx context.Context) ([]models.QuizTemplate, error) {
	var templates []models.QuizTemplate
	err := r.db.WithContext(ctx).Preload("Category").Order("id").Find(&templates).Error
	return templates, err
}

func (r *Repository) UpdateTemplate(ctx context.Context, tpl *models.QuizTemplate) error {
	return r.db.WithContext(ctx).Model(&models.QuizTemplate{ID: tpl.ID}).
		Updates(map[string]interface{}{"name": tpl.Name, "description": tpl.Description}).Error
}

// DeleteTemplate removes a template. Quizzes still pointing at it block the
// deletion.
func (r *Repository) DeleteTemplate(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var inUse int64
		if err := tx.Model(&models.Quiz{}).Where("template_id = ?", id).Count(&inUse).Error; err != nil {
			return err
		}
		if inUse > 0 {
			return ErrTemplateInUse
		}
		if err := tx.Where("template_id = ?", id).Delete(&models.TemplateGroup{}).Error; err != nil {
			return err
		}
		if err := tx.Where("template_id = ?", id).Delete(&models.UsefulLink{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&models.QuizTemplate{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}
