package catalog

import (
	"context"
	"errors"
	"fmt"

	"incident-quiz/internal/form"
	"incident-quiz/internal/models"

	"go.uber.org/zap"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrCategoryNotFound = errors.New("incident category not found")
	ErrTemplateExists   = errors.New("category already has a quiz template")
	ErrTemplateInUse    = errors.New("quiz template is used by existing quizzes")
	ErrQuestionInUse    = errors.New("question is referenced by stored answers")
	ErrInvalidOrder     = errors.New("invalid order_index")
	ErrInvalidQuestion  = errors.New("invalid question")
)

// TemplateCache keeps fully loaded templates by category.
type TemplateCache interface {
	GetTemplate(ctx context.Context, categoryID uint) (*models.QuizTemplate, error)
	SetTemplate(ctx context.Context, tpl *models.QuizTemplate) error
	DeleteTemplate(ctx context.Context, categoryID uint) error
}

type Service struct {
	repo  *Repository
	cache TemplateCache
	log   *zap.Logger
}

// NewService builds the catalog service. cache may be nil.
func NewService(repo *Repository, cache TemplateCache, log *zap.Logger) *Service {
	return &Service{repo: repo, cache: cache, log: log}
}

// OrderedQuestion places a question at OrderIndex inside a new group.
type OrderedQuestion struct {
	QuestionID uint `json:"question_id"`
	OrderIndex int  `json:"order_index"`
}

// OrderedGroup places a group at OrderIndex inside a new template.
type OrderedGroup struct {
	GroupID    uint `json:"group_id"`
	OrderIndex int  `json:"order_index"`
}

func checkOrder(indexes []int) error {
	seen := make(map[int]bool, len(indexes))
	for _, idx := range indexes {
		if idx < models.MinOrderIndex || idx > models.MaxOrderIndex {
			return fmt.Errorf("%w: %d is outside %d..%d", ErrInvalidOrder, idx, models.MinOrderIndex, models.MaxOrderIndex)
		}
		if seen[idx] {
			return fmt.Errorf("%w: %d is used twice", ErrInvalidOrder, idx)
		}
		seen[idx] = true
	}
	return nil
}

func (s *Service) CreateQuestion(ctx context.Context, q *models.Question) error {
	if err := form.CheckQuestion(*q); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidQuestion, err)
	}
	return s.repo.CreateQuestion(ctx, q)
}

// UpdateQuestion rewrites a question unless an answer already refers to it.
func (s *Service) UpdateQuestion(ctx context.Context, q *models.Question) error {
	existing, err := s.repo.GetQuestion(ctx, q.ID)
	if err != nil {
		return err
	}
	answered, err := s.repo.QuestionAnswered(ctx, q.ID)
	if err != nil {
		return err
	}
	if answered {
		return ErrQuestionInUse
	}
	if err := form.CheckQuestion(*q); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidQuestion, err)
	}
	existing.FieldKind = q.FieldKind
	existing.WidgetKind = q.WidgetKind
	existing.Label = q.Label
	existing.Title = q.Title
	if err := s.repo.SaveQuestion(ctx, existing); err != nil {
		return err
	}
	*q = *existing
	return nil
}

func (s *Service) GetQuestion(ctx context.Context, id uint) (*models.Question, error) {
	return s.repo.GetQuestion(ctx, id)
}

func (s *Service) ListQuestions(ctx context.Context) ([]models.Question, error) {
	return s.repo.ListQuestions(ctx)
}

func (s *Service) CreateGroup(ctx context.Context, g *models.QuestionGroup, questions []OrderedQuestion) error {
	indexes := make([]int, len(questions))
	ids := make([]uint, 0, len(questions))
	seen := map[uint]bool{}
	items := make([]models.GroupQuestion, len(questions))
	for i, q := range questions {
		indexes[i] = q.OrderIndex
		if !seen[q.QuestionID] {
			seen[q.QuestionID] = true
			ids = append(ids, q.QuestionID)
		}
		items[i] = models.GroupQuestion{QuestionID: q.QuestionID, OrderIndex: q.OrderIndex}
	}
	if err := checkOrder(indexes); err != nil {
		return err
	}
	if len(ids) > 0 {
		count, err := s.repo.CountQuestions(ctx, ids)
		if err != nil {
			return err
		}
		if count != int64(len(ids)) {
			return fmt.Errorf("%w: unknown question in group", ErrNotFound)
		}
	}
	return s.repo.CreateGroup(ctx, g, items)
}

func (s *Service) GetGroup(ctx context.Context, id uint) (*models.QuestionGroup, error) {
	return s.repo.GetGroup(ctx, id)
}

func (s *Service) ListGroups(ctx context.Context) ([]models.QuestionGroup, error) {
	return s.repo.ListGroups(ctx)
}

// CreateTemplate validates ordering and the one-template-per-category rule
// and stores the template. The stored template is returned fully loaded.
func (s *Service) CreateTemplate(ctx context.Context, tpl *models.QuizTemplate, groups []OrderedGroup, links []models.UsefulLink) (*models.QuizTemplate, error) {
	ok, err := s.repo.CategoryExists(ctx, tpl.CategoryID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrCategoryNotFound
	}

	existing, err := s.repo.TemplateByCategory(ctx, tpl.CategoryID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	if existing != nil {
		return nil, ErrTemplateExists
	}

	indexes := make([]int, len(groups))
	ids := make([]uint, 0, len(groups))
	seen := map[uint]bool{}
	items := make([]models.TemplateGroup, len(groups))
	for i, g := range groups {
		indexes[i] = g.OrderIndex
		if !seen[g.GroupID] {
			seen[g.GroupID] = true
			ids = append(ids, g.GroupID)
		}
		items[i] = models.TemplateGroup{GroupID: g.GroupID, OrderIndex: g.OrderIndex}
	}
	if err := checkOrder(indexes); err != nil {
		return nil, err
	}
	if len(ids) > 0 {
		count, err := s.repo.CountGroups(ctx, ids)
		if err != nil {
			return nil, err
		}
		if count != int64(len(ids)) {
			return nil, fmt.Errorf("%w: unknown question group in template", ErrNotFound)
		}
	}

	linkIndexes := make([]int, len(links))
	for i, l := range links {
		linkIndexes[i] = l.OrderIndex
	}
	if err := checkOrder(linkIndexes); err != nil {
		return nil, err
	}

	if err := s.repo.CreateTemplate(ctx, tpl, items, links); err != nil {
		return nil, err
	}
	s.log.Info("Created quiz template",
		zap.Uint("template_id", tpl.ID),
		zap.Uint("category_id", tpl.CategoryID),
		zap.Int("groups", len(items)),
	)
	return s.repo.GetTemplate(ctx, tpl.ID)
}

func (s *Service) GetTemplate(ctx context.Context, id uint) (*models.QuizTemplate, error) {
	return s.repo.GetTemplate(ctx, id)
}

func (s *Service) ListTemplates(ctx context.Context) ([]models.QuizTemplate, error) {
	return s.repo.ListTemplates(ctx)
}

func (s *Service) UpdateTemplate(ctx context.Context, id uint, name, description string) (*models.QuizTemplate, error) {
	tpl, err := s.repo.GetTemplate(ctx, id)
	if err != nil {
		return nil, err
	}
	tpl.Name = name
	tpl.Description = description
	if err := s.repo.UpdateTemplate(ctx, tpl); err != nil {
		return nil, err
	}
	s.invalidate(ctx, tpl.CategoryID)
	return tpl, nil
}

func (s *Service) DeleteTemplate(ctx context.Context, id uint) error {
	tpl, err := s.repo.GetTemplate(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteTemplate(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx, tpl.CategoryID)
	return nil
}

// TemplateForCategory returns the fully loaded template of a category,
// from the cache when possible. Existing quizzes render from their own
// template and do not come through here.
func (s *Service) TemplateForCategory(ctx context.Context, categoryID uint) (*models.QuizTemplate, error) {
	if s.cache != nil {
		if tpl, err := s.cache.GetTemplate(ctx, categoryID); err == nil {
			return tpl, nil
		}
	}

	tpl, err := s.repo.TemplateByCategory(ctx, categoryID)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.SetTemplate(ctx, tpl); err != nil {
			s.log.Warn("Failed to cache quiz template", zap.Uint("template_id", tpl.ID), zap.Error(err))
		}
	}
	return tpl, nil
}

func (s *Service) invalidate(ctx context.Context, categoryID uint) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteTemplate(ctx, categoryID); err != nil {
		s.log.Warn("Failed to drop cached quiz template", zap.Uint("category_id", categoryID), zap.Error(err))
	}
}
