package incident

import (
	"context"
	"errors"
	"time"

	"incident-quiz/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// maxTreeDepth bounds the walk to a business-line root.
const maxTreeDepth = 64

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

func (r *Repository) Get(ctx context.Context, id uint) (*models.Incident, error) {
	var inc models.Incident
	err := r.db.WithContext(ctx).
		Preload("Category").
		Preload("OpenedBy").
		Preload("ConcernedBusinessLines").
		Preload("Artifacts", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		Preload("Comments", func(db *gorm.DB) *gorm.DB { return db.Order("date, id") }).
		Preload("Comments.Action").
		First(&inc, id).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &inc, nil
}

// EnsureCategory returns the category called name, creating it when missing.
func (r *Repository) EnsureCategory(ctx context.Context, name string) (*models.IncidentCategory, error) {
	cat := models.IncidentCategory{Name: name}
	err := r.db.WithContext(ctx).Where(models.IncidentCategory{Name: name}).FirstOrCreate(&cat).Error
	return &cat, err
}

func (r *Repository) EnsureLabel(ctx context.Context, name string) (*models.Label, error) {
	label := models.Label{Name: name}
	err := r.db.WithContext(ctx).Where(models.Label{Name: name}).FirstOrCreate(&label).Error
	return &label, err
}

func (r *Repository) CreateComment(ctx context.Context, c *models.Comment) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(c).Error
}

func (r *Repository) SetStatus(ctx context.Context, id uint, status string) error {
	res := r.db.WithContext(ctx).Model(&models.Incident{}).Where("id = ?", id).Update("status", status)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// AddArtifact stores the artifact unless the incident already has it.
func (r *Repository) AddArtifact(ctx context.Context, incidentID uint, typ, value string) (*models.Artifact, error) {
	a := models.Artifact{IncidentID: incidentID, Type: typ, Value: value}
	err := r.db.WithContext(ctx).
		Where(models.Artifact{IncidentID: incidentID, Type: typ, Value: value}).
		FirstOrCreate(&a).Error
	return &a, err
}

func (r *Repository) Artifacts(ctx context.Context, incidentID uint) ([]models.Artifact, error) {
	var artifacts []models.Artifact
	err := r.db.WithContext(ctx).Where("incident_id = ?", incidentID).Order("id").Find(&artifacts).Error
	return artifacts, err
}

func (r *Repository) GetBusinessLine(ctx context.Context, id uint) (*models.BusinessLine, error) {
	var bl models.BusinessLine
	if err := r.db.WithContext(ctx).First(&bl, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &bl, nil
}

// RootBusinessLine walks the parent chain of bl up to its top-level ancestor.
func (r *Repository) RootBusinessLine(ctx context.Context, bl *models.BusinessLine) (*models.BusinessLine, error) {
	current := bl
	for depth := 0; current.ParentID != nil; depth++ {
		if depth >= maxTreeDepth {
			return nil, ErrTreeTooDeep
		}
		parent, err := r.GetBusinessLine(ctx, *current.ParentID)
		if err != nil {
			return nil, err
		}
		current = parent
	}
	return current, nil
}

// ViewersOf returns the e-mail addresses of users holding role on the
// business line.
func (r *Repository) ViewersOf(ctx context.Context, businessLineID uint, role string) ([]string, error) {
	var emails []string
	err := r.db.WithContext(ctx).
		Model(&models.AccessControlEntry{}).
		Joins("JOIN roles ON roles.id = access_control_entries.role_id").
		Joins("JOIN users ON users.id = access_control_entries.user_id").
		Where("access_control_entries.business_line_id = ? AND roles.name = ?", businessLineID, role).
		Where("users.deleted_at IS NULL AND users.email <> ''").
		Distinct().
		Order("users.email").
		Pluck("users.email", &emails).Error
	return emails, err
}

// LastCommentDate returns the date of the newest comment, and false when the
// incident has none.
func (r *Repository) LastCommentDate(ctx context.Context, incidentID uint) (time.Time, bool, error) {
	var c models.Comment
	err := r.db.WithContext(ctx).
		Where("incident_id = ?", incidentID).
		Order("date DESC, id DESC").
		First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	return c.Date, true, nil
}

// AwaitingAnswer lists incidents with status whose quiz is still unanswered.
func (r *Repository) AwaitingAnswer(ctx context.Context, status string) ([]models.Incident, error) {
	var incidents []models.Incident
	err := r.db.WithContext(ctx).
		Joins("JOIN quizzes ON quizzes.incident_id = incidents.id").
		Where("incidents.status = ? AND quizzes.is_answered = ?", status, false).
		Preload("Category").
		Order("incidents.id").
		Find(&incidents).Error
	return incidents, err
}

func (r *Repository) RenotifyDuration(ctx context.Context, categoryID uint, severity int) (time.Duration, bool, error) {
	var d models.RenotifyDuration
	err := r.db.WithContext(ctx).
		Where("category_id = ? AND severity = ?", categoryID, severity).
		First(&d).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return d.Duration, true, nil
}
