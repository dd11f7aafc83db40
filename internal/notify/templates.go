package notify

import (
	"context"
	"errors"

	"incident-quiz/internal/models"

	"gorm.io/gorm"
)

// Templates looks up category templates with a fallback on the global
// category.
type Templates struct {
	db       *gorm.DB
	globalID uint
}

func NewTemplates(db *gorm.DB, globalCategoryID uint) *Templates {
	return &Templates{db: db, globalID: globalCategoryID}
}

func (t *Templates) GlobalCategoryID() uint {
	return t.globalID
}

func (t *Templates) find(ctx context.Context, categoryID uint, typ string) (*models.CategoryTemplate, bool, error) {
	var tpl models.CategoryTemplate
	err := t.db.WithContext(ctx).
		Where("category_id = ? AND type = ?", categoryID, typ).
		Order("id").
		First(&tpl).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return &tpl, true, nil
}

// Resolve returns the template for (categoryID, typ), else the global
// category's template of the same type. found is false when neither exists.
func (t *Templates) Resolve(ctx context.Context, categoryID uint, typ string) (tpl *models.CategoryTemplate, found bool, err error) {
	tpl, found, err = t.find(ctx, categoryID, typ)
	if err != nil || found {
		return tpl, found, err
	}
	if categoryID == t.globalID {
		return nil, false, nil
	}
	return t.find(ctx, t.globalID, typ)
}

// Global returns the global category's template of typ.
func (t *Templates) Global(ctx context.Context, typ string) (*models.CategoryTemplate, bool, error) {
	return t.find(ctx, t.globalID, typ)
}

func (t *Templates) Create(ctx context.Context, tpl *models.CategoryTemplate) error {
	return t.db.WithContext(ctx).Omit("Category").Create(tpl).Error
}
