package loader

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// StoredTemplate is a template persisted in the database.
type StoredTemplate struct {
	ID        uint   `gorm:"primaryKey"`
	Name      string `gorm:"uniqueIndex;size:255;not null"`
	Source    string `gorm:"type:text;not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName pins the table name regardless of gorm naming strategy.
func (StoredTemplate) TableName() string { return "liquid_templates" }

// Migrate creates or updates the liquid_templates table.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&StoredTemplate{}); err != nil {
		return fmt.Errorf("loader: migrate: %w", err)
	}
	return nil
}

// DBLoader loads templates from the liquid_templates table.
// A cached template goes stale when its row's updated_at changes.
type DBLoader struct {
	db *gorm.DB
}

// NewDBLoader creates a loader backed by db.
func NewDBLoader(db *gorm.DB) *DBLoader {
	return &DBLoader{db: db}
}

// Load implements Loader.
func (l *DBLoader) Load(ctx context.Context, name string) (*Source, error) {
	var tpl StoredTemplate
	err := l.db.WithContext(ctx).Where("name = ?", name).First(&tpl).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NotFound(name, "db:"+tpl.TableName())
		}
		return nil, fmt.Errorf("loader: query template %q: %w", name, err)
	}

	loaded := tpl.UpdatedAt
	return &Source{
		Name: name,
		Path: "db:" + tpl.TableName() + "/" + name,
		Text: tpl.Source,
		UpToDate: func(ctx context.Context) bool {
			var current StoredTemplate
			err := l.db.WithContext(ctx).Select("updated_at").Where("name = ?", name).First(&current).Error
			if err != nil {
				return false
			}
			return current.UpdatedAt.Equal(loaded)
		},
	}, nil
}

// Put inserts or replaces the template stored under name.
func (l *DBLoader) Put(ctx context.Context, name, source string) error {
	db := l.db.WithContext(ctx)

	var tpl StoredTemplate
	err := db.Where("name = ?", name).First(&tpl).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		if err := db.Create(&StoredTemplate{Name: name, Source: source}).Error; err != nil {
			return fmt.Errorf("loader: create template %q: %w", name, err)
		}
		return nil
	case err != nil:
		return fmt.Errorf("loader: query template %q: %w", name, err)
	}

	tpl.Source = source
	if err := db.Save(&tpl).Error; err != nil {
		return fmt.Errorf("loader: update template %q: %w", name, err)
	}
	return nil
}

// Remove deletes the template stored under name.
func (l *DBLoader) Remove(ctx context.Context, name string) error {
	if err := l.db.WithContext(ctx).Where("name = ?", name).Delete(&StoredTemplate{}).Error; err != nil {
		return fmt.Errorf("loader: delete template %q: %w", name, err)
	}
	return nil
}

// Names lists the stored template names in alphabetical order.
func (l *DBLoader) Names(ctx context.Context) ([]string, error) {
	var names []string
	err := l.db.WithContext(ctx).Model(&StoredTemplate{}).Order("name").Pluck("name", &names).Error
	if err != nil {
		return nil, fmt.Errorf("loader: list templates: %w", err)
	}
	return names, nil
}
