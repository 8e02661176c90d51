package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"planner/internal/model"
)

// SeriesRepository stores recurrence series.
type SeriesRepository struct {
	db *gorm.DB
}

func NewSeriesRepository(db *gorm.DB) *SeriesRepository {
	return &SeriesRepository{db: db}
}

// WithTx binds the repository to a transaction.
func (r *SeriesRepository) WithTx(tx *gorm.DB) *SeriesRepository {
	return &SeriesRepository{db: tx}
}

func (r *SeriesRepository) Create(ctx context.Context, s *model.Series) error {
	if err := r.db.WithContext(ctx).Create(s).Error; err != nil {
		return fmt.Errorf("create series: %w", err)
	}
	return nil
}

func (r *SeriesRepository) FindByID(ctx context.Context, userID uint, id string) (*model.Series, error) {
	var s model.Series
	if err := r.db.WithContext(ctx).Where("user_id = ? AND id = ?", userID, id).First(&s).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *SeriesRepository) ListByUser(ctx context.Context, userID uint) ([]model.Series, error) {
	var list []model.Series
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at").Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *SeriesRepository) ListActive(ctx context.Context) ([]model.Series, error) {
	var list []model.Series
	if err := r.db.WithContext(ctx).Where("active = ?", true).Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *SeriesRepository) SetActive(ctx context.Context, userID uint, id string, active bool) error {
	res := r.db.WithContext(ctx).Model(&model.Series{}).
		Where("user_id = ? AND id = ?", userID, id).
		Update("active", active)
	if res.Error != nil {
		return fmt.Errorf("update series: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// UpdateTemplate replaces the template used for future instances.
func (r *SeriesRepository) UpdateTemplate(ctx context.Context, s *model.Series) error {
	if err := r.db.WithContext(ctx).Model(s).Updates(map[string]interface{}{
		"tpl_title":       s.Template.Title,
		"tpl_description": s.Template.Description,
		"tpl_category_id": s.Template.CategoryID,
		"tpl_priority":    s.Template.Priority,
		"tpl_reminder":    s.Template.Reminder,
	}).Error; err != nil {
		return fmt.Errorf("update series template: %w", err)
	}
	return nil
}

// GenerationStore exposes series and instances to the generation scheduler.
type GenerationStore struct {
	series *SeriesRepository
	tasks  *TaskRepository
}

func NewGenerationStore(series *SeriesRepository, tasks *TaskRepository) *GenerationStore {
	return &GenerationStore{series: series, tasks: tasks}
}

func (g *GenerationStore) GenerationSnapshot(ctx context.Context) ([]model.Series, []model.Task, error) {
	list, err := g.series.ListActive(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("list active series: %w", err)
	}
	tasks, err := g.tasks.ListForGeneration(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("list series instances: %w", err)
	}
	return list, tasks, nil
}

func (g *GenerationStore) SaveInstances(ctx context.Context, tasks []model.Task) error {
	_, err := g.tasks.CreateBatch(ctx, tasks)
	return err
}
