package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"planner/internal/model"
)

const createBatchSize = 100

// TaskRepository handles CRUD for one-off tasks and series instances.
type TaskRepository struct {
	db *gorm.DB
}

func NewTaskRepository(db *gorm.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

// WithTx binds the repository to a transaction.
func (r *TaskRepository) WithTx(tx *gorm.DB) *TaskRepository {
	return &TaskRepository{db: tx}
}

func (r *TaskRepository) Create(ctx context.Context, task *model.Task) error {
	if err := r.db.WithContext(ctx).Create(task).Error; err != nil {
		return fmt.Errorf("create task: %w", err)
	}
	return nil
}

// CreateBatch inserts instances, silently skipping any (series, day) pair
// that already exists. It returns the number of rows actually inserted.
func (r *TaskRepository) CreateBatch(ctx context.Context, tasks []model.Task) (int64, error) {
	if len(tasks) == 0 {
		return 0, nil
	}
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		CreateInBatches(&tasks, createBatchSize)
	if res.Error != nil {
		return 0, fmt.Errorf("create tasks: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// ListOpen returns tasks waiting for user action, nearest deadline first.
func (r *TaskRepository) ListOpen(ctx context.Context, userID uint) ([]model.Task, error) {
	var tasks []model.Task
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND is_completed = ? AND is_skipped = ?", userID, false, false).
		Order("deadline NULLS LAST, instance_date NULLS LAST, created_at DESC").
		Find(&tasks).Error; err != nil {
		return nil, err
	}
	return tasks, nil
}

func (r *TaskRepository) FindByID(ctx context.Context, userID uint, taskID string) (*model.Task, error) {
	var task model.Task
	if err := r.db.WithContext(ctx).Where("user_id = ? AND id = ?", userID, taskID).First(&task).Error; err != nil {
		return nil, err
	}
	return &task, nil
}

// ListBySeries returns every instance of a series. Soft-deleted rows are
// included when includeDeleted is set.
func (r *TaskRepository) ListBySeries(ctx context.Context, seriesID string, includeDeleted bool) ([]model.Task, error) {
	db := r.db.WithContext(ctx)
	if includeDeleted {
		db = db.Unscoped()
	}
	var tasks []model.Task
	if err := db.Where("series_id = ?", seriesID).Order("instance_date").Find(&tasks).Error; err != nil {
		return nil, err
	}
	return tasks, nil
}

// ListForGeneration returns all series instances, including soft-deleted
// ones, so removed days are not materialized again.
func (r *TaskRepository) ListForGeneration(ctx context.Context) ([]model.Task, error) {
	var tasks []model.Task
	if err := r.db.WithContext(ctx).Unscoped().
		Where("series_id IS NOT NULL").
		Find(&tasks).Error; err != nil {
		return nil, err
	}
	return tasks, nil
}

func (r *TaskRepository) MarkCompleted(ctx context.Context, task *model.Task, completedAt time.Time) error {
	task.IsCompleted = true
	task.CompletedAt = &completedAt
	if err := r.db.WithContext(ctx).Save(task).Error; err != nil {
		return fmt.Errorf("complete task: %w", err)
	}
	return nil
}

func (r *TaskRepository) MarkSkipped(ctx context.Context, task *model.Task) error {
	task.IsSkipped = true
	if err := r.db.WithContext(ctx).Save(task).Error; err != nil {
		return fmt.Errorf("skip task: %w", err)
	}
	return nil
}

// SaveAll writes back edited tasks.
func (r *TaskRepository) SaveAll(ctx context.Context, tasks []model.Task) error {
	db := r.db.WithContext(ctx)
	for i := range tasks {
		if err := db.Save(&tasks[i]).Error; err != nil {
			return fmt.Errorf("save task %s: %w", tasks[i].ID, err)
		}
	}
	return nil
}

// DeleteIDs soft-deletes tasks of a user.
func (r *TaskRepository) DeleteIDs(ctx context.Context, userID uint, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res := r.db.WithContext(ctx).Where("user_id = ? AND id IN ?", userID, ids).Delete(&model.Task{})
	if res.Error != nil {
		return 0, fmt.Errorf("delete tasks: %w", res.Error)
	}
	return res.RowsAffected, nil
}
