package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"planner/internal/model"
	"planner/internal/recurrence"
	"planner/internal/repository"
	"planner/internal/series"
)

// TaskInput represents data required to create a task. A non-nil Recurrence
// turns the task into a series.
type TaskInput struct {
	Title       string
	Description string
	Category    string
	CategoryID  *uint
	Priority    model.Priority
	Reminder    bool
	Deadline    *time.Time
	Recurrence  *recurrence.Rule
}

// CreateResult is what CreateTask stored. Task is the one-off task or the
// first instance of a new series.
type CreateResult struct {
	Task      *model.Task   `json:"task,omitempty"`
	Series    *model.Series `json:"series,omitempty"`
	Instances []model.Task  `json:"instances,omitempty"`
}

// GenerationTrigger is notified when series data changed and a generation
// pass may have work to do.
type GenerationTrigger interface {
	Trigger()
}

// TaskService wraps task and series business logic.
type TaskService struct {
	tx           *repository.Transactor
	taskRepo     *repository.TaskRepository
	seriesRepo   *repository.SeriesRepository
	categoryRepo *repository.CategoryRepository
	manager      *series.Manager
	trigger      GenerationTrigger
	log          zerolog.Logger
	now          func() time.Time
}

func NewTaskService(
	tx *repository.Transactor,
	taskRepo *repository.TaskRepository,
	seriesRepo *repository.SeriesRepository,
	categoryRepo *repository.CategoryRepository,
	manager *series.Manager,
	trigger GenerationTrigger,
	log zerolog.Logger,
) *TaskService {
	return &TaskService{
		tx:           tx,
		taskRepo:     taskRepo,
		seriesRepo:   seriesRepo,
		categoryRepo: categoryRepo,
		manager:      manager,
		trigger:      trigger,
		log:          log,
		now:          time.Now,
	}
}

func (s *TaskService) CreateTask(ctx context.Context, user *model.User, input TaskInput) (*CreateResult, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, ErrTitleRequired
	}

	categoryID := input.CategoryID
	if categoryID == nil && input.Category != "" {
		category, err := s.categoryRepo.GetOrCreate(ctx, user.ID, strings.TrimSpace(input.Category))
		if err != nil {
			return nil, err
		}
		if category != nil {
			categoryID = &category.ID
		}
	}

	priority := model.ParsePriority(string(input.Priority))

	if input.Recurrence != nil {
		template := model.TaskTemplate{
			Title:       title,
			Description: input.Description,
			CategoryID:  categoryID,
			Priority:    priority,
			Reminder:    input.Reminder,
		}
		return s.createSeries(ctx, user, template, *input.Recurrence)
	}

	task := model.Task{
		ID:          uuid.NewString(),
		UserID:      user.ID,
		CategoryID:  categoryID,
		Title:       title,
		Description: input.Description,
		Priority:    priority,
		Reminder:    input.Reminder,
		Deadline:    input.Deadline,
	}
	if err := s.taskRepo.Create(ctx, &task); err != nil {
		return nil, err
	}
	return &CreateResult{Task: &task}, nil
}

func (s *TaskService) createSeries(ctx context.Context, user *model.User, template model.TaskTemplate, rule recurrence.Rule) (*CreateResult, error) {
	sr, instances, err := s.manager.CreateSeries(user.ID, template, rule)
	if err != nil {
		return nil, err
	}

	err = s.tx.Within(ctx, func(tx *gorm.DB) error {
		if err := s.seriesRepo.WithTx(tx).Create(ctx, &sr); err != nil {
			return err
		}
		_, err := s.taskRepo.WithTx(tx).CreateBatch(ctx, instances)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("series_id", sr.ID).
		Uint("user_id", user.ID).
		Int("instances", len(instances)).
		Str("rule", recurrence.FormatPreview(sr.Rule)).
		Msg("series created")
	s.notify()

	res := &CreateResult{Series: &sr, Instances: instances}
	if len(instances) > 0 {
		first := instances[0]
		res.Task = &first
	}
	return res, nil
}

func (s *TaskService) ListOpen(ctx context.Context, user *model.User) ([]model.Task, error) {
	return s.taskRepo.ListOpen(ctx, user.ID)
}

func (s *TaskService) GetTask(ctx context.Context, user *model.User, taskID string) (*model.Task, error) {
	task, err := s.taskRepo.FindByID(ctx, user.ID, taskID)
	if err != nil {
		return nil, notFound(err)
	}
	return task, nil
}

// CompleteTask marks a task or a single series instance as done.
func (s *TaskService) CompleteTask(ctx context.Context, user *model.User, taskID string) (*model.Task, error) {
	task, err := s.GetTask(ctx, user, taskID)
	if err != nil {
		return nil, err
	}
	if err := s.taskRepo.MarkCompleted(ctx, task, s.now()); err != nil {
		return nil, err
	}
	if task.IsRecurring() {
		s.notify()
	}
	return task, nil
}

// SkipTask closes a series instance without completing it. One-off tasks
// cannot be skipped.
func (s *TaskService) SkipTask(ctx context.Context, user *model.User, taskID string) (*model.Task, error) {
	task, err := s.GetTask(ctx, user, taskID)
	if err != nil {
		return nil, err
	}
	if !task.IsRecurring() {
		return nil, ErrNotSeriesInstance
	}
	if err := s.taskRepo.MarkSkipped(ctx, task); err != nil {
		return nil, err
	}
	s.notify()
	return task, nil
}

// CountAffected reports how many tasks a scoped edit or delete of taskID
// would touch.
func (s *TaskService) CountAffected(ctx context.Context, user *model.User, taskID string, scope series.Scope) (int, error) {
	task, err := s.GetTask(ctx, user, taskID)
	if err != nil {
		return 0, err
	}
	if scopeFor(task, scope) == series.ScopeThis {
		return 1, nil
	}
	instances, err := s.taskRepo.ListBySeries(ctx, *task.SeriesID, false)
	if err != nil {
		return 0, err
	}
	if task.InstanceDate == nil {
		res, err := series.ResolveScope(instances, *task.SeriesID, scope, task.ID)
		if err != nil {
			return 0, err
		}
		return len(res.Affected), nil
	}
	return series.CountAffected(instances, *task.SeriesID, scope, task.InstanceDate), nil
}

// EditTask applies patch to the tasks selected by scope. Editing "future" or
// "all" also updates the series template so later instances inherit the
// change. It returns the number of tasks changed.
func (s *TaskService) EditTask(ctx context.Context, user *model.User, taskID string, scope series.Scope, patch series.TemplatePatch) (int, error) {
	task, err := s.GetTask(ctx, user, taskID)
	if err != nil {
		return 0, err
	}
	if patch.Empty() {
		return 0, nil
	}
	if title := patch.Title; title != nil && strings.TrimSpace(*title) == "" {
		return 0, ErrTitleRequired
	}

	scope = scopeFor(task, scope)
	affected := []model.Task{*task}
	if scope != series.ScopeThis {
		if affected, err = s.resolve(ctx, task, scope); err != nil {
			return 0, err
		}
	}
	patched := series.ApplyPatch(affected, patch)

	err = s.tx.Within(ctx, func(tx *gorm.DB) error {
		if err := s.taskRepo.WithTx(tx).SaveAll(ctx, patched); err != nil {
			return err
		}
		if scope == series.ScopeThis {
			return nil
		}
		seriesRepo := s.seriesRepo.WithTx(tx)
		sr, err := seriesRepo.FindByID(ctx, user.ID, *task.SeriesID)
		if err != nil {
			return notFound(err)
		}
		patch.ApplyTemplate(&sr.Template)
		return seriesRepo.UpdateTemplate(ctx, sr)
	})
	if err != nil {
		return 0, err
	}
	return len(patched), nil
}

// DeleteTask soft-deletes the tasks selected by scope. Deleting "future" or
// "all" instances also deactivates the series so nothing new is generated.
func (s *TaskService) DeleteTask(ctx context.Context, user *model.User, taskID string, scope series.Scope) (int64, error) {
	task, err := s.GetTask(ctx, user, taskID)
	if err != nil {
		return 0, err
	}

	scope = scopeFor(task, scope)
	ids := []string{task.ID}
	if scope != series.ScopeThis {
		affected, err := s.resolve(ctx, task, scope)
		if err != nil {
			return 0, err
		}
		ids = taskIDs(affected)
	}

	var deleted int64
	err = s.tx.Within(ctx, func(tx *gorm.DB) error {
		n, err := s.taskRepo.WithTx(tx).DeleteIDs(ctx, user.ID, ids)
		if err != nil {
			return err
		}
		deleted = n
		if scope == series.ScopeThis {
			return nil
		}
		return notFound(s.seriesRepo.WithTx(tx).SetActive(ctx, user.ID, *task.SeriesID, false))
	})
	if err != nil {
		return 0, err
	}

	if scope != series.ScopeThis {
		s.log.Info().
			Str("series_id", *task.SeriesID).
			Str("scope", string(scope)).
			Int64("deleted", deleted).
			Msg("series deactivated")
	}
	return deleted, nil
}

func (s *TaskService) ListSeries(ctx context.Context, user *model.User) ([]model.Series, error) {
	return s.seriesRepo.ListByUser(ctx, user.ID)
}

// PauseSeries stops generation for a series. Existing instances stay.
func (s *TaskService) PauseSeries(ctx context.Context, user *model.User, seriesID string) error {
	return notFound(s.seriesRepo.SetActive(ctx, user.ID, seriesID, false))
}

// ResumeSeries reactivates a series and schedules a generation pass.
func (s *TaskService) ResumeSeries(ctx context.Context, user *model.User, seriesID string) error {
	if err := s.seriesRepo.SetActive(ctx, user.ID, seriesID, true); err != nil {
		return notFound(err)
	}
	s.notify()
	return nil
}

func (s *TaskService) resolve(ctx context.Context, task *model.Task, scope series.Scope) ([]model.Task, error) {
	instances, err := s.taskRepo.ListBySeries(ctx, *task.SeriesID, false)
	if err != nil {
		return nil, err
	}
	res, err := series.ResolveScope(instances, *task.SeriesID, scope, task.ID)
	if err != nil {
		return nil, fmt.Errorf("resolve scope: %w", err)
	}
	return res.Affected, nil
}

func (s *TaskService) notify() {
	if s.trigger != nil {
		s.trigger.Trigger()
	}
}

// scopeFor narrows the scope to "this" for one-off tasks.
func scopeFor(task *model.Task, scope series.Scope) series.Scope {
	if !task.IsRecurring() || scope == "" {
		return series.ScopeThis
	}
	return scope
}

func taskIDs(tasks []model.Task) []string {
	out := make([]string, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, t.ID)
	}
	return out
}
