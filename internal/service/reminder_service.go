package service

import (
	"context"
	"fmt"
	"html"
	"sort"
	"strings"
	"time"

	"planner/internal/model"
	"planner/internal/recurrence"
	"planner/internal/repository"
)

// upcomingDays is how far ahead the report lists series instances.
const upcomingDays = 7

// ReminderService builds human-readable summaries for daily notifications.
type ReminderService struct {
	taskRepo     *repository.TaskRepository
	seriesRepo   *repository.SeriesRepository
	categoryRepo *repository.CategoryRepository
}

func NewReminderService(taskRepo *repository.TaskRepository, seriesRepo *repository.SeriesRepository, categoryRepo *repository.CategoryRepository) *ReminderService {
	return &ReminderService{taskRepo: taskRepo, seriesRepo: seriesRepo, categoryRepo: categoryRepo}
}

func (s *ReminderService) DailySummary(ctx context.Context, user model.User, now time.Time) (string, error) {
	tasks, err := s.taskRepo.ListOpen(ctx, user.ID)
	if err != nil {
		return "", err
	}
	catNames, err := s.categoryRepo.NamesByUser(ctx, user.ID)
	if err != nil {
		return "", err
	}
	seriesList, err := s.seriesRepo.ListByUser(ctx, user.ID)
	if err != nil {
		return "", err
	}
	rules := make(map[string]recurrence.Rule, len(seriesList))
	for _, sr := range seriesList {
		rules[sr.ID] = sr.Rule
	}

	pending, due, upcoming := splitForReport(tasks, now)

	var builder strings.Builder
	builder.WriteString("📋 <b>Ежедневный отчёт</b>\n")
	builder.WriteString(fmt.Sprintf("🗓 %s\n\n", now.Format("02.01.2006")))

	builder.WriteString("🔥 <b>Текущие задачи</b>\n")
	if len(pending) == 0 {
		builder.WriteString("— нет открытых задач\n")
	} else {
		for _, task := range pending {
			builder.WriteString(formatTask(task, catNames, now))
		}
	}

	builder.WriteString("\n♻️ <b>Регулярные задачи на сегодня</b>\n")
	if len(due) == 0 {
		builder.WriteString("— на сегодня ничего\n")
	} else {
		for _, task := range due {
			builder.WriteString(formatRecurring(task, rules, catNames, now))
		}
	}

	if len(upcoming) > 0 {
		builder.WriteString(fmt.Sprintf("\n📅 <b>Ближайшие %d дн.</b>\n", upcomingDays))
		for _, task := range upcoming {
			builder.WriteString(fmt.Sprintf("• %s · %s\n",
				task.InstanceDate.UTC().Format("02.01"),
				html.EscapeString(strings.TrimSpace(task.Title))))
		}
	}

	return strings.TrimSpace(builder.String()), nil
}

// splitForReport separates one-off tasks from series instances that are due
// today (or overdue) and those coming up within upcomingDays.
func splitForReport(tasks []model.Task, now time.Time) (pending, due, upcoming []model.Task) {
	today := recurrence.Today(now)
	horizon := recurrence.AddDays(today, upcomingDays)

	for _, task := range tasks {
		if !task.IsRecurring() || task.InstanceDate == nil {
			pending = append(pending, task)
			continue
		}
		day := recurrence.Day(task.InstanceDate.UTC())
		switch {
		case !day.After(today):
			due = append(due, task)
		case !day.After(horizon):
			upcoming = append(upcoming, task)
		}
	}

	sort.SliceStable(pending, func(i, j int) bool {
		switch {
		case pending[i].Deadline == nil && pending[j].Deadline == nil:
			return pending[i].CreatedAt.After(pending[j].CreatedAt)
		case pending[i].Deadline == nil:
			return false
		case pending[j].Deadline == nil:
			return true
		default:
			return pending[i].Deadline.Before(*pending[j].Deadline)
		}
	})
	byDay := func(list []model.Task) {
		sort.SliceStable(list, func(i, j int) bool {
			return list[i].InstanceDate.Before(*list[j].InstanceDate)
		})
	}
	byDay(due)
	byDay(upcoming)
	return pending, due, upcoming
}

func priorityIcon(p model.Priority) string {
	switch p {
	case model.PriorityHigh:
		return "🔴"
	case model.PriorityLow:
		return "⚪️"
	default:
		return "🟢"
	}
}

func categorySuffix(categoryID *uint, catNames map[uint]string) string {
	if categoryID == nil {
		return ""
	}
	name := strings.TrimSpace(catNames[*categoryID])
	if name == "" {
		return ""
	}
	return fmt.Sprintf(" <i>(%s)</i>", html.EscapeString(name))
}

func formatTask(task model.Task, catNames map[uint]string, now time.Time) string {
	var sb strings.Builder

	icon := priorityIcon(task.Priority)
	if task.Deadline != nil {
		d := task.Deadline.In(now.Location())
		switch {
		case now.After(d):
			icon = "⚠️"
		case d.Sub(now) <= 48*time.Hour:
			icon = "⏳"
		}
	}

	sb.WriteString(fmt.Sprintf("%s %s", icon, html.EscapeString(strings.TrimSpace(task.Title))))
	sb.WriteString(categorySuffix(task.CategoryID, catNames))

	if task.Deadline != nil {
		d := task.Deadline.In(now.Location())
		if now.After(d) {
			sb.WriteString(fmt.Sprintf("\n   ⏰ до %s · <b>просрочено</b>", d.Format("2006-01-02")))
		} else {
			daysLeft := int(d.Sub(now).Hours()/24) + 1
			sb.WriteString(fmt.Sprintf("\n   ⏰ до %s · осталось ≈%d дн.", d.Format("2006-01-02"), daysLeft))
		}
	}

	if task.Description != "" {
		sb.WriteString(fmt.Sprintf("\n   📝 %s", html.EscapeString(strings.TrimSpace(task.Description))))
	}

	sb.WriteByte('\n')
	return sb.String()
}

func formatRecurring(task model.Task, rules map[string]recurrence.Rule, catNames map[uint]string, now time.Time) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("%s %s", priorityIcon(task.Priority), html.EscapeString(strings.TrimSpace(task.Title))))
	sb.WriteString(categorySuffix(task.CategoryID, catNames))

	day := recurrence.Day(task.InstanceDate.UTC())
	if day.Before(recurrence.Today(now)) {
		sb.WriteString(fmt.Sprintf("\n   📆 %s · <b>пропущено</b>", day.Format("2006-01-02")))
	} else {
		sb.WriteString(fmt.Sprintf("\n   📆 %s", day.Format("2006-01-02")))
	}
	if rule, ok := rules[*task.SeriesID]; ok {
		sb.WriteString(fmt.Sprintf("\n   🔁 %s", html.EscapeString(recurrence.FormatPreview(rule))))
	}

	sb.WriteByte('\n')
	return sb.String()
}
