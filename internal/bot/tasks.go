package bot

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"planner/internal/model"
	"planner/internal/recurrence"
	"planner/internal/series"
	"planner/internal/service"
)

const (
	cbCompletePrefix = "complete:"
	cbSkipPrefix     = "skip:"
	cbDeletePrefix   = "delete:"
	cbScopePrefix    = "scope:"
	cbPausePrefix    = "pause:"
	cbResumePrefix   = "resume:"
)

func (b *Bot) handleListTasks(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}
	return b.sendTaskList(ctx, msg.Chat.ID, user)
}

func (b *Bot) sendTaskList(ctx context.Context, chatID int64, user *model.User) error {
	tasks, err := b.taskSvc.ListOpen(ctx, user)
	if err != nil {
		return b.sendText(chatID, fmt.Sprintf("Не удалось получить задачи: %s", escape(err.Error())))
	}
	catNames, _ := b.categorySvc.Names(ctx, user)

	now := time.Now()
	tasks = visibleTasks(tasks, now)
	if len(tasks) == 0 {
		return b.sendText(chatID, "У тебя нет открытых задач. Добавь новую через /newtask.")
	}

	type categoryGroup struct {
		Name  string
		Tasks []model.Task
	}
	groups := make(map[string]*categoryGroup)
	order := make([]string, 0, len(tasks))
	for _, task := range tasks {
		key, display := normalizedCategory(task.CategoryID, catNames)
		group, ok := groups[key]
		if !ok {
			group = &categoryGroup{Name: display}
			groups[key] = group
			order = append(order, key)
		}
		group.Tasks = append(group.Tasks, task)
	}

	sort.Slice(order, func(i, j int) bool {
		if order[i] == noCategoryKey {
			return false
		}
		if order[j] == noCategoryKey {
			return true
		}
		return strings.Compare(groups[order[i]].Name, groups[order[j]].Name) < 0
	})

	var builder strings.Builder
	builder.WriteString("📋 <b>Текущие задачи</b>\n")
	builder.WriteString("Кнопки под списком: ✅ выполнить, ⏭ пропустить повтор, 🗑 удалить.\n\n")

	var buttons [][]tgbotapi.InlineKeyboardButton
	for _, key := range order {
		section := groups[key]
		sort.SliceStable(section.Tasks, func(i, j int) bool {
			return taskSortKey(section.Tasks[i]).Before(taskSortKey(section.Tasks[j]))
		})

		builder.WriteString(fmt.Sprintf("<b>%s</b>\n", section.Name))
		for _, task := range section.Tasks {
			builder.WriteString(formatTask(task, now))
			buttons = append(buttons, taskButtons(task))
		}
		builder.WriteByte('\n')
	}

	msg := tgbotapi.NewMessage(chatID, strings.TrimSpace(builder.String()))
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(buttons...)
	msg.ParseMode = tgbotapi.ModeHTML
	_, err = b.api.Send(msg)
	return err
}

// visibleTasks hides series instances further than a week out; the list
// would otherwise be flooded by a daily series.
func visibleTasks(tasks []model.Task, now time.Time) []model.Task {
	horizon := recurrence.AddDays(recurrence.Today(now), 7)
	out := tasks[:0:0]
	for _, task := range tasks {
		if task.InstanceDate != nil && recurrence.Day(task.InstanceDate.UTC()).After(horizon) {
			continue
		}
		out = append(out, task)
	}
	return out
}

func taskSortKey(task model.Task) time.Time {
	switch {
	case task.Deadline != nil:
		return *task.Deadline
	case task.InstanceDate != nil:
		return *task.InstanceDate
	default:
		return time.Date(9999, 1, 1, 0, 0, 0, 0, time.UTC)
	}
}

func taskButtons(task model.Task) []tgbotapi.InlineKeyboardButton {
	row := []tgbotapi.InlineKeyboardButton{
		tgbotapi.NewInlineKeyboardButtonData("✅ "+shortTitle(task.Title, 20), cbCompletePrefix+task.ID),
	}
	if task.IsRecurring() {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData("⏭", cbSkipPrefix+task.ID))
	}
	return append(row, tgbotapi.NewInlineKeyboardButtonData("🗑", cbDeletePrefix+task.ID))
}

func scopeKeyboard(taskID string) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Только эту", cbScopePrefix+string(series.ScopeThis)+":"+taskID),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Эту и следующие", cbScopePrefix+string(series.ScopeFuture)+":"+taskID),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Всю серию", cbScopePrefix+string(series.ScopeAll)+":"+taskID),
		),
	)
}

// parseScopeData splits "scope:<scope>:<task id>".
func parseScopeData(data string) (series.Scope, string, error) {
	rest := strings.TrimPrefix(data, cbScopePrefix)
	raw, taskID, ok := strings.Cut(rest, ":")
	if !ok || taskID == "" {
		return "", "", fmt.Errorf("malformed scope callback %q", data)
	}
	scope, err := series.ParseScope(raw)
	if err != nil {
		return "", "", err
	}
	return scope, taskID, nil
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) error {
	if cb == nil || cb.From == nil || cb.Message == nil {
		return nil
	}
	b.ack(cb)

	data := cb.Data
	chatID := cb.Message.Chat.ID
	b.log.Debug().Int64("from", cb.From.ID).Str("data", data).Msg("callback")

	switch {
	case strings.HasPrefix(data, cbCompletePrefix):
		return b.askCompleteConfirmation(ctx, chatID, cb.From, strings.TrimPrefix(data, cbCompletePrefix))
	case strings.HasPrefix(data, cbSkipPrefix):
		return b.skipTaskAndRefresh(ctx, chatID, cb.From, strings.TrimPrefix(data, cbSkipPrefix))
	case strings.HasPrefix(data, cbDeletePrefix):
		return b.askDeleteScope(ctx, chatID, cb.From, strings.TrimPrefix(data, cbDeletePrefix))
	case strings.HasPrefix(data, cbScopePrefix):
		scope, taskID, err := parseScopeData(data)
		if err != nil {
			return nil
		}
		return b.askDeleteConfirmation(ctx, chatID, cb.From, taskID, scope)
	case strings.HasPrefix(data, cbPausePrefix):
		return b.setSeriesActive(ctx, chatID, cb.From, strings.TrimPrefix(data, cbPausePrefix), false)
	case strings.HasPrefix(data, cbResumePrefix):
		return b.setSeriesActive(ctx, chatID, cb.From, strings.TrimPrefix(data, cbResumePrefix), true)
	default:
		return nil
	}
}

func (b *Bot) askCompleteConfirmation(ctx context.Context, chatID int64, from *tgbotapi.User, taskID string) error {
	user, err := b.ensureUser(ctx, from)
	if err != nil {
		return err
	}
	task, err := b.taskSvc.GetTask(ctx, user, taskID)
	if err != nil {
		return b.sendText(chatID, userError(err))
	}
	if task.IsCompleted {
		return b.sendText(chatID, "Задача уже выполнена.")
	}

	text := fmt.Sprintf("Отметить задачу «%s» (%s) как выполненную?", escape(normalizeTitle(task.Title)), shortID(task.ID))
	b.sessions.await(from.ID, confirmationRequest{taskID: task.ID, action: actionComplete})
	return b.sendWithReplyMarkup(chatID, text, confirmKeyboard())
}

// askDeleteScope asks which instances to remove when the task belongs to a
// series. One-off tasks go straight to the confirmation.
func (b *Bot) askDeleteScope(ctx context.Context, chatID int64, from *tgbotapi.User, taskID string) error {
	user, err := b.ensureUser(ctx, from)
	if err != nil {
		return err
	}
	task, err := b.taskSvc.GetTask(ctx, user, taskID)
	if err != nil {
		return b.sendText(chatID, userError(err))
	}
	if !task.IsRecurring() {
		return b.askDeleteConfirmation(ctx, chatID, from, task.ID, series.ScopeThis)
	}
	text := fmt.Sprintf("🗑 «%s» — регулярная задача. Что удалить?", escape(normalizeTitle(task.Title)))
	return b.sendWithReplyMarkup(chatID, text, scopeKeyboard(task.ID))
}

func (b *Bot) askDeleteConfirmation(ctx context.Context, chatID int64, from *tgbotapi.User, taskID string, scope series.Scope) error {
	user, err := b.ensureUser(ctx, from)
	if err != nil {
		return err
	}
	task, err := b.taskSvc.GetTask(ctx, user, taskID)
	if err != nil {
		return b.sendText(chatID, userError(err))
	}
	count, err := b.taskSvc.CountAffected(ctx, user, taskID, scope)
	if err != nil {
		return b.sendText(chatID, userError(err))
	}

	text := deleteConfirmationText(task.Title, count, scope)
	b.sessions.await(from.ID, confirmationRequest{taskID: task.ID, action: actionDelete, scope: scope})
	return b.sendWithReplyMarkup(chatID, text, confirmKeyboard())
}

func deleteConfirmationText(title string, count int, scope series.Scope) string {
	title = escape(normalizeTitle(title))
	switch scope {
	case series.ScopeFuture:
		return fmt.Sprintf("Будет удалено задач: <b>%d</b> («%s» и все следующие). Серия остановится. Удалить?", count, title)
	case series.ScopeAll:
		return fmt.Sprintf("Будет удалено задач: <b>%d</b> (вся серия «%s»). Удалить?", count, title)
	default:
		return fmt.Sprintf("Удалить задачу «%s»?", title)
	}
}

func (b *Bot) handleConfirmationResponse(ctx context.Context, msg *tgbotapi.Message, req confirmationRequest) error {
	text := strings.TrimSpace(msg.Text)
	switch {
	case isConfirmInput(text):
		b.sessions.resolve(msg.From.ID)
		if req.action == actionDelete {
			return b.deleteTaskAndRefresh(ctx, msg.Chat.ID, msg.From, req.taskID, req.scope)
		}
		return b.completeTaskAndRefresh(ctx, msg.Chat.ID, msg.From, req.taskID)
	case isCancelInput(text):
		b.sessions.resolve(msg.From.ID)
		return b.sendMenuPlaceholder(msg.Chat.ID)
	default:
		prompt := "Подтверди или отмени выполнение задачи."
		if req.action == actionDelete {
			prompt = "Подтверди или отмени удаление."
		}
		return b.sendWithReplyMarkup(msg.Chat.ID, prompt, confirmKeyboard())
	}
}

func (b *Bot) completeTaskAndRefresh(ctx context.Context, chatID int64, from *tgbotapi.User, taskID string) error {
	user, err := b.ensureUser(ctx, from)
	if err != nil {
		return err
	}
	task, err := b.taskSvc.CompleteTask(ctx, user, taskID)
	if err != nil {
		return b.sendTextWithRemove(chatID, userError(err))
	}

	info := fmt.Sprintf("✅ Задача «%s» выполнена.", escape(normalizeTitle(task.Title)))
	if task.IsRecurring() && task.InstanceDate != nil {
		info = fmt.Sprintf("♻️ «%s» за %s выполнена.", escape(normalizeTitle(task.Title)), task.InstanceDate.UTC().Format(dateLayout))
	}
	b.log.Info().Str("task", task.ID).Uint("user", user.ID).Bool("recurring", task.IsRecurring()).Msg("task completed")
	if err := b.sendTextWithRemove(chatID, info); err != nil {
		return err
	}
	return b.sendTaskList(ctx, chatID, user)
}

func (b *Bot) skipTaskAndRefresh(ctx context.Context, chatID int64, from *tgbotapi.User, taskID string) error {
	user, err := b.ensureUser(ctx, from)
	if err != nil {
		return err
	}
	task, err := b.taskSvc.SkipTask(ctx, user, taskID)
	if err != nil {
		return b.sendText(chatID, userError(err))
	}
	if err := b.sendText(chatID, fmt.Sprintf("⏭ «%s» пропущена.", escape(normalizeTitle(task.Title)))); err != nil {
		return err
	}
	return b.sendTaskList(ctx, chatID, user)
}

func (b *Bot) deleteTaskAndRefresh(ctx context.Context, chatID int64, from *tgbotapi.User, taskID string, scope series.Scope) error {
	user, err := b.ensureUser(ctx, from)
	if err != nil {
		return err
	}
	deleted, err := b.taskSvc.DeleteTask(ctx, user, taskID, scope)
	if err != nil {
		return b.sendTextWithRemove(chatID, userError(err))
	}

	b.log.Info().Str("task", taskID).Uint("user", user.ID).Str("scope", string(scope)).Int64("deleted", deleted).Msg("tasks deleted")
	if err := b.sendTextWithRemove(chatID, fmt.Sprintf("🗑 Удалено задач: %d.", deleted)); err != nil {
		return err
	}
	return b.sendTaskList(ctx, chatID, user)
}

// resolveTaskRef finds an open task by the short id shown in lists.
func (b *Bot) resolveTaskRef(ctx context.Context, user *model.User, ref string) (*model.Task, error) {
	ref = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(ref)), "#")
	if ref == "" {
		return nil, service.ErrNotFound
	}
	tasks, err := b.taskSvc.ListOpen(ctx, user)
	if err != nil {
		return nil, err
	}
	var found *model.Task
	for i := range tasks {
		if strings.HasPrefix(tasks[i].ID, ref) {
			if found != nil {
				return nil, errAmbiguousRef
			}
			found = &tasks[i]
		}
	}
	if found == nil {
		return nil, service.ErrNotFound
	}
	return found, nil
}

var errAmbiguousRef = errors.New("ambiguous task id")

func (b *Bot) handleComplete(ctx context.Context, msg *tgbotapi.Message) error {
	args := strings.TrimSpace(msg.CommandArguments())
	if args == "" {
		return b.sendText(msg.Chat.ID, "Укажи короткий id задачи из списка: /complete 3f2a9c1d")
	}
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}
	task, err := b.resolveTaskRef(ctx, user, args)
	if err != nil {
		return b.sendText(msg.Chat.ID, refError(err))
	}
	return b.completeTaskAndRefresh(ctx, msg.Chat.ID, msg.From, task.ID)
}

func (b *Bot) handleDelete(ctx context.Context, msg *tgbotapi.Message) error {
	args := strings.TrimSpace(msg.CommandArguments())
	if args == "" {
		return b.sendText(msg.Chat.ID, "Укажи короткий id задачи из списка: /delete 3f2a9c1d")
	}
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}
	task, err := b.resolveTaskRef(ctx, user, args)
	if err != nil {
		return b.sendText(msg.Chat.ID, refError(err))
	}
	return b.askDeleteScope(ctx, msg.Chat.ID, msg.From, task.ID)
}

func refError(err error) string {
	if errors.Is(err, errAmbiguousRef) {
		return "Под этот id подходит несколько задач, укажи больше символов."
	}
	return userError(err)
}

func (b *Bot) handleListSeries(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}
	return b.sendSeriesList(ctx, msg.Chat.ID, user)
}

func (b *Bot) sendSeriesList(ctx context.Context, chatID int64, user *model.User) error {
	list, err := b.taskSvc.ListSeries(ctx, user)
	if err != nil {
		return b.sendText(chatID, fmt.Sprintf("Не удалось получить регулярные задачи: %s", escape(err.Error())))
	}
	if len(list) == 0 {
		return b.sendText(chatID, "Регулярных задач пока нет. Создай через /newtask и выбери повтор.")
	}

	var builder strings.Builder
	builder.WriteString("🔁 <b>Регулярные задачи</b>\n\n")
	var buttons [][]tgbotapi.InlineKeyboardButton
	for _, sr := range list {
		builder.WriteString(formatSeries(sr))
		if sr.Active {
			buttons = append(buttons, tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData("⏸ "+shortTitle(sr.Template.Title, 24), cbPausePrefix+sr.ID),
			))
		} else {
			buttons = append(buttons, tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData("▶️ "+shortTitle(sr.Template.Title, 24), cbResumePrefix+sr.ID),
			))
		}
	}

	msg := tgbotapi.NewMessage(chatID, strings.TrimSpace(builder.String()))
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(buttons...)
	msg.ParseMode = tgbotapi.ModeHTML
	_, err = b.api.Send(msg)
	return err
}

func (b *Bot) setSeriesActive(ctx context.Context, chatID int64, from *tgbotapi.User, seriesID string, active bool) error {
	user, err := b.ensureUser(ctx, from)
	if err != nil {
		return err
	}
	if active {
		err = b.taskSvc.ResumeSeries(ctx, user, seriesID)
	} else {
		err = b.taskSvc.PauseSeries(ctx, user, seriesID)
	}
	if err != nil {
		return b.sendText(chatID, userError(err))
	}
	return b.sendSeriesList(ctx, chatID, user)
}
