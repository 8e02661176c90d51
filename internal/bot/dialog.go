package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"planner/internal/model"
	"planner/internal/recurrence"
	"planner/internal/service"
)

type conversationStage int

const (
	stageNone conversationStage = iota
	stageTitle
	stageDescription
	stageCategory
	stagePriority
	stageRepeat
	stageDeadline
	stageFrequency
	stageWeekdays
	stageMonthDay
	stageStart
	stageEnd
	stageConfirm
)

const dateLayout = "2006-01-02"

type conversationState struct {
	stage conversationStage
	input service.TaskInput
	rule  recurrence.Rule
}

// reply is the bot's answer to one dialog step.
type reply struct {
	text   string
	markup interface{}
	// save means the dialog is complete and the task can be stored.
	save bool
	// preview means the rule is complete and needs a confirmation.
	preview bool
}

func prompt(text string, markup interface{}) reply {
	return reply{text: text, markup: markup}
}

// next consumes the user's answer for the current stage and moves the
// dialog forward. It never talks to Telegram or the database.
func (s *conversationState) next(text string, today time.Time) reply {
	text = strings.TrimSpace(text)
	switch s.stage {
	case stageTitle:
		if text == "" {
			return prompt("Название не может быть пустым. Как назвать задачу?", cancelKeyboard())
		}
		s.input.Title = text
		s.stage = stageDescription
		return prompt("✏️ Добавь короткое описание (или нажми «Пропустить»).", skipKeyboard())

	case stageDescription:
		if !isSkipInput(text) {
			s.input.Description = text
		}
		s.stage = stageCategory
		return prompt("🏷 Выбери категорию или отправь свою (можно «Пропустить»).", categoryKeyboard())

	case stageCategory:
		if !isSkipInput(text) {
			s.input.Category = text
		}
		s.stage = stagePriority
		return prompt("🎯 Какой приоритет?", priorityKeyboard())

	case stagePriority:
		if !isSkipInput(text) {
			p, ok := parsePriorityInput(text)
			if !ok {
				return prompt("Выбери приоритет кнопкой или нажми «Пропустить».", priorityKeyboard())
			}
			s.input.Priority = p
		}
		s.stage = stageRepeat
		return prompt("🔁 Повторять задачу?", repeatKeyboard())

	case stageRepeat:
		pattern, ok := parseRepeatInput(text)
		if !ok {
			return prompt("Выбери вариант повтора кнопкой.", repeatKeyboard())
		}
		if pattern == "" {
			s.stage = stageDeadline
			return prompt("⏰ Укажи дедлайн в формате <code>2025-11-30</code> (или «Пропустить»).", skipKeyboard())
		}
		s.rule = recurrence.Rule{Pattern: pattern, Frequency: 1}
		switch pattern {
		case recurrence.Daily:
			s.stage = stageStart
			return startPrompt()
		case recurrence.Custom:
			s.stage = stageFrequency
			return prompt("🔢 Раз в сколько дней повторять? Например, 3.", cancelKeyboard())
		case recurrence.Weekly:
			s.stage = stageFrequency
			return prompt("🔢 Раз в сколько недель? 1 — каждую неделю.", frequencyKeyboard())
		default:
			s.stage = stageFrequency
			return prompt("🔢 Раз в сколько месяцев? 1 — каждый месяц.", frequencyKeyboard())
		}

	case stageDeadline:
		if !isSkipInput(text) {
			parsed, err := time.Parse(dateLayout, text)
			if err != nil {
				return prompt("Не могу распознать дату. Используй формат <code>2025-11-30</code> или «Пропустить».", skipKeyboard())
			}
			s.input.Deadline = &parsed
		}
		return reply{save: true}

	case stageFrequency:
		n, err := strconv.Atoi(text)
		if err != nil || n < 1 || n > 365 {
			return prompt("Нужно целое число от 1 до 365.", frequencyKeyboard())
		}
		s.rule.Frequency = n
		switch s.rule.Pattern {
		case recurrence.Weekly:
			s.stage = stageWeekdays
			return prompt("📅 В какие дни недели? Например: <code>пн ср пт</code> или <code>1 3 5</code>.", weekdaysKeyboard())
		case recurrence.Monthly:
			s.stage = stageMonthDay
			return prompt("📆 Какого числа? (1–31). Если такого числа в месяце нет, возьмём последний день.", tgbotapi.NewRemoveKeyboard(true))
		default:
			s.stage = stageStart
			return startPrompt()
		}

	case stageWeekdays:
		days, err := parseWeekdays(text)
		if err != nil {
			return prompt("Не понял дни недели. Пример: <code>пн ср пт</code>.", weekdaysKeyboard())
		}
		s.rule.DaysOfWeek = days
		s.stage = stageStart
		return startPrompt()

	case stageMonthDay:
		day, err := strconv.Atoi(text)
		if err != nil || day < 1 || day > 31 {
			return prompt("День должен быть числом от 1 до 31.", tgbotapi.NewRemoveKeyboard(true))
		}
		s.rule.DayOfMonth = day
		s.stage = stageStart
		return startPrompt()

	case stageStart:
		start := recurrence.Day(today)
		if !isSkipInput(text) {
			parsed, err := time.Parse(dateLayout, text)
			if err != nil {
				return prompt("Не могу распознать дату. Формат <code>2025-11-30</code> или «Пропустить» — начнём сегодня.", skipKeyboard())
			}
			start = parsed
		}
		s.rule.StartDate = start
		s.stage = stageEnd
		return prompt("🏁 Когда закончить? Дата <code>2025-12-31</code>, число повторов (например, <code>10</code>) или «Пропустить» — без конца.", skipKeyboard())

	case stageEnd:
		if !isSkipInput(text) {
			end, count, err := parseEndInput(text)
			if err != nil {
				return prompt("Укажи дату <code>2025-12-31</code>, число повторов или «Пропустить».", skipKeyboard())
			}
			s.rule.EndDate, s.rule.EndAfterOccurrences = end, count
		}
		s.stage = stageConfirm
		return reply{preview: true}

	case stageConfirm:
		switch {
		case isConfirmInput(text):
			rule := s.rule
			s.input.Recurrence = &rule
			return reply{save: true}
		case isCancelInput(text):
			s.stage = stageNone
			return prompt("Создание задачи отменено.", mainMenuKeyboard())
		default:
			return prompt("Подтверди или отмени создание регулярной задачи.", confirmKeyboard())
		}
	}

	s.stage = stageNone
	return prompt("Диалог сброшен. Попробуй ещё раз через /newtask.", mainMenuKeyboard())
}

func startPrompt() reply {
	return prompt("🚀 С какой даты начать? Формат <code>2025-11-30</code> или «Пропустить» — с сегодняшнего дня.", skipKeyboard())
}

func (b *Bot) startNewTaskConversation(ctx context.Context, msg *tgbotapi.Message) error {
	if _, err := b.ensureUser(ctx, msg.From); err != nil {
		return err
	}
	b.log.Debug().Int64("from", msg.From.ID).Msg("start new task conversation")
	b.sessions.startDialog(msg.From.ID, &conversationState{stage: stageTitle})
	return b.sendWithReplyMarkup(msg.Chat.ID, "🆕 Создаём новую задачу.\n<b>Шаг 1:</b> как её назвать?", cancelKeyboard())
}

func (b *Bot) handleConversation(ctx context.Context, msg *tgbotapi.Message) error {
	state := b.sessions.dialog(msg.From.ID)
	if state == nil {
		return nil
	}

	r := state.next(msg.Text, time.Now())
	switch {
	case r.save:
		b.sessions.endDialog(msg.From.ID)
		return b.finishTaskCreation(ctx, msg.From, state.input, msg.Chat.ID)
	case r.preview:
		return b.sendRulePreview(msg.Chat.ID, msg.From.ID, state)
	}
	if state.stage == stageNone {
		b.sessions.endDialog(msg.From.ID)
	}
	return b.sendWithReplyMarkup(msg.Chat.ID, r.text, r.markup)
}

// sendRulePreview shows the rule summary and the next dates before saving.
func (b *Bot) sendRulePreview(chatID, userID int64, state *conversationState) error {
	preview := service.PreviewRule(state.rule, time.Now())
	if !preview.Valid {
		b.sessions.endDialog(userID)
		var sb strings.Builder
		sb.WriteString("⚠️ <b>Правило повтора некорректно:</b>\n")
		for _, e := range preview.Errors {
			sb.WriteString("• " + escape(e) + "\n")
		}
		sb.WriteString("\nНачни заново через /newtask.")
		return b.sendText(chatID, sb.String())
	}
	return b.sendWithReplyMarkup(chatID, formatPreviewMessage(state.input.Title, preview), confirmKeyboard())
}

func formatPreviewMessage(title string, preview service.RulePreview) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("🔁 <b>%s</b>\n", escape(normalizeTitle(title))))
	sb.WriteString(escape(preview.Preview) + "\n")
	if len(preview.Next) > 0 {
		sb.WriteString("\nБлижайшие даты:\n")
		for _, d := range preview.Next {
			sb.WriteString("• " + d + "\n")
		}
	} else {
		sb.WriteString("\nВ ближайшие годы повторов нет.\n")
	}
	sb.WriteString("\nСохранить?")
	return sb.String()
}

func (b *Bot) finishTaskCreation(ctx context.Context, from *tgbotapi.User, input service.TaskInput, chatID int64) error {
	user, err := b.ensureUser(ctx, from)
	if err != nil {
		return err
	}

	res, err := b.taskSvc.CreateTask(ctx, user, input)
	if err != nil {
		return b.sendTextWithRemove(chatID, fmt.Sprintf("Не удалось сохранить задачу: %s", escape(err.Error())))
	}

	var summary strings.Builder
	summary.WriteString("✅ <b>Задача сохранена</b>\n")
	summary.WriteString(fmt.Sprintf("• <b>Название:</b> %s\n", escape(normalizeTitle(input.Title))))
	if input.Description != "" {
		summary.WriteString(fmt.Sprintf("• <b>Описание:</b> %s\n", escape(input.Description)))
	}
	if res.Series != nil {
		summary.WriteString(fmt.Sprintf("• <b>Повтор:</b> %s\n", escape(recurrence.FormatPreview(res.Series.Rule))))
		summary.WriteString(fmt.Sprintf("• <b>Создано повторов:</b> %d\n", len(res.Instances)))
	} else if res.Task != nil {
		summary.WriteString(fmt.Sprintf("• <b>ID:</b> %s\n", shortID(res.Task.ID)))
		if res.Task.Deadline != nil {
			summary.WriteString(fmt.Sprintf("• <b>Дедлайн:</b> %s\n", res.Task.Deadline.Format(dateLayout)))
		}
	}

	if err := b.sendTextWithRemove(chatID, strings.TrimSpace(summary.String())); err != nil {
		return err
	}
	return b.sendTaskList(ctx, chatID, user)
}

func parsePriorityInput(text string) (model.Priority, bool) {
	value := strings.ToLower(strings.TrimSpace(text))
	switch {
	case value == strings.ToLower(btnPriorityHigh), value == "высокий", value == "high":
		return model.PriorityHigh, true
	case value == strings.ToLower(btnPriorityMedium), value == "средний", value == "medium":
		return model.PriorityMedium, true
	case value == strings.ToLower(btnPriorityLow), value == "низкий", value == "low":
		return model.PriorityLow, true
	}
	return "", false
}

// parseRepeatInput maps the repeat keyboard onto a pattern. An empty pattern
// means a one-off task.
func parseRepeatInput(text string) (recurrence.Pattern, bool) {
	value := strings.ToLower(strings.TrimSpace(text))
	switch value {
	case strings.ToLower(btnRepeatNone), "нет", "no", "-":
		return "", true
	case strings.ToLower(btnRepeatDaily), "daily":
		return recurrence.Daily, true
	case strings.ToLower(btnRepeatEveryN), "custom":
		return recurrence.Custom, true
	case strings.ToLower(btnRepeatWeekly), "weekly":
		return recurrence.Weekly, true
	case strings.ToLower(btnRepeatMonthly), "monthly":
		return recurrence.Monthly, true
	}
	return "", false
}

var weekdayAliases = map[string]int{
	"пн": 1, "вт": 2, "ср": 3, "чт": 4, "пт": 5, "сб": 6, "вс": 7,
	"mon": 1, "tue": 2, "wed": 3, "thu": 4, "fri": 5, "sat": 6, "sun": 7,
}

// parseWeekdays accepts weekday abbreviations or ISO numbers separated by
// spaces or commas.
func parseWeekdays(text string) ([]int, error) {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return r == ' ' || r == ',' || r == ';'
	})
	if len(fields) == 0 {
		return nil, fmt.Errorf("no weekdays")
	}
	seen := make(map[int]bool)
	var days []int
	for _, f := range fields {
		d, ok := weekdayAliases[f]
		if !ok {
			n, err := strconv.Atoi(f)
			if err != nil || n < 1 || n > 7 {
				return nil, fmt.Errorf("unknown weekday %q", f)
			}
			d = n
		}
		if !seen[d] {
			seen[d] = true
			days = append(days, d)
		}
	}
	return days, nil
}

// parseEndInput reads either an end date or a number of occurrences.
func parseEndInput(text string) (*time.Time, *int, error) {
	text = strings.TrimSpace(text)
	if n, err := strconv.Atoi(text); err == nil {
		if n < 1 {
			return nil, nil, fmt.Errorf("occurrences must be positive")
		}
		return nil, &n, nil
	}
	end, err := time.Parse(dateLayout, text)
	if err != nil {
		return nil, nil, err
	}
	return &end, nil, nil
}
