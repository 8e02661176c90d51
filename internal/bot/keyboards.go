package bot

import (
	"context"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const (
	btnSkip         = "⏭️ Пропустить"
	btnConfirm      = "✅ Подтвердить"
	btnCancel       = "↩️ Отмена"
	btnCancelDialog = "⏪ Отменить ввод"

	btnPriorityHigh   = "🔴 Высокий"
	btnPriorityMedium = "🟡 Средний"
	btnPriorityLow    = "🟢 Низкий"

	btnRepeatNone    = "Без повтора"
	btnRepeatDaily   = "Каждый день"
	btnRepeatEveryN  = "Раз в N дней"
	btnRepeatWeekly  = "По дням недели"
	btnRepeatMonthly = "Раз в месяц"

	menuLabelNewTask    = "➕ Новая задача"
	menuLabelTasks      = "📋 Задачи"
	menuLabelSeries     = "🔁 Регулярные"
	menuLabelCategories = "📂 Категории"
	menuLabelHelp       = "ℹ️ Помощь"
)

func (b *Bot) handleMenuAlias(ctx context.Context, msg *tgbotapi.Message) (bool, error) {
	switch strings.TrimSpace(strings.ToLower(msg.Text)) {
	case strings.ToLower(menuLabelNewTask):
		return true, b.startNewTaskConversation(ctx, msg)
	case strings.ToLower(menuLabelTasks):
		return true, b.handleListTasks(ctx, msg)
	case strings.ToLower(menuLabelSeries):
		return true, b.handleListSeries(ctx, msg)
	case strings.ToLower(menuLabelCategories):
		return true, b.handleCategories(ctx, msg)
	case strings.ToLower(menuLabelHelp):
		return true, b.handleHelp(msg)
	default:
		return false, nil
	}
}

func replyKeyboard(oneTime bool, rows ...[]tgbotapi.KeyboardButton) tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(rows...)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = oneTime
	return kb
}

func buttonRow(labels ...string) []tgbotapi.KeyboardButton {
	row := make([]tgbotapi.KeyboardButton, 0, len(labels))
	for _, l := range labels {
		row = append(row, tgbotapi.NewKeyboardButton(l))
	}
	return row
}

func mainMenuKeyboard() tgbotapi.ReplyKeyboardMarkup {
	return replyKeyboard(false,
		buttonRow(menuLabelNewTask, menuLabelTasks),
		buttonRow(menuLabelSeries, menuLabelCategories),
		buttonRow(menuLabelHelp),
	)
}

func confirmKeyboard() tgbotapi.ReplyKeyboardMarkup {
	return replyKeyboard(true, buttonRow(btnConfirm, btnCancel, btnCancelDialog))
}

func cancelKeyboard() tgbotapi.ReplyKeyboardMarkup {
	return replyKeyboard(true, buttonRow(btnCancelDialog))
}

func skipKeyboard() tgbotapi.ReplyKeyboardMarkup {
	return replyKeyboard(true, buttonRow(btnSkip), buttonRow(btnCancelDialog))
}

func categoryKeyboard() tgbotapi.ReplyKeyboardMarkup {
	return replyKeyboard(true,
		buttonRow("Учеба", "Работа"),
		buttonRow("Покупки", "Здоровье"),
		buttonRow(btnSkip, btnCancelDialog),
	)
}

func priorityKeyboard() tgbotapi.ReplyKeyboardMarkup {
	return replyKeyboard(true,
		buttonRow(btnPriorityHigh, btnPriorityMedium, btnPriorityLow),
		buttonRow(btnSkip, btnCancelDialog),
	)
}

func repeatKeyboard() tgbotapi.ReplyKeyboardMarkup {
	return replyKeyboard(true,
		buttonRow(btnRepeatNone, btnRepeatDaily),
		buttonRow(btnRepeatEveryN, btnRepeatWeekly),
		buttonRow(btnRepeatMonthly, btnCancelDialog),
	)
}

func frequencyKeyboard() tgbotapi.ReplyKeyboardMarkup {
	return replyKeyboard(true, buttonRow("1", "2", "3", "4"), buttonRow(btnCancelDialog))
}

func weekdaysKeyboard() tgbotapi.ReplyKeyboardMarkup {
	return replyKeyboard(true,
		buttonRow("пн ср пт", "вт чт"),
		buttonRow("пн вт ср чт пт", "сб вс"),
		buttonRow(btnCancelDialog),
	)
}

func isSkipInput(text string) bool {
	value := strings.TrimSpace(strings.ToLower(text))
	return value == "-" || value == strings.ToLower(btnSkip) || value == "пропустить" || value == "skip"
}

func isConfirmInput(text string) bool {
	value := strings.TrimSpace(strings.ToLower(text))
	return value == strings.ToLower(btnConfirm) || value == "подтвердить" || value == "да"
}

func isCancelInput(text string) bool {
	value := strings.TrimSpace(strings.ToLower(text))
	return value == strings.ToLower(btnCancel) || value == "отмена"
}

func isCancelDialogInput(text string) bool {
	value := strings.TrimSpace(strings.ToLower(text))
	return value == strings.ToLower(btnCancelDialog) || value == "отменить ввод"
}
