package bot

import (
	"fmt"
	"html"
	"strings"
	"time"
	"unicode"

	"planner/internal/model"
	"planner/internal/recurrence"
)

const (
	noCategory    = "Без категории"
	noCategoryKey = "__no_category__"
	iconDefault   = "🟢"
	iconDue       = "⏳"
	iconOverdue   = "⚠️"
	iconRecurring = "♻️"
	iconHigh      = "🔴"
	iconPaused    = "⏸"
)

func escape(s string) string {
	return html.EscapeString(s)
}

func normalizeTitle(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return value
	}
	runes := []rune(value)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}

func shortTitle(title string, maxLen int) string {
	clean := normalizeTitle(strings.ReplaceAll(title, "\n", " "))
	runes := []rune(clean)
	if len(runes) <= maxLen {
		return clean
	}
	if maxLen <= 1 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-1]) + "…"
}

// shortID is the prefix of a task id shown in lists and accepted by
// /complete and /delete.
func shortID(id string) string {
	if len(id) > 8 {
		id = id[:8]
	}
	return "#" + id
}

func categoryLabel(name string) string {
	base := strings.TrimSpace(name)
	var icon string
	switch strings.ToLower(base) {
	case "учеба":
		icon = "🎓"
	case "работа":
		icon = "💼"
	case "покупки":
		icon = "🛒"
	case "здоровье":
		icon = "🩺"
	case strings.ToLower(noCategory):
		icon = "📁"
	default:
		icon = "🏷️"
	}
	return fmt.Sprintf("%s %s", icon, escape(normalizeTitle(base)))
}

// normalizedCategory returns a grouping key and a display label.
func normalizedCategory(categoryID *uint, catNames map[uint]string) (string, string) {
	if categoryID != nil {
		if name := strings.TrimSpace(catNames[*categoryID]); name != "" {
			return strings.ToLower(name), categoryLabel(name)
		}
	}
	return noCategoryKey, categoryLabel(noCategory)
}

func formatTask(task model.Task, now time.Time) string {
	if task.InstanceDate != nil {
		return formatInstance(task, now)
	}

	var b strings.Builder
	icon := iconDefault
	if task.Priority == model.PriorityHigh {
		icon = iconHigh
	}
	if task.Deadline != nil {
		d := task.Deadline.In(now.Location())
		if now.After(d) {
			icon = iconOverdue
		} else if d.Sub(now) <= 48*time.Hour {
			icon = iconDue
		}
	}
	b.WriteString(fmt.Sprintf("%s <b>%s</b> %s\n", icon, shortID(task.ID), escape(normalizeTitle(task.Title))))
	if task.Deadline != nil {
		d := task.Deadline.In(now.Location())
		if now.After(d) {
			b.WriteString(fmt.Sprintf("   ⏰ Дедлайн: %s, <b>просрочено</b>\n", d.Format(dateLayout)))
		} else {
			daysLeft := int(d.Sub(now).Hours()/24) + 1
			b.WriteString(fmt.Sprintf("   ⏰ Дедлайн: %s · осталось ≈%d дн.\n", d.Format(dateLayout), daysLeft))
		}
	}
	if task.Description != "" {
		b.WriteString(fmt.Sprintf("   📝 %s\n", escape(task.Description)))
	}
	return b.String()
}

// formatInstance renders a series instance relative to today's date.
func formatInstance(task model.Task, now time.Time) string {
	var b strings.Builder
	day := recurrence.Day(task.InstanceDate.UTC())
	diff := recurrence.DaysBetween(recurrence.Today(now), day)

	var when string
	switch {
	case diff < 0:
		when = fmt.Sprintf("%s, <b>просрочено</b>", day.Format(dateLayout))
	case diff == 0:
		when = "сегодня"
	case diff == 1:
		when = "завтра"
	default:
		when = day.Format(dateLayout)
	}
	b.WriteString(fmt.Sprintf("%s <b>%s</b> %s\n", iconRecurring, shortID(task.ID), escape(normalizeTitle(task.Title))))
	b.WriteString(fmt.Sprintf("   📅 %s\n", when))
	if task.Description != "" {
		b.WriteString(fmt.Sprintf("   📝 %s\n", escape(task.Description)))
	}
	return b.String()
}

func formatSeries(sr model.Series) string {
	var b strings.Builder
	icon := iconRecurring
	if !sr.Active {
		icon = iconPaused
	}
	b.WriteString(fmt.Sprintf("%s <b>%s</b>\n", icon, escape(normalizeTitle(sr.Template.Title))))
	b.WriteString(fmt.Sprintf("   🔄 %s\n", escape(recurrence.FormatPreview(sr.Rule))))
	if !sr.Active {
		b.WriteString("   На паузе, новые повторы не создаются.\n")
	}
	b.WriteByte('\n')
	return b.String()
}
