package bot

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/tazhate/remora/internal/domain"
)

const maxListButtons = 10

// Keyboard of a ringing alarm
func alertKeyboard(id int64) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Dismiss & Complete", fmt.Sprintf("dismiss:%d", id)),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🔕 Stop ringing", fmt.Sprintf("stop:%d", id)),
		),
	)
}

// Keyboard after the ringing was stopped
func silencedKeyboard(id int64) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Dismiss & Complete", fmt.Sprintf("dismiss:%d", id)),
		),
	)
}

// Single reminder actions
func reminderKeyboard(r *domain.Reminder) tgbotapi.InlineKeyboardMarkup {
	toggle := "✅ Done"
	if r.IsCompleted {
		toggle = "↩️ Reopen"
	}
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(toggle, fmt.Sprintf("done:%d", r.ID)),
			tgbotapi.NewInlineKeyboardButtonData("✏️ Edit", fmt.Sprintf("edit:%d", r.ID)),
			tgbotapi.NewInlineKeyboardButtonData("🗑 Delete", fmt.Sprintf("del:%d", r.ID)),
		),
	)
}

// List keyboard: one toggle button per open reminder
func listKeyboard(list []*domain.Reminder, refresh string) *tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton

	for _, r := range list {
		if r.IsCompleted {
			continue
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(
				fmt.Sprintf("✅ %s %s", r.DueDateTime.Format("02.01 15:04"), truncate(r.Title, 25)),
				fmt.Sprintf("done:%d", r.ID),
			),
		))
		if len(rows) >= maxListButtons {
			break
		}
	}

	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("🔄 Refresh", "refresh:"+refresh),
	))

	keyboard := tgbotapi.NewInlineKeyboardMarkup(rows...)
	return &keyboard
}

// Confirm delete keyboard
func confirmDeleteKeyboard(id int64) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("❌ Yes, delete", fmt.Sprintf("confirm_del:%d", id)),
			tgbotapi.NewInlineKeyboardButtonData("◀️ Cancel", "refresh:list"),
		),
	)
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-1]) + "…"
}
