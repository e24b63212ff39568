package bot

import (
	"fmt"
	"html"
	"log"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

func (b *Bot) handleUpdate(update tgbotapi.Update) {
	if update.Message != nil {
		b.handleMessage(update.Message)
	} else if update.CallbackQuery != nil {
		b.handleCallback(update.CallbackQuery)
	}
}

func (b *Bot) handleMessage(msg *tgbotapi.Message) {
	if msg.From == nil {
		return
	}
	chatID := msg.Chat.ID

	if !b.isAllowed(msg.From.ID) {
		b.SendMessage(chatID, "⛔ Access denied")
		return
	}

	if msg.IsCommand() {
		b.handleCommand(msg)
		return
	}

	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return
	}

	// Plain text that starts with a time is a quick add.
	if _, _, err := parseWhen(strings.Fields(text), b.now().In(b.location)); err == nil {
		b.addFromText(chatID, text)
		return
	}
	b.SendMessage(chatID, "Start with a time to add a reminder, e.g. <code>18:30 Buy milk</code>. /help for more")
}

func (b *Bot) handleCallback(callback *tgbotapi.CallbackQuery) {
	if callback.Message == nil {
		return
	}
	chatID := callback.Message.Chat.ID
	msgID := callback.Message.MessageID

	if !b.isAllowed(callback.From.ID) {
		b.answer(callback.ID, "⛔ Access denied")
		return
	}

	action, arg, _ := strings.Cut(callback.Data, ":")

	switch action {
	case "dismiss":
		id := atoi(arg)
		r, err := b.dismiss(id)
		if err != nil && !isNotFound(err) {
			log.Printf("[bot] Dismiss reminder %d: %v", id, err)
			b.answer(callback.ID, "❌ "+err.Error())
			return
		}
		b.answer(callback.ID, "✅ Done")
		if r != nil {
			b.editMessage(chatID, msgID, formatReminder(r), nil)
		} else {
			b.editMessage(chatID, msgID, "✅ Dismissed", nil)
		}

	case "stop":
		id := atoi(arg)
		if !b.silence(id) {
			// Not ours any more; silence whatever is ringing.
			b.stopper.StopAlert()
		}
		b.answer(callback.ID, "🔕 Stopped")
		kb := silencedKeyboard(id)
		if r, err := b.reminders.Get(id); err == nil && r != nil {
			b.editMessage(chatID, msgID, alertText(r), &kb)
		}

	case "done":
		id := atoi(arg)
		r, err := await(b.reminders.ToggleCompleted(id))
		if err != nil {
			b.answer(callback.ID, "❌ "+err.Error())
			return
		}
		if r.IsCompleted {
			b.answer(callback.ID, "✅ Completed")
		} else {
			b.answer(callback.ID, "↩️ Reopened")
		}
		kb := reminderKeyboard(r)
		b.editMessage(chatID, msgID, formatReminder(r), &kb)

	case "edit":
		b.answer(callback.ID, "")
		b.selectForEdit(chatID, atoi(arg))

	case "del":
		id := atoi(arg)
		r, err := b.reminders.Get(id)
		if err != nil || r == nil {
			b.answer(callback.ID, "Reminder not found")
			return
		}
		b.answer(callback.ID, "")
		kb := confirmDeleteKeyboard(id)
		b.editMessage(chatID, msgID, "🗑 Delete?\n\n"+formatReminder(r), &kb)

	case "confirm_del":
		id := atoi(arg)
		r, err := b.reminders.Get(id)
		if err != nil || r == nil {
			b.answer(callback.ID, "Reminder not found")
			return
		}
		if _, err := await(b.reminders.Delete(r)); err != nil {
			b.answer(callback.ID, "❌ "+err.Error())
			return
		}
		if cur := b.reminders.Current(); cur != nil && cur.ID == id {
			b.reminders.ClearCurrent()
		}
		b.answer(callback.ID, "🗑 Deleted")
		b.editMessage(chatID, msgID, fmt.Sprintf("🗑 Deleted <b>#%d</b> %s", id, html.EscapeString(r.Title)), nil)

	case "refresh":
		b.answer(callback.ID, "")
		b.refreshList(chatID, msgID, arg)

	default:
		b.answer(callback.ID, "")
	}
}

func (b *Bot) refreshList(chatID int64, msgID int, which string) {
	header := "📋 <b>Reminders</b>"
	list, err := b.reminders.List()
	if which == "today" {
		header = "📅 <b>Today</b>"
		list, err = b.reminders.ListForDate(b.now().In(b.location))
	}
	if err != nil {
		log.Printf("[bot] Refresh %s: %v", which, err)
		return
	}
	if len(list) == 0 {
		b.editMessage(chatID, msgID, header+"\n\nNothing here.", nil)
		return
	}
	b.editMessage(chatID, msgID, formatList(header, list), listKeyboard(list, which))
}

func atoi(s string) int64 {
	n, _ := strconv.ParseInt(s, 10, 64)
	return n
}
