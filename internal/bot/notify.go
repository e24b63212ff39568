package bot

import (
	"context"
	"fmt"
	"html"
	"log"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/tazhate/remora/internal/delivery"
	"github.com/tazhate/remora/internal/domain"
	"github.com/tazhate/remora/internal/scheduler"
	"github.com/tazhate/remora/internal/storage"
)

// Present posts the alarm for r to the owner chat. An earlier alarm message
// for the same reminder is deleted first.
func (b *Bot) Present(_ context.Context, r *domain.Reminder, alert scheduler.Alert) error {
	msg := tgbotapi.NewMessage(b.chatID, alertText(r))
	msg.ParseMode = "HTML"
	msg.ReplyMarkup = alertKeyboard(r.ID)

	b.mu.Lock()
	prev, hadPrev := b.alerts[r.ID]
	b.mu.Unlock()
	if hadPrev {
		b.deleteMessage(prev.messageID)
	}

	sent, err := b.api.Send(msg)
	if err != nil {
		return fmt.Errorf("send alarm: %w", err)
	}

	b.mu.Lock()
	b.alerts[r.ID] = alertMessage{messageID: sent.MessageID, text: msg.Text, alert: alert}
	b.mu.Unlock()
	return nil
}

// takeAlert forgets the alarm message for id and returns it.
func (b *Bot) takeAlert(id int64) (alertMessage, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	am, ok := b.alerts[id]
	if ok {
		delete(b.alerts, id)
	}
	return am, ok
}

// Listener registers callbacks for in-app broadcasts.
type Listener interface {
	Listen(action string, fn func()) func()
}

// Follow strips the buttons from every posted alarm when the stop-alert
// broadcast is sent. The returned func unregisters.
func (b *Bot) Follow(l Listener) func() {
	return l.Listen(delivery.ActionStopAlert, b.resolveAlerts)
}

// resolveAlerts forgets all posted alarms. The message edits run in the
// background so the broadcast never waits on Telegram.
func (b *Bot) resolveAlerts() {
	b.mu.Lock()
	resolved := make([]alertMessage, 0, len(b.alerts))
	for id, am := range b.alerts {
		resolved = append(resolved, am)
		delete(b.alerts, id)
	}
	b.mu.Unlock()

	if len(resolved) == 0 {
		return
	}
	go func() {
		for _, am := range resolved {
			b.editMessage(b.chatID, am.messageID, am.text+"\n\n🔕 Stopped", nil)
		}
	}()
}

// dismiss silences the alarm and marks the reminder completed without
// touching its registration.
func (b *Bot) dismiss(id int64) (*domain.Reminder, error) {
	if am, ok := b.takeAlert(id); ok && am.alert != nil {
		am.alert.Stop()
	}
	b.stopper.StopAlert()

	r, err := b.reminders.Get(id)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, fmt.Errorf("reminder %d: %w", id, storage.ErrNotFound)
	}
	done := r.Completed()
	updated, err := await(b.reminders.Update(&done, false))
	if err != nil {
		return nil, err
	}
	b.metrics.Dismissed()
	return updated, nil
}

// silence stops the ringing for id and keeps the message around.
func (b *Bot) silence(id int64) bool {
	b.mu.Lock()
	am, ok := b.alerts[id]
	b.mu.Unlock()
	if !ok || am.alert == nil {
		return false
	}
	am.alert.Stop()
	return true
}

func (b *Bot) deleteMessage(msgID int) {
	if _, err := b.api.Request(tgbotapi.NewDeleteMessage(b.chatID, msgID)); err != nil {
		log.Printf("[bot] Delete message %d: %v", msgID, err)
	}
}

func alertText(r *domain.Reminder) string {
	text := fmt.Sprintf("⏰ <b>%s</b>\n🕒 %s  %s %s",
		html.EscapeString(r.Title),
		r.DueDateTime.Format("15:04"),
		r.Priority.Emoji(), r.Priority)
	if r.Description != "" {
		text += "\n\n" + html.EscapeString(r.Description)
	}
	return text
}
