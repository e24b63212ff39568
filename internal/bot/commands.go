package bot

import (
	"errors"
	"fmt"
	"html"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/tazhate/remora/internal/domain"
	"github.com/tazhate/remora/internal/storage"
)

var errNoWhen = errors.New("start with a time: HH:MM, tomorrow HH:MM, DD.MM HH:MM or YYYY-MM-DD HH:MM")

func (b *Bot) handleCommand(msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	args := strings.TrimSpace(msg.CommandArguments())

	switch msg.Command() {
	case "start":
		b.SendMessage(chatID, "👋 Hi! I ring when your reminders are due.\n\n/help — commands")
	case "help":
		b.cmdHelp(chatID)
	case "add":
		b.cmdAdd(chatID, args)
	case "list":
		b.cmdList(chatID)
	case "today":
		b.cmdToday(chatID)
	case "done":
		b.cmdDone(chatID, args)
	case "del":
		b.cmdDel(chatID, args)
	case "edit":
		b.cmdEdit(chatID, args)
	case "set":
		b.cmdSet(chatID, args)
	case "cancel":
		b.reminders.ClearCurrent()
		b.SendMessage(chatID, "Selection cleared")
	case "stop":
		b.stopper.StopAlert()
		b.SendMessage(chatID, "🔕 Stopped")
	default:
		b.SendMessage(chatID, "Unknown command. /help for the list")
	}
}

func (b *Bot) cmdHelp(chatID int64) {
	text := `<b>Commands:</b>

/add 18:30 Buy milk — reminder today (or tomorrow if 18:30 passed)
/add tomorrow 9:00 Call mom | ask about Sunday !high
/add 2030-01-02 09:00 Dentist
/list — all reminders
/today — due today
/done ID — toggle completed
/del ID — delete
/edit ID — select for editing
/set title|desc|time|pri VALUE — change the selected one
/cancel — clear the selection
/stop — stop the ringing alarm

Any text that starts with a time is added as a reminder.`
	b.SendMessage(chatID, text)
}

func (b *Bot) cmdAdd(chatID int64, args string) {
	if args == "" {
		b.SendMessage(chatID, "Usage: /add 18:30 Buy milk")
		return
	}
	b.addFromText(chatID, args)
}

func (b *Bot) addFromText(chatID int64, text string) {
	r, err := parseAdd(text, b.now().In(b.location))
	if err != nil {
		b.SendMessage(chatID, "❌ "+html.EscapeString(err.Error()))
		return
	}
	created, err := await(b.reminders.Insert(r))
	if err != nil {
		b.SendMessage(chatID, "❌ "+html.EscapeString(err.Error()))
		return
	}
	b.SendMessageWithKeyboard(chatID, "➕ Added\n\n"+formatReminder(created), reminderKeyboard(created))
}

func (b *Bot) cmdList(chatID int64) {
	list, err := b.reminders.List()
	if err != nil {
		b.SendMessage(chatID, "❌ "+err.Error())
		return
	}
	b.sendList(chatID, "📋 <b>Reminders</b>", list, "list")
}

func (b *Bot) cmdToday(chatID int64) {
	list, err := b.reminders.ListForDate(b.now().In(b.location))
	if err != nil {
		b.SendMessage(chatID, "❌ "+err.Error())
		return
	}
	b.sendList(chatID, "📅 <b>Today</b>", list, "today")
}

func (b *Bot) sendList(chatID int64, header string, list []*domain.Reminder, refresh string) {
	if len(list) == 0 {
		b.SendMessage(chatID, header+"\n\nNothing here. /add 18:30 Buy milk")
		return
	}
	b.SendMessageWithKeyboard(chatID, formatList(header, list), *listKeyboard(list, refresh))
}

func (b *Bot) cmdDone(chatID int64, args string) {
	id, ok := parseID(args)
	if !ok {
		b.SendMessage(chatID, "Usage: /done ID")
		return
	}
	r, err := await(b.reminders.ToggleCompleted(id))
	if err != nil {
		b.SendMessage(chatID, "❌ "+html.EscapeString(err.Error()))
		return
	}
	b.SendMessage(chatID, formatReminder(r))
}

func (b *Bot) cmdDel(chatID int64, args string) {
	id, ok := parseID(args)
	if !ok {
		b.SendMessage(chatID, "Usage: /del ID")
		return
	}
	r, err := b.reminders.Get(id)
	if err != nil || r == nil {
		b.SendMessage(chatID, fmt.Sprintf("Reminder #%d not found", id))
		return
	}
	b.SendMessageWithKeyboard(chatID, "🗑 Delete?\n\n"+formatReminder(r), confirmDeleteKeyboard(id))
}

func (b *Bot) cmdEdit(chatID int64, args string) {
	id, ok := parseID(args)
	if !ok {
		if cur := b.reminders.Current(); cur != nil {
			b.SendMessage(chatID, "✏️ Editing\n\n"+formatReminder(cur))
			return
		}
		b.SendMessage(chatID, "Usage: /edit ID")
		return
	}
	b.selectForEdit(chatID, id)
}

func (b *Bot) selectForEdit(chatID int64, id int64) {
	r, err := b.reminders.Get(id)
	if err != nil || r == nil {
		b.SendMessage(chatID, fmt.Sprintf("Reminder #%d not found", id))
		return
	}
	b.reminders.SetCurrent(r)
	b.SendMessage(chatID, "✏️ Editing\n\n"+formatReminder(r)+
		"\n\n/set title|desc|time|pri VALUE\n/cancel to stop editing")
}

func (b *Bot) cmdSet(chatID int64, args string) {
	cur := b.reminders.Current()
	if cur == nil {
		b.SendMessage(chatID, "Select a reminder first: /edit ID")
		return
	}
	if err := applyEdit(cur, args, b.now().In(b.location)); err != nil {
		b.SendMessage(chatID, "❌ "+html.EscapeString(err.Error()))
		return
	}
	updated, err := await(b.reminders.Update(cur, true))
	if err != nil {
		b.SendMessage(chatID, "❌ "+html.EscapeString(err.Error()))
		return
	}
	b.reminders.SetCurrent(updated)
	b.SendMessage(chatID, "💾 Saved\n\n"+formatReminder(updated))
}

// applyEdit sets one field of r from "field value".
func applyEdit(r *domain.Reminder, args string, now time.Time) error {
	field, value, _ := strings.Cut(strings.TrimSpace(args), " ")
	value = strings.TrimSpace(value)
	if value == "" {
		return errors.New("usage: /set title|desc|time|pri VALUE")
	}

	switch strings.ToLower(field) {
	case "title":
		r.Title = value
	case "desc", "description":
		if value == "-" {
			value = ""
		}
		r.Description = value
	case "time", "when":
		due, rest, err := parseWhen(strings.Fields(value), now)
		if err != nil {
			return err
		}
		if len(rest) > 0 {
			return fmt.Errorf("unexpected %q after the time", strings.Join(rest, " "))
		}
		r.DueDateTime = due
	case "pri", "priority":
		p, ok := domain.ParsePriority(value)
		if !ok {
			return fmt.Errorf("invalid priority %q (low, medium, high)", value)
		}
		r.Priority = p
	default:
		return fmt.Errorf("unknown field %q (title, desc, time, pri)", field)
	}
	return nil
}

// parseAdd reads "<when> <title> [| description] [!priority]".
func parseAdd(text string, now time.Time) (*domain.Reminder, error) {
	text, description, _ := strings.Cut(text, "|")

	due, rest, err := parseWhen(strings.Fields(text), now)
	if err != nil {
		return nil, err
	}

	r := &domain.Reminder{
		DueDateTime: due,
		Description: strings.TrimSpace(description),
	}

	var words []string
	for _, w := range rest {
		if strings.HasPrefix(w, "!") {
			if p, ok := domain.ParsePriority(w[1:]); ok {
				r.Priority = p
				continue
			}
		}
		words = append(words, w)
	}
	r.Title = strings.Join(words, " ")
	if r.Title == "" {
		return nil, domain.ErrEmptyTitle
	}
	return r, nil
}

// parseWhen consumes the leading date and clock words. The result is a wall
// clock value in now's calendar.
func parseWhen(fields []string, now time.Time) (time.Time, []string, error) {
	if len(fields) == 0 {
		return time.Time{}, nil, errNoWhen
	}

	y, m, d := now.Date()
	date := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	explicitDate := true

	switch first := strings.ToLower(fields[0]); {
	case first == "today":
	case first == "tomorrow":
		date = date.AddDate(0, 0, 1)
	default:
		if t, err := time.Parse(domain.DateLayout, first); err == nil {
			date = t
		} else if t, err := time.Parse("02.01", first); err == nil {
			date = time.Date(y, t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
		} else {
			explicitDate = false
		}
	}
	if explicitDate {
		fields = fields[1:]
		if len(fields) == 0 {
			return time.Time{}, nil, errNoWhen
		}
	}

	clock, err := parseClock(fields[0])
	if err != nil {
		return time.Time{}, nil, errNoWhen
	}
	due := date.Add(clock)

	// A bare clock that already passed today means tomorrow.
	if !explicitDate && !due.After(domain.Wall(now)) {
		due = due.AddDate(0, 0, 1)
	}
	return due, fields[1:], nil
}

func parseClock(s string) (time.Duration, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, err
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}

func parseID(s string) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimPrefix(strings.TrimSpace(s), "#"), 10, 64)
	return id, err == nil && id > 0
}

func formatReminder(r *domain.Reminder) string {
	status := "⬜"
	if r.IsCompleted {
		status = "✅"
	}
	text := fmt.Sprintf("%s %s <b>#%d</b> %s\n🕒 %s",
		status, r.Priority.Emoji(), r.ID, html.EscapeString(r.Title), domain.FormatDisplay(r.DueDateTime))
	if r.Description != "" {
		text += "\n" + html.EscapeString(r.Description)
	}
	return text
}

func formatList(header string, list []*domain.Reminder) string {
	var sb strings.Builder
	sb.WriteString(header)
	sb.WriteString("\n")
	for _, r := range list {
		mark := "⬜"
		if r.IsCompleted {
			mark = "✅"
		}
		fmt.Fprintf(&sb, "\n%s %s <b>#%d</b> %s — %s",
			mark, r.Priority.Emoji(), r.ID, r.DueDateTime.Format("02.01 15:04"), html.EscapeString(r.Title))
	}
	return sb.String()
}

func isNotFound(err error) bool {
	return errors.Is(err, storage.ErrNotFound)
}
