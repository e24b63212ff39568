package bot

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/tazhate/remora/internal/domain"
	"github.com/tazhate/remora/internal/metrics"
	"github.com/tazhate/remora/internal/scheduler"
	"github.com/tazhate/remora/internal/service"
)

const (
	pollTimeout = 60
	opTimeout   = 10 * time.Second
)

var errTimeout = errors.New("timed out waiting for the store")

// Reminders is the part of the reminder service the bot drives.
type Reminders interface {
	Insert(r *domain.Reminder) <-chan service.Result
	Update(r *domain.Reminder, reschedule bool) <-chan service.Result
	Delete(r *domain.Reminder) <-chan service.Result
	ToggleCompleted(id int64) <-chan service.Result
	Get(id int64) (*domain.Reminder, error)
	List() ([]*domain.Reminder, error)
	ListForDate(date time.Time) ([]*domain.Reminder, error)
	SetCurrent(r *domain.Reminder)
	Current() *domain.Reminder
	ClearCurrent()
}

// StopSender broadcasts the stop-alert signal.
type StopSender interface {
	StopAlert()
}

// telegramAPI is the subset of *tgbotapi.BotAPI in use.
type telegramAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

type Config struct {
	Token    string
	ChatID   int64
	Location *time.Location
	Metrics  *metrics.Metrics
}

// alertMessage is a posted alarm that still has its buttons.
type alertMessage struct {
	messageID int
	text      string
	alert     scheduler.Alert
}

type Bot struct {
	api       telegramAPI
	chatID    int64
	location  *time.Location
	reminders Reminders
	stopper   StopSender
	metrics   *metrics.Metrics
	now       func() time.Time

	mu     sync.Mutex
	alerts map[int64]alertMessage
}

func New(cfg Config, reminders Reminders, stopper StopSender) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}

	log.Printf("Authorized as @%s", api.Self.UserName)

	b := newBot(api, cfg, reminders, stopper)
	b.setCommands()
	return b, nil
}

func newBot(api telegramAPI, cfg Config, reminders Reminders, stopper StopSender) *Bot {
	loc := cfg.Location
	if loc == nil {
		loc = time.Local
	}
	return &Bot{
		api:       api,
		chatID:    cfg.ChatID,
		location:  loc,
		reminders: reminders,
		stopper:   stopper,
		metrics:   cfg.Metrics,
		now:       time.Now,
		alerts:    make(map[int64]alertMessage),
	}
}

func (b *Bot) setCommands() {
	commands := []tgbotapi.BotCommand{
		{Command: "list", Description: "📋 All reminders"},
		{Command: "today", Description: "📅 Due today"},
		{Command: "add", Description: "➕ New reminder"},
		{Command: "edit", Description: "✏️ Select a reminder to edit"},
		{Command: "stop", Description: "🔕 Stop ringing"},
		{Command: "help", Description: "❓ Commands"},
	}

	cfg := tgbotapi.NewSetMyCommands(commands...)
	if _, err := b.api.Request(cfg); err != nil {
		log.Printf("Failed to set commands: %v", err)
	}
}

// Run polls for updates until ctx is done.
func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = pollTimeout
	updates := b.api.GetUpdatesChan(u)
	defer b.api.StopReceivingUpdates()

	log.Printf("[bot] Polling for updates")
	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			go b.handleUpdate(update)
		}
	}
}

func (b *Bot) isAllowed(userID int64) bool {
	return userID == b.chatID
}

func (b *Bot) SendMessage(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = "HTML"
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) SendMessageWithKeyboard(chatID int64, text string, keyboard tgbotapi.InlineKeyboardMarkup) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = "HTML"
	msg.ReplyMarkup = keyboard
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) editMessage(chatID int64, msgID int, text string, keyboard *tgbotapi.InlineKeyboardMarkup) {
	edit := tgbotapi.NewEditMessageText(chatID, msgID, text)
	edit.ParseMode = "HTML"
	edit.ReplyMarkup = keyboard
	if _, err := b.api.Send(edit); err != nil {
		log.Printf("[bot] Edit message %d: %v", msgID, err)
	}
}

func (b *Bot) answer(callbackID, text string) {
	if _, err := b.api.Request(tgbotapi.NewCallback(callbackID, text)); err != nil {
		log.Printf("[bot] Answer callback: %v", err)
	}
}

// await blocks until a queued store operation finishes.
func await(ch <-chan service.Result) (*domain.Reminder, error) {
	select {
	case res := <-ch:
		return res.Reminder, res.Err
	case <-time.After(opTimeout):
		return nil, errTimeout
	}
}
