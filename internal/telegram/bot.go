// Package telegram is the transport layer: it moves updates from
// Telegram into the dialogue manager and delivers its replies back.
package telegram

import (
	"context"
	"fmt"
	"log"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Asul0/belg-agent/internal/dialogue"
)

// TelegramBot is the slice of the bot API the transport uses,
// extracted for mocking.
type TelegramBot interface {
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetSelf() tgbotapi.User
}

type tgBotWrapper struct {
	bot *tgbotapi.BotAPI
}

func (w *tgBotWrapper) GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return w.bot.GetUpdatesChan(config)
}

func (w *tgBotWrapper) StopReceivingUpdates() {
	w.bot.StopReceivingUpdates()
}

func (w *tgBotWrapper) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	return w.bot.Send(c)
}

func (w *tgBotWrapper) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	return w.bot.Request(c)
}

func (w *tgBotWrapper) GetSelf() tgbotapi.User {
	return w.bot.Self
}

// BotFactory creates TelegramBot instances (allows mocking).
type BotFactory func(token string) (TelegramBot, error)

var defaultBotFactory BotFactory = func(token string) (TelegramBot, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	return &tgBotWrapper{bot: bot}, nil
}

// Bot polls Telegram and routes every update through the dialogue
// manager.
type Bot struct {
	token   string
	bot     TelegramBot
	manager *dialogue.Manager
	factory BotFactory
	logger  *log.Logger

	// chatMu serializes updates of one chat: the manager mutates the
	// shared per-chat state, so two quick messages from the same user
	// must not run concurrently. Different chats stay parallel.
	mu     sync.Mutex
	chatMu map[int64]*sync.Mutex
}

func NewBot(token string, manager *dialogue.Manager, logger *log.Logger) (*Bot, error) {
	return NewBotWithFactory(token, manager, logger, defaultBotFactory)
}

// NewBotWithFactory creates a Bot with a custom bot factory (for
// testing).
func NewBotWithFactory(token string, manager *dialogue.Manager, logger *log.Logger, factory BotFactory) (*Bot, error) {
	if token == "" {
		return nil, fmt.Errorf("telegram token is required")
	}
	return &Bot{token: token, manager: manager, factory: factory, logger: logger}, nil
}

// SetBot injects the bot (for testing).
func (b *Bot) SetBot(bot TelegramBot) {
	b.bot = bot
}

func (b *Bot) chatLock(chatID int64) *sync.Mutex {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.chatMu == nil {
		b.chatMu = make(map[int64]*sync.Mutex)
	}
	l, ok := b.chatMu[chatID]
	if !ok {
		l = &sync.Mutex{}
		b.chatMu[chatID] = l
	}
	return l
}

// Run polls for updates until the context is canceled. Each update is
// handled in its own goroutine so one long search does not block the
// other chats; updates of the same chat are serialized.
func (b *Bot) Run(ctx context.Context) error {
	if b.bot == nil {
		bot, err := b.factory(b.token)
		if err != nil {
			return fmt.Errorf("create telegram bot: %w", err)
		}
		b.bot = bot
	}
	b.logger.Printf("authorized as @%s", b.bot.GetSelf().UserName)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := b.bot.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			b.bot.StopReceivingUpdates()
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			go b.handleUpdate(ctx, update)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.CallbackQuery != nil:
		cb := update.CallbackQuery
		if _, err := b.bot.Request(tgbotapi.NewCallback(cb.ID, "")); err != nil {
			b.logger.Printf("ack callback: %v", err)
		}
		chatID := cb.Message.Chat.ID
		lock := b.chatLock(chatID)
		lock.Lock()
		defer lock.Unlock()
		b.sendTyping(chatID)
		b.deliver(chatID, b.manager.HandleCallback(ctx, chatID, cb.Data))

	case update.Message != nil && update.Message.Text != "":
		msg := update.Message
		chatID := msg.Chat.ID
		lock := b.chatLock(chatID)
		lock.Lock()
		defer lock.Unlock()
		b.sendTyping(chatID)
		if msg.IsCommand() && msg.Command() == "start" {
			b.deliver(chatID, b.manager.StartDialogue(chatID))
			return
		}
		b.deliver(chatID, b.manager.HandleText(ctx, chatID, msg.Text))
	}
}

func (b *Bot) sendTyping(chatID int64) {
	action := tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping)
	if _, err := b.bot.Request(action); err != nil {
		b.logger.Printf("send typing action: %v", err)
	}
}

func (b *Bot) deliver(chatID int64, msgs []dialogue.Outbound) {
	for _, msg := range msgs {
		tgMsg := tgbotapi.NewMessage(chatID, msg.Text)
		tgMsg.ParseMode = tgbotapi.ModeMarkdown
		if kb := toInlineKeyboard(msg.Keyboard); kb != nil {
			tgMsg.ReplyMarkup = kb
		}
		if _, err := b.bot.Send(tgMsg); err != nil {
			// Retry as plain text: a bad entity in scraped content
			// must not swallow the reply.
			b.logger.Printf("send with markdown failed, retrying plain: %v", err)
			tgMsg.ParseMode = ""
			if _, err := b.bot.Send(tgMsg); err != nil {
				b.logger.Printf("send message to chat %d: %v", chatID, err)
			}
		}
	}
}

func toInlineKeyboard(kb dialogue.Keyboard) *tgbotapi.InlineKeyboardMarkup {
	if len(kb) == 0 {
		return nil
	}
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(kb))
	for _, row := range kb {
		buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, btn := range row {
			buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(btn.Label, btn.Payload))
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(buttons...))
	}
	markup := tgbotapi.NewInlineKeyboardMarkup(rows...)
	return &markup
}
