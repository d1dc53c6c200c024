package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/mehrbod2002/masjidmap/internal/models"
	"github.com/sirupsen/logrus"
)

const telegramQueueSize = 64

// TelegramNotifier posts request lifecycle events to a moderators' chat.
// Publish never blocks; events are dropped when the queue is full.
type TelegramNotifier struct {
	bot    *tgbotapi.BotAPI
	chatID int64
	queue  chan *models.RequestEvent
	logger logrus.FieldLogger
}

func NewTelegramNotifier(botToken string, chatID int64, logger logrus.FieldLogger) (*TelegramNotifier, error) {
	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, errors.New("failed to initialize Telegram bot: " + err.Error())
	}
	return newTelegramNotifier(bot, chatID, logger)
}

func newTelegramNotifier(bot *tgbotapi.BotAPI, chatID int64, logger logrus.FieldLogger) (*TelegramNotifier, error) {
	if chatID == 0 {
		return nil, errors.New("invalid chat ID")
	}
	return &TelegramNotifier{
		bot:    bot,
		chatID: chatID,
		queue:  make(chan *models.RequestEvent, telegramQueueSize),
		logger: logger,
	}, nil
}

func (n *TelegramNotifier) Publish(event *models.RequestEvent) {
	select {
	case n.queue <- event:
	default:
		n.logger.WithField("event", event.Type).Warn("telegram queue full, dropping event")
	}
}

// Run sends queued events until ctx is done.
func (n *TelegramNotifier) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event := <-n.queue:
			if err := n.SendMessageToChat(formatEvent(event)); err != nil {
				n.logger.WithError(err).WithField("event", event.Type).Warn("telegram notification failed")
			}
		}
	}
}

func (n *TelegramNotifier) SendMessageToChat(message string) error {
	if message == "" {
		return errors.New("message cannot be empty")
	}
	if _, err := n.bot.Send(tgbotapi.NewMessage(n.chatID, message)); err != nil {
		return errors.New("failed to send Telegram message: " + err.Error())
	}
	return nil
}

func formatEvent(event *models.RequestEvent) string {
	r := event.Request
	var b strings.Builder
	switch event.Type {
	case models.EventRequestSubmitted:
		fmt.Fprintf(&b, "New %s request %s", r.Type, r.ID.Hex())
	case models.EventRequestResolved:
		fmt.Fprintf(&b, "Request %s (%s) %s", r.ID.Hex(), r.Type, r.Status)
	case models.EventRequestWithdrawn:
		fmt.Fprintf(&b, "Request %s (%s) withdrawn", r.ID.Hex(), r.Type)
	default:
		fmt.Fprintf(&b, "%s: request %s", event.Type, r.ID.Hex())
	}
	if r.PlaceData != nil {
		fmt.Fprintf(&b, "\nPlace: %s, %s", r.PlaceData.Name, r.PlaceData.Address)
	}
	if r.Reason != "" {
		fmt.Fprintf(&b, "\nReason: %s", r.Reason)
	}
	if r.AdminResponse != "" {
		fmt.Fprintf(&b, "\nResponse: %s", r.AdminResponse)
	}
	return b.String()
}
