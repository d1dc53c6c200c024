package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/mehrbod2002/masjidmap/internal/models"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type fakeTelegram struct {
	mu    sync.Mutex
	texts []string
}

func (f *fakeTelegram) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	switch {
	case strings.HasSuffix(r.URL.Path, "/getMe"):
		_, _ = w.Write([]byte(`{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"bot","username":"bot"}}`))
	case strings.HasSuffix(r.URL.Path, "/sendMessage"):
		_ = r.ParseForm()
		f.mu.Lock()
		f.texts = append(f.texts, r.FormValue("text"))
		f.mu.Unlock()
		_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":1,"date":0,"chat":{"id":42,"type":"group"}}}`))
	default:
		http.NotFound(w, r)
	}
}

func (f *fakeTelegram) sent() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.texts...)
}

func TestTelegramNotifierDeliversEvents(t *testing.T) {
	fake := &fakeTelegram{}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	bot, err := tgbotapi.NewBotAPIWithClient("token", srv.URL+"/bot%s/%s", srv.Client())
	require.NoError(t, err)
	logger, _ := test.NewNullLogger()
	n, err := newTelegramNotifier(bot, 42, logger)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go n.Run(ctx)

	n.Publish(&models.RequestEvent{
		Type: models.EventRequestSubmitted,
		Request: &models.ChangeRequest{
			ID:        primitive.NewObjectID(),
			Type:      models.RequestAddPlace,
			PlaceData: &models.PlaceInput{Name: "Al-Falah", Address: "3 Hill Road"},
		},
	})

	require.Eventually(t, func() bool { return len(fake.sent()) == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Contains(t, fake.sent()[0], "New add_place request")
	assert.Contains(t, fake.sent()[0], "Al-Falah, 3 Hill Road")
}

func TestTelegramNotifierRejectsMissingChat(t *testing.T) {
	logger, _ := test.NewNullLogger()
	_, err := newTelegramNotifier(&tgbotapi.BotAPI{}, 0, logger)
	assert.Error(t, err)
}

func TestTelegramPublishNeverBlocks(t *testing.T) {
	logger, hook := test.NewNullLogger()
	n, err := newTelegramNotifier(&tgbotapi.BotAPI{}, 42, logger)
	require.NoError(t, err)

	event := &models.RequestEvent{Type: models.EventRequestResolved, Request: &models.ChangeRequest{Status: models.StatusApproved}}
	for i := 0; i < telegramQueueSize+5; i++ {
		n.Publish(event)
	}
	assert.Len(t, n.queue, telegramQueueSize)
	assert.NotEmpty(t, hook.AllEntries())
}

func TestFormatEvent(t *testing.T) {
	id := primitive.NewObjectID()
	msg := formatEvent(&models.RequestEvent{
		Type: models.EventRequestResolved,
		Request: &models.ChangeRequest{
			ID: id, Type: models.RequestDeletePlace, Status: models.StatusRejected,
			Reason: "closed", AdminResponse: "still open",
		},
	})
	assert.Equal(t, "Request "+id.Hex()+" (delete_place) rejected\nReason: closed\nResponse: still open", msg)
}

func TestPublishersFanOut(t *testing.T) {
	a, b := &recordingPublisher{}, &recordingPublisher{}
	Publishers{a, b}.Publish(&models.RequestEvent{Type: models.EventRequestWithdrawn})
	assert.Equal(t, []string{models.EventRequestWithdrawn}, a.types())
	assert.Equal(t, []string{models.EventRequestWithdrawn}, b.types())
}
