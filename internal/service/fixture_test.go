package service

import (
	"context"
	"sync"
	"testing"

	"github.com/mehrbod2002/masjidmap/internal/models"
	"github.com/mehrbod2002/masjidmap/internal/repository"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []*models.RequestEvent
}

func (p *recordingPublisher) Publish(e *models.RequestEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

type fixture struct {
	ctx       context.Context
	accounts  *repository.MemoryAccountRepository
	places    *repository.MemoryPlaceRepository
	requests  *repository.MemoryChangeRequestRepository
	logs      *repository.MemoryLogRepository
	events    *recordingPublisher
	logHook   *test.Hook
	metrics   *Metrics
	accountSv AccountService
	placeSv   PlaceService
	engine    ChangeRequestService
	gate      GateService
	proximity ProximityService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	f := &fixture{
		ctx:      context.Background(),
		accounts: repository.NewMemoryAccountRepository(),
		places:   repository.NewMemoryPlaceRepository(),
		requests: repository.NewMemoryChangeRequestRepository(),
		logs:     repository.NewMemoryLogRepository(),
		events:   &recordingPublisher{},
		logHook:  hook,
		metrics:  NewMetrics(prometheus.NewRegistry()),
	}
	rt := Runtime{
		Logger:  logger,
		Metrics: f.metrics,
		Audit:   NewLogService(f.logs),
		Events:  f.events,
	}
	f.accountSv = NewAccountService(f.accounts, rt)
	f.placeSv = NewPlaceService(f.places, rt)
	f.engine = NewChangeRequestService(f.requests, f.accounts, f.places, repository.NewMemoryTransactor(), rt)
	f.gate = NewGateService(f.placeSv, f.engine, rt)
	f.proximity = NewProximityService(f.places, rt)
	return f
}

func (f *fixture) account(t *testing.T, name string, role models.Role) *models.Caller {
	t.Helper()
	a := &models.Account{Name: name, Email: name + "@example.com", PasswordHash: "x", Role: role}
	require.NoError(t, f.accounts.SaveAccount(f.ctx, a))
	return &models.Caller{AccountID: a.ID, Role: role}
}

func (f *fixture) place(t *testing.T, name string, lat, lon float64) *models.Place {
	t.Helper()
	in := payload(name)
	in.Latitude, in.Longitude = models.Coordinate(lat), models.Coordinate(lon)
	p, err := f.placeSv.CreatePlace(f.ctx, in)
	require.NoError(t, err)
	return p
}

func (f *fixture) allRequests(t *testing.T) []*models.ChangeRequest {
	t.Helper()
	all, err := f.requests.ListChangeRequests(f.ctx, models.RequestFilter{Status: models.StatusAll})
	require.NoError(t, err)
	return all
}

func payload(name string) *models.PlaceInput {
	return &models.PlaceInput{
		Name:      name,
		Address:   "1 Main Street",
		Latitude:  models.Coordinate(21.4225),
		Longitude: models.Coordinate(39.8262),
		PrayerTimes: models.PrayerTimes{
			Fajr:    "04:50",
			Dhuhr:   "12:20",
			Asr:     "15:45",
			Maghrib: "18:40",
			Isha:    "20:10",
		},
	}
}
