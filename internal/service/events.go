package service

import "github.com/mehrbod2002/masjidmap/internal/models"

// EventPublisher fans request lifecycle events out to live subscribers.
type EventPublisher interface {
	Publish(event *models.RequestEvent)
}

type NopPublisher struct{}

func (NopPublisher) Publish(*models.RequestEvent) {}

// Publishers delivers every event to each publisher in order.
type Publishers []EventPublisher

func (ps Publishers) Publish(event *models.RequestEvent) {
	for _, p := range ps {
		p.Publish(event)
	}
}
