package service

import (
	"context"
	"iter"
	"math"
	"time"

	"github.com/mehrbod2002/masjidmap/internal/apperrors"
	"github.com/mehrbod2002/masjidmap/internal/geo"
	"github.com/mehrbod2002/masjidmap/internal/models"
	"github.com/mehrbod2002/masjidmap/internal/repository"
)

type ProximityService interface {
	// FindNear lazily yields every place within radius meters of center, in no
	// particular order. The sequence ends at the first error.
	FindNear(ctx context.Context, center geo.Point, radius float64) (iter.Seq2[*models.Place, error], error)
}

type proximityService struct {
	placeRepo repository.PlaceRepository
	rt        Runtime
}

func NewProximityService(placeRepo repository.PlaceRepository, rt Runtime) ProximityService {
	return &proximityService{placeRepo: placeRepo, rt: rt.withDefaults()}
}

func (s *proximityService) FindNear(ctx context.Context, center geo.Point, radius float64) (iter.Seq2[*models.Place, error], error) {
	if !center.Valid() {
		return nil, apperrors.Validation("invalid center point").WithField("near", "out of range")
	}
	if math.IsNaN(radius) || math.IsInf(radius, 0) || radius < 0 {
		return nil, apperrors.Validation("radius must be a non-negative number of meters").WithField("radius", "invalid")
	}

	return func(yield func(*models.Place, error) bool) {
		start := time.Now()
		defer func() { s.rt.Metrics.ProximityLookup.Observe(time.Since(start).Seconds()) }()

		ctx, cancel := s.rt.bounded(ctx)
		defer cancel()

		for place, err := range s.placeRepo.Candidates(ctx, center, radius) {
			if err != nil {
				yield(nil, expired(err, "find nearby places"))
				return
			}
			if !geo.Within(center, place.Point(), radius) {
				continue
			}
			if !yield(place, nil) {
				return
			}
		}
	}, nil
}

// CollectNear drains a proximity sequence into a slice.
func CollectNear(seq iter.Seq2[*models.Place, error]) ([]*models.Place, error) {
	places := []*models.Place{}
	for place, err := range seq {
		if err != nil {
			return nil, err
		}
		places = append(places, place)
	}
	return places, nil
}
