package service

import (
	"context"
	"errors"

	"github.com/mehrbod2002/masjidmap/internal/apperrors"
	"github.com/mehrbod2002/masjidmap/internal/models"
	"github.com/mehrbod2002/masjidmap/internal/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// PlaceService is the place registry. Its writes are unconditional: role checks
// happen in the gate and the change request engine before they reach it.
type PlaceService interface {
	GetPlace(ctx context.Context, id string) (*models.Place, error)
	GetAllPlaces(ctx context.Context) ([]*models.Place, error)
	CreatePlace(ctx context.Context, in *models.PlaceInput) (*models.Place, error)
	UpdatePlace(ctx context.Context, id primitive.ObjectID, in *models.PlaceInput) (*models.Place, error)
	DeletePlace(ctx context.Context, id primitive.ObjectID) (*models.Place, error)
}

type placeService struct {
	placeRepo repository.PlaceRepository
	rt        Runtime
}

func NewPlaceService(placeRepo repository.PlaceRepository, rt Runtime) PlaceService {
	return &placeService{placeRepo: placeRepo, rt: rt.withDefaults()}
}

func (s *placeService) GetPlace(ctx context.Context, id string) (*models.Place, error) {
	objID, err := parseID(id, "place")
	if err != nil {
		return nil, err
	}
	ctx, cancel := s.rt.bounded(ctx)
	defer cancel()

	place, err := s.placeRepo.GetPlaceByID(ctx, objID)
	if err != nil {
		return nil, expired(err, "load place")
	}
	if place == nil {
		return nil, apperrors.NotFound("place %s not found", id)
	}
	return place, nil
}

func (s *placeService) GetAllPlaces(ctx context.Context) ([]*models.Place, error) {
	ctx, cancel := s.rt.bounded(ctx)
	defer cancel()

	places, err := s.placeRepo.GetAllPlaces(ctx)
	return places, expired(err, "list places")
}

func (s *placeService) CreatePlace(ctx context.Context, in *models.PlaceInput) (*models.Place, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	place := in.ToPlace()
	if err := s.placeRepo.SavePlace(ctx, place); err != nil {
		return nil, expired(err, "insert place")
	}
	return place, nil
}

func (s *placeService) UpdatePlace(ctx context.Context, id primitive.ObjectID, in *models.PlaceInput) (*models.Place, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	place, err := s.placeRepo.GetPlaceByID(ctx, id)
	if err != nil {
		return nil, expired(err, "load place")
	}
	if place == nil {
		return nil, apperrors.NotFound("place %s not found", id.Hex())
	}
	in.ApplyTo(place)
	if err := s.placeRepo.UpdatePlace(ctx, place); err != nil {
		if errors.Is(err, repository.ErrNoMatch) {
			return nil, apperrors.NotFound("place %s not found", id.Hex())
		}
		return nil, expired(err, "update place")
	}
	return place, nil
}

func (s *placeService) DeletePlace(ctx context.Context, id primitive.ObjectID) (*models.Place, error) {
	place, err := s.placeRepo.GetPlaceByID(ctx, id)
	if err != nil {
		return nil, expired(err, "load place")
	}
	if place == nil {
		return nil, apperrors.NotFound("place %s not found", id.Hex())
	}
	if err := s.placeRepo.DeletePlace(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNoMatch) {
			return nil, apperrors.NotFound("place %s not found", id.Hex())
		}
		return nil, expired(err, "delete place")
	}
	return place, nil
}
