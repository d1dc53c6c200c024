package service

import (
	"testing"

	"github.com/mehrbod2002/masjidmap/internal/apperrors"
	"github.com/mehrbod2002/masjidmap/internal/models"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestDecisionTable(t *testing.T) {
	tests := []struct {
		role    models.Role
		op      Operation
		outcome Outcome
		queueAs models.ChangeRequestType
	}{
		{models.RoleMainAdmin, OpCreate, OutcomeApply, ""},
		{models.RoleMainAdmin, OpUpdate, OutcomeApply, ""},
		{models.RoleMainAdmin, OpDelete, OutcomeApply, ""},
		{models.RoleMainAdmin, OpElevate, OutcomeDeny, ""},
		{models.RoleAdmin, OpCreate, OutcomeQueue, models.RequestAddPlace},
		{models.RoleAdmin, OpUpdate, OutcomeQueue, models.RequestEditPlace},
		{models.RoleAdmin, OpDelete, OutcomeDeny, ""},
		{models.RoleAdmin, OpElevate, OutcomeDeny, ""},
		{models.RoleUser, OpCreate, OutcomeQueue, models.RequestAddPlace},
		{models.RoleUser, OpUpdate, OutcomeQueue, models.RequestEditPlace},
		{models.RoleUser, OpDelete, OutcomeQueue, models.RequestDeletePlace},
		{models.RoleUser, OpElevate, OutcomeQueue, models.RequestAdminAccess},
		{models.Role("guest"), OpCreate, OutcomeDeny, ""},
	}
	for _, tt := range tests {
		t.Run(string(tt.role)+"/"+string(tt.op), func(t *testing.T) {
			d := Decide(tt.role, tt.op)
			assert.Equal(t, tt.outcome, d.Outcome)
			assert.Equal(t, tt.queueAs, d.QueueAs)
		})
	}
}

func TestGateRequiresAuthentication(t *testing.T) {
	f := newFixture(t)
	for _, op := range []Operation{OpCreate, OpUpdate, OpDelete, OpElevate} {
		_, err := f.gate.AttemptMutation(f.ctx, nil, Mutation{Operation: op, Payload: payload("x")})
		assert.True(t, apperrors.Is(err, apperrors.KindAuthenticationRequired), op)
	}
	assert.Empty(t, f.allRequests(t))
}

func TestMainAdminMutationsApplyImmediately(t *testing.T) {
	f := newFixture(t)
	main := f.account(t, "main", models.RoleMainAdmin)

	created, err := f.gate.AttemptMutation(f.ctx, main, Mutation{Operation: OpCreate, Payload: payload("Al-Noor")})
	require.NoError(t, err)
	require.True(t, created.Applied)
	require.NotNil(t, created.Place)
	assert.Nil(t, created.Request)

	edit := payload("Al-Noor Centre")
	updated, err := f.gate.AttemptMutation(f.ctx, main, Mutation{Operation: OpUpdate, PlaceID: &created.Place.ID, Payload: edit})
	require.NoError(t, err)
	assert.Equal(t, "Al-Noor Centre", updated.Place.Name)
	assert.Equal(t, created.Place.ID, updated.Place.ID)

	deleted, err := f.gate.AttemptMutation(f.ctx, main, Mutation{Operation: OpDelete, PlaceID: &created.Place.ID})
	require.NoError(t, err)
	assert.True(t, deleted.Applied)

	gone, err := f.places.GetPlaceByID(f.ctx, created.Place.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)
	assert.Empty(t, f.allRequests(t))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.GateDecisions.WithLabelValues("main_admin", "delete", "applied")))
}

func TestMainAdminCannotRequestElevation(t *testing.T) {
	f := newFixture(t)
	main := f.account(t, "main", models.RoleMainAdmin)

	_, err := f.gate.AttemptMutation(f.ctx, main, Mutation{Operation: OpElevate, Reason: "more"})
	assert.True(t, apperrors.Is(err, apperrors.KindPermission))
	assert.Empty(t, f.allRequests(t))
}

func TestMainAdminDirectMutationErrors(t *testing.T) {
	f := newFixture(t)
	main := f.account(t, "main", models.RoleMainAdmin)
	missing := primitive.NewObjectID()

	_, err := f.gate.AttemptMutation(f.ctx, main, Mutation{Operation: OpUpdate, PlaceID: &missing, Payload: payload("x")})
	assert.True(t, apperrors.Is(err, apperrors.KindNotFound))

	_, err = f.gate.AttemptMutation(f.ctx, main, Mutation{Operation: OpDelete})
	assert.True(t, apperrors.Is(err, apperrors.KindValidation))

	bad := payload("x")
	bad.Latitude = models.Coordinate(91)
	_, err = f.gate.AttemptMutation(f.ctx, main, Mutation{Operation: OpCreate, Payload: bad})
	assert.True(t, apperrors.Is(err, apperrors.KindValidation))
}

func TestAdminQueuesCreateAndUpdateVerbatim(t *testing.T) {
	f := newFixture(t)
	admin := f.account(t, "admin", models.RoleAdmin)
	target := f.place(t, "Target", 1, 1)

	in := payload("Proposed")
	in.Description = "  spaced  "
	created, err := f.gate.AttemptMutation(f.ctx, admin, Mutation{Operation: OpCreate, Payload: in})
	require.NoError(t, err)
	require.False(t, created.Applied)
	require.NotNil(t, created.Request)
	assert.Equal(t, models.RequestAddPlace, created.Request.Type)
	assert.Equal(t, models.StatusPending, created.Request.Status)
	assert.Equal(t, in, created.Request.PlaceData)

	edit := payload("Target renamed")
	updated, err := f.gate.AttemptMutation(f.ctx, admin, Mutation{Operation: OpUpdate, PlaceID: &target.ID, Payload: edit})
	require.NoError(t, err)
	assert.Equal(t, models.RequestEditPlace, updated.Request.Type)
	assert.Equal(t, target.ID, *updated.Request.PlaceID)

	all := f.allRequests(t)
	assert.Len(t, all, 2)
	still, err := f.places.GetPlaceByID(f.ctx, target.ID)
	require.NoError(t, err)
	assert.Equal(t, "Target", still.Name)
}

func TestAdminDeleteIsDeniedWithoutRequest(t *testing.T) {
	f := newFixture(t)
	admin := f.account(t, "admin", models.RoleAdmin)
	x := f.place(t, "X", 1, 1)

	_, err := f.gate.AttemptMutation(f.ctx, admin, Mutation{Operation: OpDelete, PlaceID: &x.ID, Reason: "closed"})
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.KindPermission))

	still, err := f.places.GetPlaceByID(f.ctx, x.ID)
	require.NoError(t, err)
	assert.NotNil(t, still)
	assert.Empty(t, f.allRequests(t))
}

func TestUserMutationsQueueMatchingType(t *testing.T) {
	f := newFixture(t)
	user := f.account(t, "user", models.RoleUser)
	x := f.place(t, "X", 1, 1)

	tests := []struct {
		m    Mutation
		want models.ChangeRequestType
	}{
		{Mutation{Operation: OpCreate, Payload: payload("new")}, models.RequestAddPlace},
		{Mutation{Operation: OpUpdate, PlaceID: &x.ID, Payload: payload("edit")}, models.RequestEditPlace},
		{Mutation{Operation: OpDelete, PlaceID: &x.ID, Reason: "closed down"}, models.RequestDeletePlace},
		{Mutation{Operation: OpElevate, Reason: "need to manage listings"}, models.RequestAdminAccess},
	}
	for _, tt := range tests {
		before := len(f.allRequests(t))
		res, err := f.gate.AttemptMutation(f.ctx, user, tt.m)
		require.NoError(t, err, tt.want)
		assert.False(t, res.Applied)
		assert.Equal(t, tt.want, res.Request.Type)
		assert.Equal(t, models.StatusPending, res.Request.Status)
		assert.Equal(t, user.AccountID, res.Request.RequestedBy)
		assert.Len(t, f.allRequests(t), before+1)
	}

	all, err := f.placeSv.GetAllPlaces(f.ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestUserDeleteRequiresReason(t *testing.T) {
	f := newFixture(t)
	user := f.account(t, "user", models.RoleUser)
	x := f.place(t, "X", 1, 1)

	_, err := f.gate.AttemptMutation(f.ctx, user, Mutation{Operation: OpDelete, PlaceID: &x.ID})
	require.Error(t, err)
	var appErr *apperrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.KindValidation, appErr.Kind)
	assert.Contains(t, appErr.Fields, "reason")
	assert.Empty(t, f.allRequests(t))
}

func TestDuplicateProposalsCoexist(t *testing.T) {
	f := newFixture(t)
	a := f.account(t, "a", models.RoleUser)
	b := f.account(t, "b", models.RoleAdmin)
	x := f.place(t, "X", 1, 1)

	_, err := f.gate.AttemptMutation(f.ctx, a, Mutation{Operation: OpUpdate, PlaceID: &x.ID, Payload: payload("A")})
	require.NoError(t, err)
	_, err = f.gate.AttemptMutation(f.ctx, b, Mutation{Operation: OpUpdate, PlaceID: &x.ID, Payload: payload("B")})
	require.NoError(t, err)

	pending, err := f.requests.ListChangeRequests(f.ctx, models.RequestFilter{Status: models.StatusPending})
	require.NoError(t, err)
	assert.Len(t, pending, 2)
}

func TestOperationFor(t *testing.T) {
	op, ok := OperationFor(models.RequestDeletePlace)
	assert.True(t, ok)
	assert.Equal(t, OpDelete, op)
	_, ok = OperationFor("bogus")
	assert.False(t, ok)
}
