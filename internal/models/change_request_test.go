package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestParseChangeRequestType(t *testing.T) {
	cases := map[string]ChangeRequestType{
		"add_place":     RequestAddPlace,
		"edit_masjid":   RequestEditPlace,
		" DELETE_PLACE": RequestDeletePlace,
		"admin_access":  RequestAdminAccess,
	}
	for in, want := range cases {
		got, ok := ParseChangeRequestType(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}
	_, ok := ParseChangeRequestType("promote")
	assert.False(t, ok)
}

func TestRequestTypeRequirements(t *testing.T) {
	assert.True(t, RequestEditPlace.NeedsTarget())
	assert.True(t, RequestDeletePlace.NeedsTarget())
	assert.False(t, RequestAddPlace.NeedsTarget())
	assert.False(t, RequestAdminAccess.NeedsTarget())

	assert.True(t, RequestAddPlace.NeedsPayload())
	assert.True(t, RequestEditPlace.NeedsPayload())
	assert.False(t, RequestDeletePlace.NeedsPayload())

	assert.True(t, RequestDeletePlace.NeedsReason())
	assert.True(t, RequestAdminAccess.NeedsReason())
	assert.False(t, RequestAddPlace.NeedsReason())
}

func TestParseStatusFilter(t *testing.T) {
	st, ok := ParseStatusFilter("")
	assert.True(t, ok)
	assert.Equal(t, StatusAll, st)

	st, ok = ParseStatusFilter("Pending")
	assert.True(t, ok)
	assert.Equal(t, StatusPending, st)

	_, ok = ParseStatusFilter("withdrawn")
	assert.False(t, ok)
}

func TestChangeRequestCloneIsDeep(t *testing.T) {
	placeID := primitive.NewObjectID()
	reviewer := primitive.NewObjectID()
	at := time.Now()
	req := &ChangeRequest{
		ID:          primitive.NewObjectID(),
		Type:        RequestEditPlace,
		PlaceID:     &placeID,
		PlaceData:   &PlaceInput{Name: "A"},
		ProcessedBy: &reviewer,
		ProcessedAt: &at,
	}
	cp := req.Clone()
	cp.PlaceData.Name = "B"
	*cp.PlaceID = primitive.NewObjectID()
	*cp.ProcessedBy = primitive.NewObjectID()

	assert.Equal(t, "A", req.PlaceData.Name)
	assert.Equal(t, placeID, *req.PlaceID)
	assert.Equal(t, reviewer, *req.ProcessedBy)
}

func TestDecisionStatus(t *testing.T) {
	assert.Equal(t, StatusApproved, DecisionApproved.Status())
	assert.Equal(t, StatusRejected, DecisionRejected.Status())
	_, ok := ParseDecision("withdrawn")
	assert.False(t, ok)
}
