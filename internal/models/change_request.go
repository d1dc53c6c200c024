package models

import (
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type ChangeRequestType string

const (
	RequestAdminAccess ChangeRequestType = "admin_access"
	RequestAddPlace    ChangeRequestType = "add_place"
	RequestEditPlace   ChangeRequestType = "edit_place"
	RequestDeletePlace ChangeRequestType = "delete_place"
)

var requestTypeAliases = map[string]ChangeRequestType{
	"admin_access":  RequestAdminAccess,
	"add_place":     RequestAddPlace,
	"edit_place":    RequestEditPlace,
	"delete_place":  RequestDeletePlace,
	"add_masjid":    RequestAddPlace,
	"edit_masjid":   RequestEditPlace,
	"delete_masjid": RequestDeletePlace,
}

// ParseChangeRequestType accepts the canonical names and the legacy masjid-prefixed ones.
func ParseChangeRequestType(s string) (ChangeRequestType, bool) {
	t, ok := requestTypeAliases[strings.ToLower(strings.TrimSpace(s))]
	return t, ok
}

// NeedsTarget reports whether requests of this type reference an existing place.
func (t ChangeRequestType) NeedsTarget() bool {
	return t == RequestEditPlace || t == RequestDeletePlace
}

// NeedsPayload reports whether requests of this type carry a candidate place.
func (t ChangeRequestType) NeedsPayload() bool {
	return t == RequestAddPlace || t == RequestEditPlace
}

// NeedsReason reports whether a free-text reason is mandatory.
func (t ChangeRequestType) NeedsReason() bool {
	return t == RequestDeletePlace || t == RequestAdminAccess
}

type RequestStatus string

const (
	StatusPending   RequestStatus = "pending"
	StatusApproved  RequestStatus = "approved"
	StatusRejected  RequestStatus = "rejected"
	StatusWithdrawn RequestStatus = "withdrawn"
)

// StatusAll is the listing wildcard.
const StatusAll RequestStatus = "all"

func ParseStatusFilter(s string) (RequestStatus, bool) {
	switch st := RequestStatus(strings.ToLower(strings.TrimSpace(s))); st {
	case "", StatusAll:
		return StatusAll, true
	case StatusPending, StatusApproved, StatusRejected:
		return st, true
	default:
		return "", false
	}
}

// Decision is a reviewer's verdict on a pending request.
type Decision string

const (
	DecisionApproved Decision = "approved"
	DecisionRejected Decision = "rejected"
)

func ParseDecision(s string) (Decision, bool) {
	switch d := Decision(strings.ToLower(strings.TrimSpace(s))); d {
	case DecisionApproved, DecisionRejected:
		return d, true
	default:
		return "", false
	}
}

func (d Decision) Status() RequestStatus {
	if d == DecisionApproved {
		return StatusApproved
	}
	return StatusRejected
}

type ChangeRequest struct {
	ID            primitive.ObjectID  `json:"_id" bson:"_id"`
	Type          ChangeRequestType   `json:"type" bson:"type"`
	RequestedBy   primitive.ObjectID  `json:"requestedBy" bson:"requested_by"`
	Status        RequestStatus       `json:"status" bson:"status"`
	PlaceID       *primitive.ObjectID `json:"masjidId,omitempty" bson:"place_id,omitempty"`
	PlaceData     *PlaceInput         `json:"masjidData,omitempty" bson:"place_data,omitempty"`
	Reason        string              `json:"reason,omitempty" bson:"reason,omitempty"`
	ProcessedBy   *primitive.ObjectID `json:"processedBy,omitempty" bson:"processed_by,omitempty"`
	AdminResponse string              `json:"adminResponse,omitempty" bson:"admin_response,omitempty"`
	CreatedAt     time.Time           `json:"createdAt" bson:"created_at"`
	ProcessedAt   *time.Time          `json:"processedAt,omitempty" bson:"processed_at,omitempty"`
}

func (r *ChangeRequest) IsPending() bool {
	return r.Status == StatusPending
}

// Clone returns a deep copy so callers never alias stored records.
func (r *ChangeRequest) Clone() *ChangeRequest {
	if r == nil {
		return nil
	}
	cp := *r
	if r.PlaceID != nil {
		id := *r.PlaceID
		cp.PlaceID = &id
	}
	cp.PlaceData = r.PlaceData.Clone()
	if r.ProcessedBy != nil {
		id := *r.ProcessedBy
		cp.ProcessedBy = &id
	}
	if r.ProcessedAt != nil {
		at := *r.ProcessedAt
		cp.ProcessedAt = &at
	}
	return &cp
}

// Resolution is the terminal write recorded on a request.
type Resolution struct {
	Status        RequestStatus
	ProcessedBy   primitive.ObjectID
	AdminResponse string
	ProcessedAt   time.Time
}

// RequestFilter selects requests for listing; newest first.
type RequestFilter struct {
	Status      RequestStatus
	RequestedBy *primitive.ObjectID
}
