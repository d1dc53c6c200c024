package models

import (
	"math"
	"reflect"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/mehrbod2002/masjidmap/internal/apperrors"
	"github.com/mehrbod2002/masjidmap/internal/geo"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// GeoPoint is a GeoJSON point; coordinates are [longitude, latitude].
type GeoPoint struct {
	Type        string    `json:"type" bson:"type"`
	Coordinates []float64 `json:"coordinates" bson:"coordinates"`
}

func NewGeoPoint(p geo.Point) GeoPoint {
	return GeoPoint{Type: "Point", Coordinates: []float64{p.Longitude, p.Latitude}}
}

func (g GeoPoint) Point() geo.Point {
	if len(g.Coordinates) != 2 {
		return geo.Point{}
	}
	return geo.Point{Latitude: g.Coordinates[1], Longitude: g.Coordinates[0]}
}

// PrayerTimes holds the five daily times plus the optional weekly jummah time.
type PrayerTimes struct {
	Fajr    string `json:"fajr" bson:"fajr" validate:"required,clock"`
	Dhuhr   string `json:"dhuhr" bson:"dhuhr" validate:"required,clock"`
	Asr     string `json:"asr" bson:"asr" validate:"required,clock"`
	Maghrib string `json:"maghrib" bson:"maghrib" validate:"required,clock"`
	Isha    string `json:"isha" bson:"isha" validate:"required,clock"`
	Jummah  string `json:"jummah,omitempty" bson:"jummah,omitempty" validate:"omitempty,clock"`
}

type Place struct {
	ID          primitive.ObjectID `json:"_id" bson:"_id"`
	Name        string             `json:"name" bson:"name"`
	Address     string             `json:"address" bson:"address"`
	Location    GeoPoint           `json:"location" bson:"location"`
	PhoneNumber string             `json:"phoneNumber,omitempty" bson:"phone_number,omitempty"`
	Description string             `json:"description,omitempty" bson:"description,omitempty"`
	PrayerTimes PrayerTimes        `json:"prayerTimes" bson:"prayer_times"`
	CreatedAt   time.Time          `json:"createdAt" bson:"created_at"`
	UpdatedAt   time.Time          `json:"updatedAt" bson:"updated_at"`
}

func (p *Place) Point() geo.Point {
	return p.Location.Point()
}

// PlaceSummary is the subset of a place embedded in request views.
type PlaceSummary struct {
	ID      primitive.ObjectID `json:"_id"`
	Name    string             `json:"name"`
	Address string             `json:"address"`
}

func (p *Place) Summary() *PlaceSummary {
	return &PlaceSummary{ID: p.ID, Name: p.Name, Address: p.Address}
}

// PlaceInput is a full candidate place snapshot: the body of direct mutations
// and the payload embedded in add/edit change requests. Coordinates are pointers
// so a missing or null value is told apart from 0.
type PlaceInput struct {
	Name        string      `json:"name" bson:"name" validate:"required,max=200"`
	Address     string      `json:"address" bson:"address" validate:"required,max=500"`
	Latitude    *float64    `json:"latitude" bson:"latitude" validate:"required,gte=-90,lte=90"`
	Longitude   *float64    `json:"longitude" bson:"longitude" validate:"required,gte=-180,lte=180"`
	PhoneNumber string      `json:"phoneNumber,omitempty" bson:"phone_number,omitempty" validate:"max=40"`
	Description string      `json:"description,omitempty" bson:"description,omitempty" validate:"max=2000"`
	PrayerTimes PrayerTimes `json:"prayerTimes" bson:"prayer_times"`
}

// Coordinate returns v as an optional coordinate.
func Coordinate(v float64) *float64 {
	return &v
}

// Point reads the coordinates; a missing one is NaN and never valid.
func (in *PlaceInput) Point() geo.Point {
	return geo.Point{Latitude: coordinate(in.Latitude), Longitude: coordinate(in.Longitude)}
}

func coordinate(v *float64) float64 {
	if v == nil {
		return math.NaN()
	}
	return *v
}

// Clone returns a copy that shares no memory with in.
func (in *PlaceInput) Clone() *PlaceInput {
	if in == nil {
		return nil
	}
	cp := *in
	if in.Latitude != nil {
		cp.Latitude = Coordinate(*in.Latitude)
	}
	if in.Longitude != nil {
		cp.Longitude = Coordinate(*in.Longitude)
	}
	return &cp
}

// Normalize trims surrounding whitespace from the free-text fields.
func (in *PlaceInput) Normalize() {
	in.Name = strings.TrimSpace(in.Name)
	in.Address = strings.TrimSpace(in.Address)
	in.PhoneNumber = strings.TrimSpace(in.PhoneNumber)
	in.Description = strings.TrimSpace(in.Description)
	pt := &in.PrayerTimes
	for _, f := range []*string{&pt.Fajr, &pt.Dhuhr, &pt.Asr, &pt.Maghrib, &pt.Isha, &pt.Jummah} {
		*f = strings.TrimSpace(*f)
	}
}

// Validate checks the coordinate and schedule invariants of a place.
func (in *PlaceInput) Validate() error {
	if in == nil {
		return apperrors.Validation("place payload is required")
	}
	verr := apperrors.Validation("invalid place payload")
	if err := validate.Struct(in); err != nil {
		if fieldErrs, ok := err.(validator.ValidationErrors); ok {
			for _, fe := range fieldErrs {
				verr.WithField(fieldPath(fe), fe.Tag())
			}
		} else {
			return apperrors.Wrap(apperrors.KindValidation, err, "invalid place payload")
		}
	}
	if len(verr.Fields) > 0 {
		return verr
	}
	if !in.Point().Valid() {
		return verr.WithField("location", "out of range")
	}
	if field, ok := firstOutOfOrder(in.PrayerTimes); !ok {
		return verr.WithField("prayerTimes."+field, "earlier than the preceding prayer")
	}
	return nil
}

// ToPlace builds a new registry record from the payload.
func (in *PlaceInput) ToPlace() *Place {
	return &Place{
		Name:        in.Name,
		Address:     in.Address,
		Location:    NewGeoPoint(in.Point()),
		PhoneNumber: in.PhoneNumber,
		Description: in.Description,
		PrayerTimes: in.PrayerTimes,
	}
}

// ApplyTo overwrites the mutable fields of p with the payload.
func (in *PlaceInput) ApplyTo(p *Place) {
	p.Name = in.Name
	p.Address = in.Address
	p.Location = NewGeoPoint(in.Point())
	p.PhoneNumber = in.PhoneNumber
	p.Description = in.Description
	p.PrayerTimes = in.PrayerTimes
}

// PlaceInputFrom snapshots an existing place as a payload.
func PlaceInputFrom(p *Place) *PlaceInput {
	pt := p.Point()
	return &PlaceInput{
		Name:        p.Name,
		Address:     p.Address,
		Latitude:    Coordinate(pt.Latitude),
		Longitude:   Coordinate(pt.Longitude),
		PhoneNumber: p.PhoneNumber,
		Description: p.Description,
		PrayerTimes: p.PrayerTimes,
	}
}

var clockPattern = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d$`)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("clock", func(fl validator.FieldLevel) bool {
		return clockPattern.MatchString(fl.Field().String())
	})
	return v
}

// fieldPath drops the root struct name from the validator namespace.
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

// firstOutOfOrder returns the first daily prayer that precedes its predecessor.
// Jummah is weekly and exempt from ordering.
func firstOutOfOrder(pt PrayerTimes) (string, bool) {
	daily := []struct {
		name  string
		value string
	}{
		{"fajr", pt.Fajr},
		{"dhuhr", pt.Dhuhr},
		{"asr", pt.Asr},
		{"maghrib", pt.Maghrib},
		{"isha", pt.Isha},
	}
	// zero-padded HH:MM compares correctly as strings
	for i := 1; i < len(daily); i++ {
		if daily[i].value < daily[i-1].value {
			return daily[i].name, false
		}
	}
	return "", true
}
