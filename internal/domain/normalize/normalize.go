// Package normalize turns raw flight rows into model records.
package normalize

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/okian/flightdelay/internal/domain/model"
)

// DefaultTimeLayouts are the departure_time formats accepted out of the box.
var DefaultTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// Input is a flight row as received from a source or the ingestion API.
// Missing numeric columns are nil.
type Input struct {
	FlightNumber        string   `json:"flight_number" validate:"required,max=16"`
	DepartureAirport    string   `json:"departure_airport" validate:"required,min=3,max=4,alphanum"`
	ArrivalAirport      string   `json:"arrival_airport" validate:"required,min=3,max=4,alphanum"`
	Airline             string   `json:"airline" validate:"required,max=64"`
	DepartureTime       string   `json:"departure_time" validate:"required"`
	DelayMinutes        *float64 `json:"delay_minutes,omitempty" validate:"omitempty,gte=0"`
	Status              string   `json:"status,omitempty" validate:"max=32"`
	WeatherCondition    string   `json:"weather_condition,omitempty" validate:"max=32"`
	DelayReason         string   `json:"delay_reason,omitempty" validate:"max=64"`
	KpIndex             *float64 `json:"geomagnetic_kp_index,omitempty" validate:"omitempty,gte=0,lte=9"`
	SolarFlareIntensity string   `json:"solar_flare_intensity,omitempty" validate:"max=16"`
}

// Normalizer validates and converts an Input.
type Normalizer interface {
	// Normalize converts in, honoring ctx for cancellation.
	Normalize(ctx context.Context, in Input) (model.FlightRecord, error)
}

// Validating is a Normalizer backed by go-playground/validator.
type Validating struct {
	validate *validator.Validate
	layouts  []string
	loc      *time.Location
}

// New creates a validating normalizer.
func New(opts ...Option) *Validating {
	v := &Validating{
		validate: validator.New(validator.WithRequiredStructEnabled()),
		layouts:  DefaultTimeLayouts,
		loc:      time.UTC,
	}
	v.validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})

	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Normalize validates every field and rejects rows whose timestamp cannot be
// parsed. A missing delay is kept as unknown.
func (v *Validating) Normalize(ctx context.Context, in Input) (model.FlightRecord, error) {
	if err := ctx.Err(); err != nil {
		return model.FlightRecord{}, fmt.Errorf("normalize: %w", err)
	}
	in = trim(in)
	if err := v.validate.Struct(in); err != nil {
		return model.FlightRecord{}, fmt.Errorf("%w: %s", ErrInvalidRecord, describe(err))
	}

	rec := v.Lenient(in)
	if !rec.HasDate() {
		return model.FlightRecord{}, fmt.Errorf("%w: %q", ErrInvalidTimestamp, in.DepartureTime)
	}
	return rec, nil
}

// Lenient converts in without validation. Unparseable timestamps become zero
// and missing delays stay unknown; aggregation skips both.
func (v *Validating) Lenient(in Input) model.FlightRecord {
	in = trim(in)
	rec := model.FlightRecord{
		FlightNumber:        in.FlightNumber,
		DepartureAirport:    in.DepartureAirport,
		ArrivalAirport:      in.ArrivalAirport,
		Airline:             in.Airline,
		Status:              in.Status,
		WeatherCondition:    in.WeatherCondition,
		DelayReason:         in.DelayReason,
		SolarFlareIntensity: in.SolarFlareIntensity,
	}
	if ts, err := v.ParseTime(in.DepartureTime); err == nil {
		rec.DepartureTime = ts
	}
	if in.DelayMinutes != nil {
		rec.DelayMinutes = *in.DelayMinutes
		rec.DelayKnown = true
	}
	if in.KpIndex != nil {
		rec.KpIndex = *in.KpIndex
		rec.KpKnown = true
	}
	return rec
}

// ParseTime tries each configured layout in order.
func (v *Validating) ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, ErrInvalidTimestamp
	}
	for _, layout := range v.layouts {
		if ts, err := time.ParseInLocation(layout, s, v.loc); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidTimestamp, s)
}

// Reason maps a normalization error to a short label for metrics and API
// responses.
func Reason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidTimestamp):
		return "invalid_timestamp"
	case errors.Is(err, ErrInvalidRecord):
		return "invalid_record"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		return "unknown"
	}
}

func trim(in Input) Input {
	in.FlightNumber = strings.TrimSpace(in.FlightNumber)
	in.DepartureAirport = strings.TrimSpace(in.DepartureAirport)
	in.ArrivalAirport = strings.TrimSpace(in.ArrivalAirport)
	in.Airline = strings.TrimSpace(in.Airline)
	in.Status = strings.TrimSpace(in.Status)
	in.WeatherCondition = strings.TrimSpace(in.WeatherCondition)
	in.DelayReason = strings.TrimSpace(in.DelayReason)
	in.SolarFlareIntensity = strings.TrimSpace(in.SolarFlareIntensity)
	return in
}

func describe(err error) string {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s failed %s=%s", fe.Field(), fe.Tag(), fe.Param()))
			continue
		}
		msgs = append(msgs, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
	}
	return strings.Join(msgs, "; ")
}
