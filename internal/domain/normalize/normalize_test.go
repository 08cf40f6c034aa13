package normalize

import (
	"context"
	"errors"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func ptr(v float64) *float64 { return &v }

func validInput() Input {
	return Input{
		FlightNumber:     " DL100 ",
		DepartureAirport: "JFK",
		ArrivalAirport:   "LAX",
		Airline:          "Delta",
		DepartureTime:    "2024-01-05 14:30:00",
		DelayMinutes:     ptr(25),
		WeatherCondition: "Storm",
		KpIndex:          ptr(4.3),
	}
}

func TestNormalize(t *testing.T) {
	Convey("Given a validating normalizer", t, func() {
		n := New()
		ctx := context.Background()

		Convey("When the input is valid", func() {
			rec, err := n.Normalize(ctx, validInput())

			Convey("Then it is converted to a usable record", func() {
				So(err, ShouldBeNil)
				So(rec.FlightNumber, ShouldEqual, "DL100")
				So(rec.DepartureTime.Equal(time.Date(2024, 1, 5, 14, 30, 0, 0, time.UTC)), ShouldBeTrue)
				So(rec.Usable(), ShouldBeTrue)
				So(rec.DelayMinutes, ShouldEqual, 25)
				So(rec.KpKnown, ShouldBeTrue)
				So(rec.KpIndex, ShouldEqual, 4.3)
			})
		})

		Convey("When the delay is missing", func() {
			in := validInput()
			in.DelayMinutes = nil
			rec, err := n.Normalize(ctx, in)

			Convey("Then the record is kept with an unknown delay", func() {
				So(err, ShouldBeNil)
				So(rec.DelayKnown, ShouldBeFalse)
			})
		})

		Convey("When required fields are missing", func() {
			in := validInput()
			in.Airline = "  "
			in.ArrivalAirport = ""
			_, err := n.Normalize(ctx, in)

			Convey("Then an invalid record error names the json fields", func() {
				So(errors.Is(err, ErrInvalidRecord), ShouldBeTrue)
				So(err.Error(), ShouldContainSubstring, "airline failed required")
				So(err.Error(), ShouldContainSubstring, "arrival_airport failed required")
				So(Reason(err), ShouldEqual, "invalid_record")
			})
		})

		Convey("When the delay is negative", func() {
			in := validInput()
			in.DelayMinutes = ptr(-5)
			_, err := n.Normalize(ctx, in)

			Convey("Then the record is rejected", func() {
				So(errors.Is(err, ErrInvalidRecord), ShouldBeTrue)
				So(err.Error(), ShouldContainSubstring, "delay_minutes failed gte=0")
			})
		})

		Convey("When the timestamp cannot be parsed", func() {
			in := validInput()
			in.DepartureTime = "yesterday"
			_, err := n.Normalize(ctx, in)

			Convey("Then a timestamp error is returned", func() {
				So(errors.Is(err, ErrInvalidTimestamp), ShouldBeTrue)
				So(Reason(err), ShouldEqual, "invalid_timestamp")
			})
		})

		Convey("When the context is cancelled", func() {
			cctx, cancel := context.WithCancel(ctx)
			cancel()
			_, err := n.Normalize(cctx, validInput())

			Convey("Then the cancellation is surfaced", func() {
				So(errors.Is(err, context.Canceled), ShouldBeTrue)
				So(Reason(err), ShouldEqual, "cancelled")
			})
		})
	})
}

func TestLenient(t *testing.T) {
	Convey("Given malformed input", t, func() {
		n := New()
		in := validInput()
		in.DepartureTime = "not a time"
		in.DelayMinutes = nil
		in.KpIndex = nil

		Convey("Then lenient conversion keeps the row but marks it unusable", func() {
			rec := n.Lenient(in)
			So(rec.FlightNumber, ShouldEqual, "DL100")
			So(rec.HasDate(), ShouldBeFalse)
			So(rec.DelayKnown, ShouldBeFalse)
			So(rec.KpKnown, ShouldBeFalse)
			So(rec.Usable(), ShouldBeFalse)
		})
	})
}

func TestParseTime(t *testing.T) {
	Convey("Given the default layouts", t, func() {
		n := New()

		Convey("Then common dataset formats parse", func() {
			for _, s := range []string{
				"2024-01-05T14:30:00Z",
				"2024-01-05T14:30:00+02:00",
				"2024-01-05T14:30:00",
				"2024-01-05 14:30:00",
				"2024-01-05 14:30",
				"2024-01-05",
			} {
				ts, err := n.ParseTime(s)
				So(err, ShouldBeNil)
				So(ts.Year(), ShouldEqual, 2024)
			}
		})

		Convey("And an explicit offset keeps its location", func() {
			ts, err := n.ParseTime("2024-01-05T23:30:00+05:00")
			So(err, ShouldBeNil)
			_, offset := ts.Zone()
			So(offset, ShouldEqual, 5*3600)
		})
	})

	Convey("Given a custom layout and location", t, func() {
		loc := time.FixedZone("EST", -5*3600)
		n := New(WithTimeLayouts("02/01/2006 15:04"), WithLocation(loc))

		Convey("Then only that layout is accepted, in that location", func() {
			ts, err := n.ParseTime("05/01/2024 09:15")
			So(err, ShouldBeNil)
			So(ts.Location(), ShouldEqual, loc)
			_, err = n.ParseTime("2024-01-05 09:15:00")
			So(errors.Is(err, ErrInvalidTimestamp), ShouldBeTrue)
		})
	})
}
