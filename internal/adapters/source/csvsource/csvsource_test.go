package csvsource

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/okian/flightdelay/internal/adapters/source"
	"github.com/okian/flightdelay/internal/domain/model"
	"github.com/okian/flightdelay/internal/domain/normalize"
	logging "github.com/okian/flightdelay/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

const dataset = `flight_number,departure_airport,arrival_airport,airline,departure_time,delay_minutes,status,weather_condition,delay_reason,geomagnetic_kp_index,solar_flare_intensity
DL100,JFK,LAX,Delta,2024-01-05 14:30:00,25,Delayed,Storm,Weather,4.3,M
DL101,JFK,LAX,Delta,2024-01-05 18:00:00,,Cancelled,Clear,,,
DL102,JFK,LAX,Delta,not-a-date,12,On Time,Clear,,2.0,C
UA200,ORD,SFO,United,2024-01-06T07:00:00Z,-3,On Time,Fog,ATC,1.5,X
`

func TestRead(t *testing.T) {
	Convey("Given a dataset with malformed rows", t, func() {
		recs, rep, err := Read(context.Background(), strings.NewReader(dataset), normalize.New())

		Convey("Then every row becomes a record", func() {
			So(err, ShouldBeNil)
			So(len(recs), ShouldEqual, 4)
		})

		Convey("And only well-formed rows are usable", func() {
			So(recs[0].Usable(), ShouldBeTrue)
			So(recs[0].DelayMinutes, ShouldEqual, 25)
			So(recs[0].WeatherCondition, ShouldEqual, "Storm")
			So(recs[0].KpKnown, ShouldBeTrue)
			So(recs[0].KpIndex, ShouldEqual, 4.3)
			So(recs[1].DelayKnown, ShouldBeFalse)
			So(recs[2].HasDate(), ShouldBeFalse)
			So(recs[3].HasDelay(), ShouldBeFalse)
		})

		Convey("And the report counts unusable rows by reason", func() {
			So(rep.Rows, ShouldEqual, 4)
			So(rep.Unusable, ShouldEqual, 3)
			So(rep.Reasons["missing_delay"], ShouldEqual, 1)
			So(rep.Reasons["invalid_timestamp"], ShouldEqual, 1)
			So(rep.Reasons["invalid_delay"], ShouldEqual, 1)
		})
	})

	Convey("Given a header in a different order with extra columns", t, func() {
		data := "airline,extra,arrival_airport,departure_airport,delay_minutes,departure_time,flight_number\n" +
			"Air France,x,JFK,CDG,7,2024-03-01 09:00,AF1\n" +
			"Air France,x,JFK\n"
		recs, rep, err := Read(context.Background(), strings.NewReader(data), normalize.New())

		Convey("Then columns are mapped by name and short rows are padded", func() {
			So(err, ShouldBeNil)
			So(recs[0].FlightNumber, ShouldEqual, "AF1")
			So(recs[0].DepartureAirport, ShouldEqual, "CDG")
			So(recs[0].Usable(), ShouldBeTrue)
			So(recs[1].Usable(), ShouldBeFalse)
			So(rep.Unusable, ShouldEqual, 1)
		})
	})

	Convey("Given a header missing a required column", t, func() {
		_, _, err := Read(context.Background(), strings.NewReader("flight_number,airline\nX,Y\n"), normalize.New())

		Convey("Then the read fails", func() {
			So(errors.Is(err, ErrMissingColumn), ShouldBeTrue)
		})
	})

	Convey("Given an empty input", t, func() {
		recs, _, err := Read(context.Background(), strings.NewReader(""), normalize.New())

		Convey("Then the result is empty without error", func() {
			So(err, ShouldBeNil)
			So(recs, ShouldBeEmpty)
		})
	})
}

func TestWriteRoundTrip(t *testing.T) {
	Convey("Given records with unknown values", t, func() {
		in := []model.FlightRecord{
			{
				FlightNumber: "AF1", DepartureAirport: "CDG", ArrivalAirport: "JFK", Airline: "Air France",
				DepartureTime: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC), DelayMinutes: 7.5, DelayKnown: true,
				WeatherCondition: "Fog", KpIndex: 3, KpKnown: true, SolarFlareIntensity: "M",
			},
			{FlightNumber: "AF2", DepartureAirport: "CDG", ArrivalAirport: "JFK", Airline: "Air France"},
		}

		var buf bytes.Buffer
		So(Write(&buf, in), ShouldBeNil)

		Convey("Then reading it back preserves known and unknown fields", func() {
			out, _, err := Read(context.Background(), &buf, normalize.New())
			So(err, ShouldBeNil)
			So(len(out), ShouldEqual, 2)
			So(out[0].DepartureTime.Equal(in[0].DepartureTime), ShouldBeTrue)
			So(out[0].DelayMinutes, ShouldEqual, 7.5)
			So(out[0].KpIndex, ShouldEqual, 3)
			So(out[1].DelayKnown, ShouldBeFalse)
			So(out[1].KpKnown, ShouldBeFalse)
			So(out[1].HasDate(), ShouldBeFalse)
		})
	})
}

func TestSourceLoad(t *testing.T) {
	_ = logging.Init()

	Convey("Given a dataset file", t, func() {
		path := filepath.Join(t.TempDir(), "flights.csv")
		So(os.WriteFile(path, []byte(dataset), 0o600), ShouldBeNil)

		Convey("When loading it", func() {
			recs, err := New(path).Load(context.Background())

			Convey("Then all rows are returned", func() {
				So(err, ShouldBeNil)
				So(len(recs), ShouldEqual, 4)
			})
		})
	})

	Convey("Given a missing file", t, func() {
		_, err := New(filepath.Join(t.TempDir(), "missing.csv")).Load(context.Background())

		Convey("Then the error wraps ErrSourceOpen", func() {
			So(errors.Is(err, source.ErrSourceOpen), ShouldBeTrue)
			So(errors.Is(err, os.ErrNotExist), ShouldBeTrue)
		})
	})
}
