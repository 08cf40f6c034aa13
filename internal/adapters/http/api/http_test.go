package api_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/goccy/go-json"
	"github.com/okian/flightdelay/internal/adapters/http/api"
	"github.com/okian/flightdelay/internal/domain/model"
	"github.com/okian/flightdelay/internal/domain/normalize"
	"github.com/okian/flightdelay/internal/domain/stats"
	"github.com/okian/flightdelay/internal/domain/types"
	"github.com/okian/flightdelay/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

var (
	day1 = civil.Date{Year: 2024, Month: time.January, Day: 1}
	day2 = civil.Date{Year: 2024, Month: time.January, Day: 2}
)

// mockDependencies serves canned answers for JFK-LAX and JFK only.
type mockDependencies struct {
	ingestErr    error
	ingested     []normalize.Input
	flightsLimit int
	airline      []stats.AirlineDelay
	unusual      bool
	noSpace      bool
}

func (m *mockDependencies) Ingest(_ context.Context, inputs []normalize.Input) (types.IngestResult, error) {
	if m.ingestErr != nil {
		return types.IngestResult{}, m.ingestErr
	}
	m.ingested = append(m.ingested, inputs...)
	res := types.IngestResult{BatchID: "b-1"}
	for i, in := range inputs {
		if in.DepartureTime == "bad" {
			res.Rejected = append(res.Rejected, types.Rejection{Index: i, Reason: "invalid_timestamp"})
			continue
		}
		res.Accepted++
	}
	return res, nil
}

func (m *mockDependencies) Flights(_ context.Context, airport string, limit int) (types.FlightPage, error) {
	m.flightsLimit = limit
	if airport != "" && airport != "JFK" {
		return types.FlightPage{Flights: []types.Flight{}}, nil
	}
	return types.FlightPage{Total: 1, Flights: []types.Flight{{FlightNumber: "DL1", DepartureAirport: "JFK", ArrivalAirport: "LAX"}}}, nil
}

func routeErr(origin, destination string) error {
	if origin == "" || destination == "" {
		return fmt.Errorf("%w: origin and destination are required", types.ErrInvalidInput)
	}
	if origin != "JFK" || destination != "LAX" {
		return fmt.Errorf("%w: %s-%s", types.ErrNotFound, origin, destination)
	}
	return nil
}

func (m *mockDependencies) daily() []model.DateAggregate {
	return []model.DateAggregate{
		{Date: day1, MeanDelay: 25, Flights: 2},
		{Date: day2, MeanDelay: 5, Flights: 1},
	}
}

func (m *mockDependencies) Recommend(_ context.Context, origin, destination string) (types.Recommendation, error) {
	if err := routeErr(origin, destination); err != nil {
		return types.Recommendation{}, err
	}
	return types.Recommendation{
		Origin:      origin,
		Destination: destination,
		BestDate:    day2,
		BestFlight:  types.Flight{FlightNumber: "DL3", Airline: "Delta"},
		MeanDelay:   5,
		Daily:       m.daily(),
		Matched:     4,
		Usable:      3,
	}, nil
}

func (m *mockDependencies) DailyMeans(_ context.Context, origin, destination string) ([]model.DateAggregate, error) {
	if err := routeErr(origin, destination); err != nil {
		return nil, err
	}
	return m.daily(), nil
}

func (m *mockDependencies) RouteMap(_ context.Context, origin, destination string) (types.RouteMap, error) {
	if err := routeErr(origin, destination); err != nil {
		return types.RouteMap{}, err
	}
	return types.RouteMap{
		Route:     origin + "-" + destination,
		Threshold: 15,
		Markers:   []types.Marker{{FlightNumber: "DL1", Color: types.MarkerLate}},
	}, nil
}

func (m *mockDependencies) Report(_ context.Context, origin, destination string) (model.Recommendation, []model.DateAggregate, *float64, error) {
	if err := routeErr(origin, destination); err != nil {
		return model.Recommendation{}, nil, nil, err
	}
	km := 3983.0
	rec := model.Recommendation{
		Route:    model.RouteQuery{Origin: origin, Destination: destination},
		BestDate: day2,
		BestFlight: model.FlightRecord{
			FlightNumber: "DL3", Airline: "Delta", DepartureAirport: origin, ArrivalAirport: destination,
			DepartureTime: time.Date(2024, 1, 2, 7, 0, 0, 0, time.UTC), DelayMinutes: 5, DelayKnown: true,
		},
		MeanDelay: 5,
	}
	return rec, m.daily(), &km, nil
}

func (m *mockDependencies) Airports(context.Context) ([]string, error) {
	return []string{"JFK", "LAX"}, nil
}

func (m *mockDependencies) AirlineDelays(_ context.Context, airport string, unusualOnly bool) ([]stats.AirlineDelay, error) {
	m.unusual = unusualOnly
	if airport != "JFK" {
		return nil, nil
	}
	return m.airline, nil
}

func (m *mockDependencies) DelayReasons(context.Context, string) ([]stats.ReasonCount, error) {
	return []stats.ReasonCount{{WeatherCondition: "Storm", DelayReason: "Weather", Count: 2}}, nil
}

func (m *mockDependencies) WeatherImpact(context.Context, string, bool) ([]stats.Distribution, error) {
	return []stats.Distribution{{WeatherCondition: "Storm", Count: 3, Median: 40}}, nil
}

func (m *mockDependencies) WeatherOutlook(context.Context, string) ([]stats.Outlook, error) {
	return []stats.Outlook{{WeatherCondition: "Storm", MeanDelay: 40, Flights: 3, HasData: true}}, nil
}

func (m *mockDependencies) HourlyDelays(context.Context) ([]stats.HourlyDelay, error) {
	return []stats.HourlyDelay{{Hour: 8, MeanDelay: 45, Flights: 2}, {Hour: 14, MeanDelay: 30, Flights: 2}}, nil
}

func (m *mockDependencies) SpaceWeather(context.Context) (stats.SpaceWeather, error) {
	if m.noSpace {
		return stats.SpaceWeather{}, fmt.Errorf("%w: no Kp observations", types.ErrNotFound)
	}
	return stats.SpaceWeather{AverageKp: 2.8, MaxKp: 3.3, SolarFlareIntensity: "C", Observations: 3}, nil
}

type mockStatsProvider struct {
	stats map[string]interface{}
}

func (m *mockStatsProvider) GetStats() map[string]interface{} {
	return m.stats
}

func newRouter(deps *mockDependencies, opts ...api.Option) http.Handler {
	server := api.NewServer(deps, &mockStatsProvider{stats: map[string]interface{}{"started": true, "records": 5}}, opts...)
	return server.Router(context.Background())
}

func do(h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode(w *httptest.ResponseRecorder, v any) error {
	return json.Unmarshal(w.Body.Bytes(), v)
}

func TestServer_Operational(t *testing.T) {
	Convey("Given a router", t, func() {
		h := newRouter(&mockDependencies{})

		Convey("When probing health", func() {
			w := do(h, http.MethodGet, "/healthz", "")

			Convey("Then a JSON status is returned", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Body.String(), ShouldContainSubstring, `"status":"ok"`)
			})
		})

		Convey("When health is asked for plain text", func() {
			req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
			req.Header.Set("Accept", "text/plain")
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)

			Convey("Then the metrics exposition is served", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Body.String(), ShouldContainSubstring, "flightdelay_")
			})
		})

		Convey("When scraping metrics", func() {
			do(h, http.MethodGet, "/stats", "")
			w := do(h, http.MethodGet, "/metrics", "")

			Convey("Then HTTP metrics are present", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Body.String(), ShouldContainSubstring, "http_requests")
			})
		})

		Convey("When reading stats", func() {
			w := do(h, http.MethodGet, "/stats", "")
			var got map[string]interface{}
			So(decode(w, &got), ShouldBeNil)

			Convey("Then the provider's map is returned", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(got["started"], ShouldEqual, true)
				So(got["records"], ShouldEqual, 5.0)
			})
		})

		Convey("When opening the dashboard", func() {
			w := do(h, http.MethodGet, "/dashboard", "")

			Convey("Then the embedded page is served", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Body.String(), ShouldContainSubstring, "Flight delay dashboard")
				So(w.Body.String(), ShouldContainSubstring, "/api/recommendation")
			})
		})

		Convey("When calling an unknown path", func() {
			w := do(h, http.MethodGet, "/unknown", "")

			Convey("Then it is not found", func() {
				So(w.Code, ShouldEqual, http.StatusNotFound)
			})
		})
	})
}

func TestServer_Records(t *testing.T) {
	Convey("Given a router", t, func() {
		deps := &mockDependencies{}
		h := newRouter(deps, api.WithMaxRecordsLimit(50))

		Convey("When posting a valid batch", func() {
			body := `{"records":[
				{"flight_number":"DL1","departure_airport":"JFK","arrival_airport":"LAX","airline":"Delta","departure_time":"2024-01-01T08:00:00Z","delay_minutes":12},
				{"flight_number":"DL2","departure_airport":"JFK","arrival_airport":"LAX","airline":"Delta","departure_time":"bad"}
			]}`
			w := do(h, http.MethodPost, "/api/records", body)
			var res types.IngestResult
			So(decode(w, &res), ShouldBeNil)

			Convey("Then accepted records yield 202 with per-record rejections", func() {
				So(w.Code, ShouldEqual, http.StatusAccepted)
				So(res.Accepted, ShouldEqual, 1)
				So(len(res.Rejected), ShouldEqual, 1)
				So(res.Rejected[0].Reason, ShouldEqual, "invalid_timestamp")
				So(len(deps.ingested), ShouldEqual, 2)
				So(*deps.ingested[0].DelayMinutes, ShouldEqual, 12)
			})
		})

		Convey("When every record is rejected", func() {
			w := do(h, http.MethodPost, "/api/records", `{"records":[{"flight_number":"X","departure_time":"bad"}]}`)

			Convey("Then the response is 200", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
			})
		})

		Convey("When the body is malformed", func() {
			w := do(h, http.MethodPost, "/api/records", `{"records":`)

			Convey("Then it is a bad request", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				So(w.Body.String(), ShouldContainSubstring, "bad_request")
			})
		})

		Convey("When the body has unknown fields", func() {
			w := do(h, http.MethodPost, "/api/records", `{"events":[]}`)

			Convey("Then it is a bad request", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("When the body is too large", func() {
			big := bytes.Repeat([]byte(" "), 9<<20)
			req := httptest.NewRequest(http.MethodPost, "/api/records", bytes.NewReader(append(big, []byte(`{"records":[]}`)...)))
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)

			Convey("Then it is refused", func() {
				So(w.Code, ShouldEqual, http.StatusRequestEntityTooLarge)
			})
		})

		Convey("When the service reports backpressure", func() {
			deps.ingestErr = fmt.Errorf("queue full: %w", types.ErrBackpressure)
			w := do(h, http.MethodPost, "/api/records", `{"records":[]}`)

			Convey("Then the response is 429", func() {
				So(w.Code, ShouldEqual, http.StatusTooManyRequests)
				So(w.Body.String(), ShouldContainSubstring, "backpressure")
			})
		})

		Convey("When the service rejects the batch", func() {
			deps.ingestErr = fmt.Errorf("empty batch: %w", types.ErrInvalidInput)
			w := do(h, http.MethodPost, "/api/records", `{"records":[]}`)

			Convey("Then the response is 400", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("When the service is not running", func() {
			deps.ingestErr = fmt.Errorf("not started: %w", types.ErrUnavailable)
			w := do(h, http.MethodPost, "/api/records", `{"records":[]}`)

			Convey("Then the response is 503", func() {
				So(w.Code, ShouldEqual, http.StatusServiceUnavailable)
			})
		})

		Convey("When listing flights", func() {
			w := do(h, http.MethodGet, "/api/flights?airport=JFK&limit=10", "")
			var page types.FlightPage
			So(decode(w, &page), ShouldBeNil)

			Convey("Then the page and limit pass through", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(page.Total, ShouldEqual, 1)
				So(page.Flights[0].FlightNumber, ShouldEqual, "DL1")
				So(deps.flightsLimit, ShouldEqual, 10)
			})
		})

		Convey("When listing flights without a limit", func() {
			do(h, http.MethodGet, "/api/flights", "")

			Convey("Then the configured maximum applies", func() {
				So(deps.flightsLimit, ShouldEqual, 50)
			})
		})

		Convey("When the limit is invalid or too large", func() {
			bad := do(h, http.MethodGet, "/api/flights?limit=abc", "")
			zero := do(h, http.MethodGet, "/api/flights?limit=0", "")
			over := do(h, http.MethodGet, "/api/flights?limit=51", "")

			Convey("Then each is a bad request", func() {
				So(bad.Code, ShouldEqual, http.StatusBadRequest)
				So(zero.Code, ShouldEqual, http.StatusBadRequest)
				So(over.Code, ShouldEqual, http.StatusBadRequest)
				So(over.Body.String(), ShouldContainSubstring, "limit_exceeded")
			})
		})
	})
}

func TestServer_Routes(t *testing.T) {
	Convey("Given a router", t, func() {
		h := newRouter(&mockDependencies{})

		Convey("When asking for a recommendation", func() {
			w := do(h, http.MethodGet, "/api/recommendation?origin=JFK&destination=LAX", "")
			var got map[string]interface{}
			So(decode(w, &got), ShouldBeNil)

			Convey("Then the best day and flight are returned", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(got["best_date"], ShouldEqual, "2024-01-02")
				So(got["mean_delay"], ShouldEqual, 5.0)
				So(got["matched_records"], ShouldEqual, 4.0)
				So(got["usable_records"], ShouldEqual, 3.0)
				flight := got["best_flight"].(map[string]interface{})
				So(flight["flight_number"], ShouldEqual, "DL3")
			})
		})

		Convey("When the route has no flights", func() {
			w := do(h, http.MethodGet, "/api/recommendation?origin=JFK&destination=SFO", "")

			Convey("Then it is not found", func() {
				So(w.Code, ShouldEqual, http.StatusNotFound)
				So(w.Body.String(), ShouldContainSubstring, "not_found")
			})
		})

		Convey("When the route is incomplete", func() {
			w := do(h, http.MethodGet, "/api/recommendation?origin=JFK", "")

			Convey("Then it is a bad request", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("When asking for daily means", func() {
			w := do(h, http.MethodGet, "/api/routes/daily?origin=JFK&destination=LAX", "")
			var got []model.DateAggregate
			So(decode(w, &got), ShouldBeNil)

			Convey("Then every day is listed", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(len(got), ShouldEqual, 2)
				So(got[1].Date, ShouldEqual, day2)
			})
		})

		Convey("When asking for the route map", func() {
			w := do(h, http.MethodGet, "/api/route-map?origin=JFK&destination=LAX", "")
			var got types.RouteMap
			So(decode(w, &got), ShouldBeNil)

			Convey("Then markers carry their colour", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(got.Markers[0].Color, ShouldEqual, types.MarkerLate)
			})
		})
	})
}

func TestServer_Analytics(t *testing.T) {
	Convey("Given a router", t, func() {
		deps := &mockDependencies{}
		h := newRouter(deps)

		Convey("When listing airports", func() {
			w := do(h, http.MethodGet, "/api/airports", "")

			Convey("Then codes are returned", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(strings.TrimSpace(w.Body.String()), ShouldEqual, `["JFK","LAX"]`)
			})
		})

		Convey("When asking for airline delays with the unusual filter", func() {
			w := do(h, http.MethodGet, "/api/airports/JFK/airlines?unusual=true", "")

			Convey("Then the flag reaches the service", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(deps.unusual, ShouldBeTrue)
			})
		})

		Convey("When the unusual flag is not a boolean", func() {
			w := do(h, http.MethodGet, "/api/airports/JFK/weather-impact?unusual=maybe", "")

			Convey("Then it is a bad request", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("When asking for the per-airport breakdowns", func() {
			reasons := do(h, http.MethodGet, "/api/airports/JFK/reasons", "")
			impact := do(h, http.MethodGet, "/api/airports/JFK/weather-impact", "")
			outlook := do(h, http.MethodGet, "/api/airports/JFK/outlook", "")
			hourly := do(h, http.MethodGet, "/api/delays/hourly", "")

			Convey("Then each succeeds", func() {
				So(reasons.Code, ShouldEqual, http.StatusOK)
				So(reasons.Body.String(), ShouldContainSubstring, `"delay_reason":"Weather"`)
				So(impact.Body.String(), ShouldContainSubstring, `"median":40`)
				So(outlook.Body.String(), ShouldContainSubstring, `"has_data":true`)
				So(hourly.Body.String(), ShouldContainSubstring, `"hour":14`)
			})
		})

		Convey("When asking for space weather", func() {
			w := do(h, http.MethodGet, "/api/space-weather", "")

			Convey("Then the summary is returned", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Body.String(), ShouldContainSubstring, `"solar_flare_intensity":"C"`)
			})
		})

		Convey("When there is no space weather data", func() {
			deps.noSpace = true
			w := do(h, http.MethodGet, "/api/space-weather", "")

			Convey("Then it is not found", func() {
				So(w.Code, ShouldEqual, http.StatusNotFound)
			})
		})
	})
}

func TestServer_Charts(t *testing.T) {
	Convey("Given a router with airline data", t, func() {
		deps := &mockDependencies{airline: []stats.AirlineDelay{
			{Airline: "Delta", MeanDelay: 35, Flights: 2},
			{Airline: "United", MeanDelay: 30, Flights: 3},
		}}
		h := newRouter(deps)

		Convey("When drawing the airline chart", func() {
			w := do(h, http.MethodGet, "/charts/airlines.png?airport=JFK", "")

			Convey("Then a PNG is returned", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Header().Get("Content-Type"), ShouldEqual, "image/png")
				So(bytes.HasPrefix(w.Body.Bytes(), []byte("\x89PNG")), ShouldBeTrue)
			})
		})

		Convey("When the airport has no data", func() {
			w := do(h, http.MethodGet, "/charts/airlines.png?airport=LAX", "")

			Convey("Then it is not found", func() {
				So(w.Code, ShouldEqual, http.StatusNotFound)
			})
		})

		Convey("When the airport is missing", func() {
			w := do(h, http.MethodGet, "/charts/airlines.png", "")

			Convey("Then it is a bad request", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("When drawing the hourly chart", func() {
			w := do(h, http.MethodGet, "/charts/hourly.png", "")

			Convey("Then a PNG is returned", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(bytes.HasPrefix(w.Body.Bytes(), []byte("\x89PNG")), ShouldBeTrue)
			})
		})

		Convey("When downloading the recommendation report", func() {
			w := do(h, http.MethodGet, "/reports/recommendation.pdf?origin=JFK&destination=LAX", "")

			Convey("Then a PDF is returned", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Header().Get("Content-Type"), ShouldEqual, "application/pdf")
				So(bytes.HasPrefix(w.Body.Bytes(), []byte("%PDF")), ShouldBeTrue)
			})
		})

		Convey("When the report route is unknown", func() {
			w := do(h, http.MethodGet, "/reports/recommendation.pdf?origin=AAA&destination=BBB", "")

			Convey("Then it is not found", func() {
				So(w.Code, ShouldEqual, http.StatusNotFound)
			})
		})
	})
}

func TestServer_Middleware(t *testing.T) {
	Convey("Given a router limited to two requests per minute", t, func() {
		h := newRouter(&mockDependencies{}, api.WithRateLimit(2, time.Minute), api.WithCORSOrigins([]string{"https://ops.example.com"}))

		Convey("When a client exceeds the limit", func() {
			codes := make([]int, 0, 3)
			for i := 0; i < 3; i++ {
				codes = append(codes, do(h, http.MethodGet, "/api/airports", "").Code)
			}

			Convey("Then the third request is throttled", func() {
				So(codes, ShouldResemble, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests})
			})

			Convey("And operational endpoints are not throttled", func() {
				So(do(h, http.MethodGet, "/healthz", "").Code, ShouldEqual, http.StatusOK)
			})
		})

		Convey("When a browser sends a CORS preflight", func() {
			req := httptest.NewRequest(http.MethodOptions, "/api/airports", nil)
			req.Header.Set("Origin", "https://ops.example.com")
			req.Header.Set("Access-Control-Request-Method", http.MethodGet)
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)

			Convey("Then the allowed origin is echoed", func() {
				So(w.Header().Get("Access-Control-Allow-Origin"), ShouldEqual, "https://ops.example.com")
			})
		})

		Convey("When a request arrives", func() {
			w := do(h, http.MethodGet, "/stats", "")

			Convey("Then it is answered", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
			})
		})
	})
}

func TestError(t *testing.T) {
	Convey("Given API errors", t, func() {
		cause := errors.New("boom")

		Convey("Then kinds and causes are both reachable", func() {
			err := api.WrapKind("api.op", api.ErrNotFound, cause)
			So(err.Error(), ShouldEqual, "api.op: not found: boom")
			So(errors.Is(err, api.ErrNotFound), ShouldBeTrue)
			So(errors.Is(err, cause), ShouldBeTrue)
			So(api.Wrap("api.op", nil), ShouldBeNil)
			So(api.NewKind("api.op", api.ErrBadRequest).Error(), ShouldEqual, "api.op: bad request")
		})
	})
}
