package source

import (
	"testing"
	"time"

	"github.com/okian/flightdelay/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestReport(t *testing.T) {
	Convey("Given a mix of usable and malformed records", t, func() {
		ok := model.FlightRecord{DepartureTime: time.Now(), DelayMinutes: 3, DelayKnown: true}
		noDate := model.FlightRecord{DelayMinutes: 3, DelayKnown: true}
		noDelay := model.FlightRecord{DepartureTime: time.Now()}
		negative := model.FlightRecord{DepartureTime: time.Now(), DelayMinutes: -1, DelayKnown: true}

		var rep Report
		for _, r := range []model.FlightRecord{ok, noDate, noDelay, negative} {
			rep.Observe(&r)
		}

		Convey("Then each unusable record is counted by reason", func() {
			So(rep.Rows, ShouldEqual, 4)
			So(rep.Unusable, ShouldEqual, 3)
			So(rep.Reasons, ShouldResemble, map[string]int{
				"invalid_timestamp": 1,
				"missing_delay":     1,
				"invalid_delay":     1,
			})
		})
	})
}
