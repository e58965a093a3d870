package epoch

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/soniakeys/meeus/v3/julian"
)

// JD1950 is the Julian date of DS50 day 0.0 (1950 Jan 0.0 UTC).
const JD1950 = 2433281.5

const secondsPerDay = 86400.0

// base is the time.Time of DS50 day 0.0.
var base = time.Date(1949, time.December, 31, 0, 0, 0, 0, time.UTC)

// TimeSystem identifies the time scale an Epoch is expressed in.
type TimeSystem int

const (
	UTC TimeSystem = iota
	TAI
	TT
	UT1
)

func (s TimeSystem) String() string {
	switch s {
	case UTC:
		return "UTC"
	case TAI:
		return "TAI"
	case TT:
		return "TT"
	case UT1:
		return "UT1"
	default:
		return fmt.Sprintf("TimeSystem(%d)", int(s))
	}
}

// ParseTimeSystem maps a case-insensitive name to a TimeSystem.
func ParseTimeSystem(s string) (TimeSystem, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "UTC", "":
		return UTC, nil
	case "TAI":
		return TAI, nil
	case "TT":
		return TT, nil
	case "UT1":
		return UT1, nil
	}
	return UTC, fmt.Errorf("unknown time system %q", s)
}

// Epoch is a point in time as fractional days since 1950 Jan 0.0 in a given system.
// Epochs in different systems are converted before they are compared or subtracted.
type Epoch struct {
	DaysSince1950 float64
	System        TimeSystem
}

// New returns an epoch from a DS50 value.
func New(ds50 float64, system TimeSystem) Epoch {
	return Epoch{DaysSince1950: ds50, System: system}
}

// FromTime converts a wall-clock time to a UTC epoch.
func FromTime(t time.Time) Epoch {
	return Epoch{DaysSince1950: t.Sub(base).Seconds() / secondsPerDay, System: UTC}
}

// FromComponents builds an epoch from calendar fields in the given system.
func FromComponents(year, month, day, hour, minute int, second float64, system TimeSystem) Epoch {
	jd := julian.CalendarGregorianToJD(year, month, float64(day))
	ds50 := (jd - JD1950) + (float64(hour)*3600+float64(minute)*60+second)/secondsPerDay
	return Epoch{DaysSince1950: ds50, System: system}
}

// FromTLE converts a two-digit TLE year and fractional day-of-year to a UTC epoch.
// Years 57-99 map to 1957-1999.
func FromTLE(yy int, dayOfYear float64) Epoch {
	year := 2000 + yy
	if yy >= 57 {
		year = 1900 + yy
	}
	jd := julian.CalendarGregorianToJD(year, 1, 0)
	return Epoch{DaysSince1950: jd - JD1950 + dayOfYear, System: UTC}
}

// FromISO parses an ISO-8601 timestamp as UTC. A missing zone is read as UTC.
func FromISO(s string) (Epoch, error) {
	layouts := []string{
		time.RFC3339Nano,
		"2006-01-02T15:04:05.999999999",
		"2006-01-02 15:04:05.999999999",
		"2006-01-02T15:04",
		"2006-01-02",
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, strings.TrimSpace(s)); err == nil {
			return FromTime(t.UTC()), nil
		}
	}
	return Epoch{}, fmt.Errorf("parse epoch %q: not an ISO-8601 timestamp", s)
}

// JulianDate returns the Julian date in the epoch's own system.
func (e Epoch) JulianDate() float64 {
	return e.DaysSince1950 + JD1950
}

// Time converts the epoch to UTC and returns it as a time.Time.
func (e Epoch) Time() time.Time {
	u := e.ToSystem(UTC)
	whole := math.Floor(u.DaysSince1950)
	frac := (u.DaysSince1950 - whole) * secondsPerDay
	t := base.AddDate(0, 0, int(whole))
	return t.Add(time.Duration(math.Round(frac*1e6)) * time.Microsecond)
}

// ISO formats the UTC instant with millisecond precision.
func (e Epoch) ISO() string {
	return e.Time().Format("2006-01-02T15:04:05.000Z")
}

func (e Epoch) String() string {
	if e.System == UTC {
		return e.ISO()
	}
	return fmt.Sprintf("%.9f %s", e.DaysSince1950, e.System)
}

// Components splits the epoch into calendar fields in its own system.
func (e Epoch) Components() (year, month, day, hour, minute int, second float64) {
	whole := math.Floor(e.DaysSince1950)
	secs := (e.DaysSince1950 - whole) * secondsPerDay
	var fday float64
	year, month, fday = julian.JDToCalendar(whole + JD1950)
	day = int(math.Round(fday))
	hour = int(secs / 3600)
	secs -= float64(hour) * 3600
	minute = int(secs / 60)
	second = secs - float64(minute)*60
	return year, month, day, hour, minute, second
}

// TLEComponents returns the two-digit year and fractional day-of-year used by TLE line 1.
func (e Epoch) TLEComponents() (yy int, dayOfYear float64) {
	u := e.ToSystem(UTC)
	year, _, _, _, _, _ := u.Components()
	jan0 := julian.CalendarGregorianToJD(year, 1, 0) - JD1950
	return year % 100, u.DaysSince1950 - jan0
}

// ToSystem re-expresses the epoch in another time system.
func (e Epoch) ToSystem(system TimeSystem) Epoch {
	if e.System == system {
		return e
	}
	// Offsets are tabulated against UTC; one correction pass settles leap-second boundaries.
	utc := e.DaysSince1950 - offsetSeconds(e.System, e.DaysSince1950)/secondsPerDay
	utc = e.DaysSince1950 - offsetSeconds(e.System, utc)/secondsPerDay
	return Epoch{
		DaysSince1950: utc + offsetSeconds(system, utc)/secondsPerDay,
		System:        system,
	}
}

// Add returns the epoch shifted by a span.
func (e Epoch) Add(span TimeSpan) Epoch {
	return Epoch{DaysSince1950: e.DaysSince1950 + span.days, System: e.System}
}

// Sub returns e - other, with other converted into e's system.
func (e Epoch) Sub(other Epoch) TimeSpan {
	o := other.ToSystem(e.System)
	return TimeSpan{days: e.DaysSince1950 - o.DaysSince1950}
}

// Compare returns -1, 0 or +1.
func (e Epoch) Compare(other Epoch) int {
	o := other.ToSystem(e.System)
	switch {
	case e.DaysSince1950 < o.DaysSince1950:
		return -1
	case e.DaysSince1950 > o.DaysSince1950:
		return 1
	}
	return 0
}

func (e Epoch) Before(other Epoch) bool { return e.Compare(other) < 0 }
func (e Epoch) After(other Epoch) bool  { return e.Compare(other) > 0 }
func (e Epoch) Equal(other Epoch) bool  { return e.Compare(other) == 0 }

// MarshalText encodes the epoch as a UTC ISO-8601 timestamp.
func (e Epoch) MarshalText() ([]byte, error) {
	return []byte(e.ISO()), nil
}

// UnmarshalText accepts the formats FromISO does.
func (e *Epoch) UnmarshalText(b []byte) error {
	v, err := FromISO(string(b))
	if err != nil {
		return err
	}
	*e = v
	return nil
}
