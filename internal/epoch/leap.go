package epoch

import (
	"sort"

	"github.com/soniakeys/meeus/v3/julian"
)

// ttMinusTAI is the fixed TT - TAI offset in seconds.
const ttMinusTAI = 32.184

type leapEntry struct {
	ds50    float64 // UTC day the offset takes effect
	seconds float64 // TAI - UTC from that day
}

var leapTable = buildLeapTable([]struct {
	year, month int
	seconds     float64
}{
	{1972, 1, 10}, {1972, 7, 11}, {1973, 1, 12}, {1974, 1, 13}, {1975, 1, 14},
	{1976, 1, 15}, {1977, 1, 16}, {1978, 1, 17}, {1979, 1, 18}, {1980, 1, 19},
	{1981, 7, 20}, {1982, 7, 21}, {1983, 7, 22}, {1985, 7, 23}, {1988, 1, 24},
	{1990, 1, 25}, {1991, 1, 26}, {1992, 7, 27}, {1993, 7, 28}, {1994, 7, 29},
	{1996, 1, 30}, {1997, 7, 31}, {1999, 1, 32}, {2006, 1, 33}, {2009, 1, 34},
	{2012, 7, 35}, {2015, 7, 36}, {2017, 1, 37},
})

func buildLeapTable(rows []struct {
	year, month int
	seconds     float64
}) []leapEntry {
	table := make([]leapEntry, len(rows))
	for i, r := range rows {
		table[i] = leapEntry{
			ds50:    julian.CalendarGregorianToJD(r.year, r.month, 1) - JD1950,
			seconds: r.seconds,
		}
	}
	return table
}

// LeapSeconds returns TAI - UTC at a UTC DS50 instant. Dates before 1972 use 10 s.
func LeapSeconds(utcDS50 float64) float64 {
	i := sort.Search(len(leapTable), func(i int) bool { return leapTable[i].ds50 > utcDS50 })
	if i == 0 {
		return leapTable[0].seconds
	}
	return leapTable[i-1].seconds
}

// offsetSeconds returns system - UTC in seconds. UT1 is taken equal to UTC.
func offsetSeconds(system TimeSystem, utcDS50 float64) float64 {
	switch system {
	case TAI:
		return LeapSeconds(utcDS50)
	case TT:
		return LeapSeconds(utcDS50) + ttMinusTAI
	default:
		return 0
	}
}
