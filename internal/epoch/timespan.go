package epoch

import (
	"math"
	"time"
)

// TimeSpan is a signed duration stored in days.
type TimeSpan struct {
	days float64
}

func FromDays(d float64) TimeSpan    { return TimeSpan{days: d} }
func FromHours(h float64) TimeSpan   { return TimeSpan{days: h / 24} }
func FromMinutes(m float64) TimeSpan { return TimeSpan{days: m / 1440} }
func FromSeconds(s float64) TimeSpan { return TimeSpan{days: s / secondsPerDay} }

// FromDuration converts a time.Duration.
func FromDuration(d time.Duration) TimeSpan { return FromSeconds(d.Seconds()) }

func (s TimeSpan) Days() float64    { return s.days }
func (s TimeSpan) Hours() float64   { return s.days * 24 }
func (s TimeSpan) Minutes() float64 { return s.days * 1440 }
func (s TimeSpan) Seconds() float64 { return s.days * secondsPerDay }

func (s TimeSpan) Add(o TimeSpan) TimeSpan  { return TimeSpan{days: s.days + o.days} }
func (s TimeSpan) Sub(o TimeSpan) TimeSpan  { return TimeSpan{days: s.days - o.days} }
func (s TimeSpan) Scale(k float64) TimeSpan { return TimeSpan{days: s.days * k} }
func (s TimeSpan) Duration() time.Duration  { return time.Duration(math.Round(s.Seconds() * 1e9)) }
