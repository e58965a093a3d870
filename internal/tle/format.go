package tle

import (
	"fmt"
	"math"
	"strings"

	"github.com/star/orbitscreen/internal/elements"
)

// Format renders e as two element lines with checksums. The Line1/Line2 fields of e
// are ignored. Values that do not fit the fixed columns are rejected.
func Format(e Entry) (string, string, error) {
	if e.SatelliteID < 0 || e.SatelliteID > 99999 {
		return "", "", fmt.Errorf("satellite number %d does not fit five digits", e.SatelliteID)
	}
	if e.MeanMotion <= 0 || e.MeanMotion >= 100 {
		return "", "", fmt.Errorf("mean motion %v out of range", e.MeanMotion)
	}
	if e.Eccentricity < 0 || e.Eccentricity >= 1 {
		return "", "", fmt.Errorf("eccentricity %v out of range", e.Eccentricity)
	}
	if math.Abs(e.MeanMotionDot) >= 1 {
		return "", "", fmt.Errorf("mean motion dot %v out of range", e.MeanMotionDot)
	}

	class := e.Classification
	if class == 0 || class == ' ' {
		class = 'U'
	}
	designator := e.Designator
	if len(designator) > 8 {
		designator = designator[:8]
	}
	yy, doy := e.Epoch.TLEComponents()

	line1 := fmt.Sprintf("1 %05d%c %-8s %02d%012.8f %s %s %s 0 %4d",
		e.SatelliteID, class, designator, yy, doy,
		formatDot(e.MeanMotionDot), formatExp(e.MeanMotionDDot), formatExp(e.BStar),
		e.ElementSetNumber%10000)

	ecc := int(math.Round(e.Eccentricity * 1e7))
	if ecc > 9999999 {
		ecc = 9999999
	}
	line2 := fmt.Sprintf("2 %05d %8.4f %8.4f %07d %8.4f %8.4f %11.8f%5d",
		e.SatelliteID,
		elements.WrapDegrees360(e.Inclination), elements.WrapDegrees360(e.RAAN), ecc,
		elements.WrapDegrees360(e.ArgPerigee), elements.WrapDegrees360(e.MeanAnomaly),
		e.MeanMotion, e.RevNumber%100000)

	if len(line1) != LineLength-1 || len(line2) != LineLength-1 {
		return "", "", fmt.Errorf("formatted lines have widths %d and %d", len(line1)+1, len(line2)+1)
	}
	return withChecksum(line1), withChecksum(line2), nil
}

func withChecksum(line string) string {
	return fmt.Sprintf("%s%d", line, Checksum(line))
}

// formatDot renders the first derivative field, e.g. " .00016717" or "-.00000123".
func formatDot(v float64) string {
	sign := " "
	if v < 0 {
		sign = "-"
	}
	return sign + strings.TrimPrefix(fmt.Sprintf("%.8f", math.Abs(v)), "0")
}

// formatExp renders the assumed-decimal exponent field, e.g. " 10270-3".
func formatExp(v float64) string {
	if v == 0 || math.IsNaN(v) {
		return " 00000-0"
	}
	sign := byte(' ')
	if v < 0 {
		sign = '-'
	}
	a := math.Abs(v)
	ex := int(math.Floor(math.Log10(a))) + 1
	m := int(math.Round(a / math.Pow10(ex) * 1e5))
	if m >= 100000 {
		m /= 10
		ex++
	}
	switch {
	case ex > 9:
		m, ex = 99999, 9
	case ex < -9:
		return " 00000-0"
	}
	exSign := byte('+')
	if ex < 0 {
		exSign = '-'
	}
	return fmt.Sprintf("%c%05d%c%d", sign, m, exSign, abs(ex))
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
