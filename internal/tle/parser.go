package tle

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"github.com/star/orbitscreen/internal/epoch"
)

// LineLength is the fixed width of both element lines.
const LineLength = 69

// Parse reads 2-line or 3-line NORAD TLE text from r and returns parsed entries.
// A name line may carry a leading "0 ". Malformed entries are skipped with a warning log.
func Parse(r io.Reader, logger *slog.Logger) ([]Entry, error) {
	scanner := bufio.NewScanner(r)
	var lines []string
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r\n ")
		if line != "" {
			lines = append(lines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading TLE data: %w", err)
	}

	var entries []Entry
	for i := 0; i < len(lines); {
		var name, line1, line2 string
		switch {
		case i+1 < len(lines) && isLine(lines[i], '1') && isLine(lines[i+1], '2'):
			line1, line2 = lines[i], lines[i+1]
			i += 2
		case i+2 < len(lines) && isLine(lines[i+1], '1') && isLine(lines[i+2], '2'):
			name = strings.TrimPrefix(lines[i], "0 ")
			line1, line2 = lines[i+1], lines[i+2]
			i += 3
		default:
			logger.Warn("skipping malformed TLE line", "line_index", i, "line", lines[i])
			i++
			continue
		}

		e, err := ParseLines(name, line1, line2)
		if err != nil {
			logger.Warn("skipping TLE entry", "name", name, "error", err)
			continue
		}
		entries = append(entries, e)
	}

	return entries, nil
}

func isLine(s string, n byte) bool {
	return len(s) >= 2 && s[0] == n && s[1] == ' '
}

// ParseLines decodes one element set. Both lines must be exactly LineLength characters,
// carry matching satellite numbers and valid checksums.
func ParseLines(name, line1, line2 string) (Entry, error) {
	if err := validateLine(line1, '1'); err != nil {
		return Entry{}, err
	}
	if err := validateLine(line2, '2'); err != nil {
		return Entry{}, err
	}

	p := fieldParser{}
	e := Entry{
		Name:           strings.TrimSpace(name),
		SatelliteID:    p.atoi(line1[2:7], "satellite number"),
		Classification: line1[7],
		Designator:     strings.TrimSpace(line1[9:17]),
		MeanMotionDot:  p.atof(line1[33:43], "mean motion dot"),
		MeanMotionDDot: p.exp(line1[44:52], "mean motion ddot"),
		BStar:          p.exp(line1[53:61], "bstar"),
		Inclination:    p.atof(line2[8:16], "inclination"),
		RAAN:           p.atof(line2[17:25], "raan"),
		Eccentricity:   p.atof("."+strings.TrimSpace(line2[26:33]), "eccentricity"),
		ArgPerigee:     p.atof(line2[34:42], "argument of perigee"),
		MeanAnomaly:    p.atof(line2[43:51], "mean anomaly"),
		MeanMotion:     p.atof(line2[52:63], "mean motion"),
		Line1:          line1,
		Line2:          line2,
	}
	if s := strings.TrimSpace(line1[64:68]); s != "" {
		e.ElementSetNumber = p.atoi(s, "element set number")
	}
	if s := strings.TrimSpace(line2[63:68]); s != "" {
		e.RevNumber = p.atoi(s, "revolution number")
	}
	yy := p.atoi(line1[18:20], "epoch year")
	doy := p.atof(line1[20:32], "epoch day")
	if p.err != nil {
		return Entry{}, p.err
	}

	if id2 := strings.TrimSpace(line2[2:7]); id2 != strings.TrimSpace(line1[2:7]) {
		return Entry{}, fmt.Errorf("satellite number mismatch: %q vs %q", strings.TrimSpace(line1[2:7]), id2)
	}
	if doy < 1 || doy >= 367 {
		return Entry{}, fmt.Errorf("epoch day %v out of range", doy)
	}
	if e.MeanMotion <= 0 {
		return Entry{}, fmt.Errorf("mean motion %v must be positive", e.MeanMotion)
	}
	e.Epoch = epoch.FromTLE(yy, doy)

	return e, nil
}

func validateLine(line string, n byte) error {
	if len(line) != LineLength {
		return fmt.Errorf("line %c: length %d, want %d", n, len(line), LineLength)
	}
	if line[0] != n {
		return fmt.Errorf("line %c: starts with %q", n, line[0])
	}
	want := Checksum(line)
	if got := int(line[68] - '0'); got != want {
		return fmt.Errorf("line %c: checksum %c, want %d", n, line[68], want)
	}
	return nil
}

// Checksum returns the modulo-10 checksum over the first 68 characters: digits count
// their value, '-' counts one, everything else zero.
func Checksum(line string) int {
	sum := 0
	for i := 0; i < len(line) && i < LineLength-1; i++ {
		switch c := line[i]; {
		case c >= '0' && c <= '9':
			sum += int(c - '0')
		case c == '-':
			sum++
		}
	}
	return sum % 10
}

// fieldParser records the first failure so a line can be decoded in one pass.
type fieldParser struct {
	err error
}

func (p *fieldParser) fail(field, raw string, err error) {
	if p.err == nil {
		p.err = fmt.Errorf("invalid %s %q: %w", field, raw, err)
	}
}

func (p *fieldParser) atoi(s, field string) int {
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		p.fail(field, s, err)
	}
	return v
}

func (p *fieldParser) atof(s, field string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		p.fail(field, s, err)
	}
	return v
}

// exp decodes the assumed-decimal exponent notation " 12345-3" = 0.12345e-3.
func (p *fieldParser) exp(s, field string) float64 {
	t := strings.TrimSpace(s)
	if t == "" {
		return 0
	}
	sign := 1.0
	switch t[0] {
	case '-':
		sign = -1
		t = t[1:]
	case '+':
		t = t[1:]
	}
	if len(t) < 3 {
		p.fail(field, s, fmt.Errorf("too short"))
		return 0
	}
	mant, err := strconv.ParseFloat("."+strings.TrimSpace(t[:len(t)-2]), 64)
	if err != nil {
		p.fail(field, s, err)
		return 0
	}
	ex, err := strconv.Atoi(t[len(t)-2:])
	if err != nil {
		p.fail(field, s, err)
		return 0
	}
	return sign * mant * math.Pow10(ex)
}
