package jma

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/lox/jmaetrn/internal/models"
)

// Positions in the viewPoint(...) argument list.
const (
	argCategory = iota
	argStationID
	argName
	argNameKana
	argLatDeg
	argLatMin
	argLonDeg
	argLonMin
	argElevation
	argPrecipitation
	argTemperature
	argHumidity
	argWind
	argSunshine
	argSnowfall
	argStartYear
	argStartMonth
	argStartDay
	argHistory // first of zero or more free-text annotations

	minArgs = argHistory
)

// NoStartYear is the placeholder year for stations without a recorded start date.
const NoStartYear = "9999"

var historyPattern = regexp.MustCompile(`^(\d{4})年(\d+)月(\d+)日までの地点名「(.+?)」`)

// TokenizePayload splits a marker's event-handler text into its arguments.
// The javascript:viewPoint( ... ); wrapper is optional. Arguments are
// single-quoted or bare; quoted arguments may contain commas and \'.
func TokenizePayload(payload string) ([]string, error) {
	s := strings.TrimSpace(payload)
	s = strings.TrimPrefix(s, "javascript:")
	if i := strings.Index(s, "viewPoint("); i >= 0 {
		s = s[i+len("viewPoint("):]
		s = strings.TrimSpace(s)
		s = strings.TrimSuffix(s, ";")
		s = strings.TrimSpace(s)
		if !strings.HasSuffix(s, ")") {
			return nil, fmt.Errorf("unterminated viewPoint call")
		}
		s = s[:len(s)-1]
	}
	if strings.TrimSpace(s) == "" {
		return nil, fmt.Errorf("empty argument list")
	}

	var tokens []string
	pos := 0
	for {
		for pos < len(s) && s[pos] == ' ' {
			pos++
		}

		var tok string
		if pos < len(s) && s[pos] == '\'' {
			var b strings.Builder
			pos++
			closed := false
			for pos < len(s) {
				c := s[pos]
				if c == '\\' && pos+1 < len(s) {
					b.WriteByte(s[pos+1])
					pos += 2
					continue
				}
				if c == '\'' {
					closed = true
					pos++
					break
				}
				b.WriteByte(c)
				pos++
			}
			if !closed {
				return nil, fmt.Errorf("unterminated quote in argument %d", len(tokens))
			}
			for pos < len(s) && s[pos] == ' ' {
				pos++
			}
			if pos < len(s) && s[pos] != ',' {
				return nil, fmt.Errorf("unexpected %q after argument %d", s[pos], len(tokens))
			}
			tok = b.String()
		} else {
			end := strings.IndexByte(s[pos:], ',')
			if end < 0 {
				end = len(s) - pos
			}
			tok = strings.TrimSpace(s[pos : pos+end])
			if strings.ContainsRune(tok, '\'') {
				return nil, fmt.Errorf("stray quote in argument %d", len(tokens))
			}
			pos += end
		}

		tokens = append(tokens, tok)
		if pos >= len(s) {
			return tokens, nil
		}
		pos++ // comma
	}
}

// DecodeStation turns a station marker into a Station. It does no I/O.
// Failures are *DecodeError.
func DecodeStation(m Marker) (models.Station, error) {
	fail := func(reason string, err error) (models.Station, error) {
		return models.Station{}, &DecodeError{Link: m.Link, Payload: m.Payload, Reason: reason, Err: err}
	}

	regionID, ok := RegionIDFromLink(m.Link)
	if !ok {
		return fail("link has no region id", nil)
	}

	args, err := TokenizePayload(m.Payload)
	if err != nil {
		return fail("tokenize payload", err)
	}
	st, err := stationFromArgs(args)
	if err != nil {
		return fail("decode arguments", err)
	}
	st.RegionID = regionID
	return st, nil
}

func stationFromArgs(args []string) (models.Station, error) {
	if len(args) < minArgs {
		return models.Station{}, fmt.Errorf("got %d arguments, want at least %d", len(args), minArgs)
	}

	var st models.Station
	p := argParser{args: args}

	switch cat := models.Category(args[argCategory]); cat {
	case models.CategoryMajor, models.CategoryMinor:
		st.Category = cat
	default:
		return st, fmt.Errorf("unknown category %q", args[argCategory])
	}

	st.StationID = p.atoi(argStationID)
	st.Name = args[argName]
	st.NameKana = args[argNameKana]
	st.Latitude = DMSToDegrees(p.atof(argLatDeg), p.atof(argLatMin), 0)
	st.Longitude = DMSToDegrees(p.atof(argLonDeg), p.atof(argLonMin), 0)
	st.Elevation = p.atof(argElevation)
	st.Sensors = models.Sensors{
		Precipitation: p.atoi(argPrecipitation),
		Temperature:   p.atoi(argTemperature),
		Humidity:      p.atoi(argHumidity),
		Wind:          p.atoi(argWind),
		Sunshine:      p.atoi(argSunshine),
		Snowfall:      p.atoi(argSnowfall),
	}

	if args[argStartYear] != NoStartYear {
		st.ObservedFrom = p.date(argStartYear, argStartMonth, argStartDay)
	}
	if p.err != nil {
		return models.Station{}, p.err
	}

	st.NameHistory = ParseNameHistory(args[argHistory:])
	return st, nil
}

// ParseNameHistory extracts "named X until date" annotations, ignoring anything else.
func ParseNameHistory(annotations []string) []models.NameChange {
	var history []models.NameChange
	for _, a := range annotations {
		m := historyPattern.FindStringSubmatch(strings.TrimSpace(a))
		if m == nil {
			continue
		}
		y, _ := strconv.Atoi(m[1])
		mo, _ := strconv.Atoi(m[2])
		d, _ := strconv.Atoi(m[3])
		retired, ok := validDate(y, mo, d)
		if !ok {
			continue
		}
		history = append(history, models.NameChange{Name: m[4], Retired: retired})
	}
	return history
}

// DMSToDegrees converts degrees, minutes and seconds to decimal degrees.
func DMSToDegrees(deg, minutes, seconds float64) float64 {
	return deg + minutes/60 + seconds/3600
}

// argParser records the first conversion failure so extraction reads linearly.
type argParser struct {
	args []string
	err  error
}

func (p *argParser) atoi(i int) int {
	if p.err != nil {
		return 0
	}
	v, err := strconv.Atoi(strings.TrimSpace(p.args[i]))
	if err != nil {
		p.err = fmt.Errorf("argument %d: %w", i, err)
	}
	return v
}

func (p *argParser) atof(i int) float64 {
	if p.err != nil {
		return 0
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(p.args[i]), 64)
	if err != nil {
		p.err = fmt.Errorf("argument %d: %w", i, err)
	}
	return v
}

func (p *argParser) date(yi, mi, di int) time.Time {
	y, m, d := p.atoi(yi), p.atoi(mi), p.atoi(di)
	if p.err != nil {
		return time.Time{}
	}
	t, ok := validDate(y, m, d)
	if !ok {
		p.err = fmt.Errorf("invalid start date %04d-%02d-%02d", y, m, d)
	}
	return t
}

// validDate rejects dates time.Date would silently normalize.
func validDate(y, m, d int) (time.Time, bool) {
	t := time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
	if t.Year() != y || int(t.Month()) != m || t.Day() != d {
		return time.Time{}, false
	}
	return t, true
}
