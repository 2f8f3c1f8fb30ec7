package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Category distinguishes major ("s") and minor ("a") station classes.
type Category string

const (
	CategoryMajor Category = "s"
	CategoryMinor Category = "a"
)

// Sensor flags in the order they appear in the marker payload.
type Sensors struct {
	Precipitation int
	Temperature   int
	Humidity      int
	Wind          int // 1 or 2 on some stations, meaning unclear
	Sunshine      int
	Snowfall      int
}

// NameChange records a name the station was known by until Retired.
type NameChange struct {
	Name    string
	Retired time.Time
}

// Station is one physical observation point. Only (RegionID, StationID) is unique.
type Station struct {
	RegionID  int
	StationID int
	Category  Category
	Name      string
	NameKana  string
	Latitude  float64
	Longitude float64
	Elevation float64
	Sensors   Sensors

	// ObservedFrom is zero when the source carries no start date.
	ObservedFrom time.Time
	NameHistory  []NameChange
}

// Key returns the (region, station) identity.
func (s Station) Key() StationKey {
	return StationKey{RegionID: s.RegionID, StationID: s.StationID}
}

// HasStartDate reports whether an observation start date was recorded.
func (s Station) HasStartDate() bool {
	return !s.ObservedFrom.IsZero()
}

type StationKey struct {
	RegionID  int
	StationID int
}

func (k StationKey) String() string {
	return fmt.Sprintf("%d/%d", k.RegionID, k.StationID)
}

// Granularity selects the time-series page kind.
type Granularity string

const (
	Daily  Granularity = "daily"
	Hourly Granularity = "hourly"
)

// Valid reports whether g is daily or hourly.
func (g Granularity) Valid() bool {
	return g == Daily || g == Hourly
}

// DailyFields are the measurement columns of a daily page, after the day column.
var DailyFields = []string{
	"atm_onsite",
	"atm_sea_level",
	"precip_total",
	"precip_max_1h",
	"precip_max_10m",
	"temp_avg",
	"temp_max",
	"temp_min",
	"hum_avg",
	"hum_min",
	"wind_speed_avg",
	"wind_speed_max",
	"dir_wind_speed_max",
	"max_instantaneous_wind",
	"dir_max_instantaneous_wind",
	"hour_of_sunshine",
	"snowfall",
	"deepest_snow",
	"general_cond_daytime",
	"general_cond_nighttime",
}

// HourlyFields are the measurement columns of an hourly page, after the hour column.
var HourlyFields = []string{
	"atm_onsite",
	"atm_sea_level",
	"precip",
	"temp",
	"dew_point_temp",
	"vapor_pressure",
	"hum",
	"wind_speed",
	"dir_wind",
	"hour_of_sunshine",
	"snowfall",
	"fallen_snow",
	"deepest_snow",
	"weather_symbol",
	"cloud_amt",
	"visibility",
}

// Fields returns the measurement columns for g, or nil if g is invalid.
func (g Granularity) Fields() []string {
	switch g {
	case Daily:
		return DailyFields
	case Hourly:
		return HourlyFields
	default:
		return nil
	}
}

// Columns returns the full output header: date, point_num, then Fields.
func (g Granularity) Columns() []string {
	fields := g.Fields()
	cols := make([]string, 0, len(fields)+2)
	cols = append(cols, "date", "point_num")
	return append(cols, fields...)
}

// TimeLayout is the timestamp format used when writing rows.
func (g Granularity) TimeLayout() string {
	if g == Hourly {
		return "2006-01-02 15:04:05"
	}
	return "2006-01-02"
}

// Observation is one row of a station time series.
type Observation struct {
	Time      time.Time
	StationID int
	Values    []Value
}

// Get returns the value of the named field, or "" if absent.
func (o Observation) Get(g Granularity, field string) Value {
	for i, f := range g.Fields() {
		if f == field && i < len(o.Values) {
			return o.Values[i]
		}
	}
	return ""
}

// Strings returns the raw cell texts.
func (o Observation) Strings() []string {
	out := make([]string, len(o.Values))
	for i, v := range o.Values {
		out[i] = string(v)
	}
	return out
}

// Quality describes the mark JMA appends to a cell.
type Quality int

const (
	QualityNormal       Quality = iota
	QualityQuasiNormal          // ")"
	QualityInsufficient         // "]"
	QualitySuspect              // "#"
	QualityMissing              // "×", "///", "--", empty
)

func (q Quality) String() string {
	switch q {
	case QualityNormal:
		return "normal"
	case QualityQuasiNormal:
		return "quasi_normal"
	case QualityInsufficient:
		return "insufficient"
	case QualitySuspect:
		return "suspect"
	default:
		return "missing"
	}
}

// Value is the raw text of one table cell.
type Value string

// Quality classifies the value's trailing mark.
func (v Value) Quality() Quality {
	s := strings.TrimSpace(string(v))
	switch {
	case s == "", s == "×", s == "///", s == "--", s == "-":
		return QualityMissing
	case strings.HasSuffix(s, ")"):
		return QualityQuasiNormal
	case strings.HasSuffix(s, "]"):
		return QualityInsufficient
	case strings.HasSuffix(s, "#"):
		return QualitySuspect
	default:
		return QualityNormal
	}
}

// Float parses the numeric part of the value with quality marks removed.
func (v Value) Float() (float64, bool) {
	if v.Quality() == QualityMissing {
		return 0, false
	}
	s := strings.TrimSpace(string(v))
	s = strings.TrimRight(s, ")]# ")
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}
