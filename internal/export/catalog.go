package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/lox/jmaetrn/internal/jma"
	"github.com/lox/jmaetrn/internal/models"
	"github.com/lox/jmaetrn/internal/regions"
)

// CatalogFile is the catalog file name inside the output directory.
const CatalogFile = "obs_point_data.csv"

const dateLayout = "2006-01-02"

// CatalogHeader is the column order of the catalog file.
var CatalogHeader = []string{
	"pref_name", "area_name", "symbol", "area_num", "point_num", "point_name", "point_name_kana",
	"lat", "lon", "elevation",
	"obs_precipitation", "obs_temperature", "obs_humidity", "obs_wind", "obs_sunshine", "obs_snowfall",
	"obs_from", "name_change_history",
}

// CatalogRow is a station annotated with its area and prefecture labels.
type CatalogRow struct {
	PrefName string
	AreaName string
	models.Station
}

// AssembleCatalog labels each station with the name of its region and, for
// member areas of the shared prefecture, the prefecture name.
func AssembleCatalog(stations []models.Station, regionList []jma.Region, table regions.Table) []CatalogRow {
	names := make(map[int]string, len(regionList))
	for _, r := range regionList {
		if r.Known() {
			names[r.ID] = r.Name
		}
	}

	rows := make([]CatalogRow, 0, len(stations))
	for _, st := range stations {
		area := names[st.RegionID]
		rows = append(rows, CatalogRow{
			PrefName: table.PrefectureOf(area),
			AreaName: area,
			Station:  st,
		})
	}
	return rows
}

// WriteCatalog writes the catalog CSV atomically.
func WriteCatalog(path string, rows []CatalogRow) error {
	return writeAtomic(path, func(f *os.File) error {
		return EncodeCatalog(f, rows)
	})
}

// EncodeCatalog writes the catalog as CSV with a header row.
func EncodeCatalog(w io.Writer, rows []CatalogRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CatalogHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, r := range rows {
		history, err := encodeHistory(r.NameHistory)
		if err != nil {
			return err
		}
		obsFrom := ""
		if r.HasStartDate() {
			obsFrom = r.ObservedFrom.Format(dateLayout)
		}
		record := []string{
			r.PrefName,
			r.AreaName,
			string(r.Category),
			strconv.Itoa(r.RegionID),
			strconv.Itoa(r.StationID),
			r.Name,
			r.NameKana,
			formatFloat(r.Latitude),
			formatFloat(r.Longitude),
			formatFloat(r.Elevation),
			strconv.Itoa(r.Sensors.Precipitation),
			strconv.Itoa(r.Sensors.Temperature),
			strconv.Itoa(r.Sensors.Humidity),
			strconv.Itoa(r.Sensors.Wind),
			strconv.Itoa(r.Sensors.Sunshine),
			strconv.Itoa(r.Sensors.Snowfall),
			obsFrom,
			history,
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write station %s: %w", r.Key(), err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// LoadCatalog reads a catalog file written by WriteCatalog.
func LoadCatalog(path string) ([]CatalogRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer f.Close()
	return DecodeCatalog(f)
}

// DecodeCatalog parses catalog CSV, locating columns by header name.
func DecodeCatalog(r io.Reader) ([]CatalogRow, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, h := range header {
		col[h] = i
	}
	for _, h := range CatalogHeader {
		if _, ok := col[h]; !ok {
			return nil, fmt.Errorf("catalog is missing column %q", h)
		}
	}

	var rows []CatalogRow
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read line %d: %w", line, err)
		}
		row, err := decodeCatalogRecord(rec, col)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func decodeCatalogRecord(rec []string, col map[string]int) (CatalogRow, error) {
	get := func(name string) string { return rec[col[name]] }
	p := fieldParser{get: get}

	row := CatalogRow{
		PrefName: get("pref_name"),
		AreaName: get("area_name"),
		Station: models.Station{
			Category:  models.Category(get("symbol")),
			RegionID:  p.int("area_num"),
			StationID: p.int("point_num"),
			Name:      get("point_name"),
			NameKana:  get("point_name_kana"),
			Latitude:  p.float("lat"),
			Longitude: p.float("lon"),
			Elevation: p.float("elevation"),
			Sensors: models.Sensors{
				Precipitation: p.int("obs_precipitation"),
				Temperature:   p.int("obs_temperature"),
				Humidity:      p.int("obs_humidity"),
				Wind:          p.int("obs_wind"),
				Sunshine:      p.int("obs_sunshine"),
				Snowfall:      p.int("obs_snowfall"),
			},
		},
	}
	if s := get("obs_from"); s != "" {
		t, err := time.Parse(dateLayout, s)
		if err != nil {
			return row, fmt.Errorf("obs_from: %w", err)
		}
		row.ObservedFrom = t
	}
	if p.err != nil {
		return row, p.err
	}

	history, err := decodeHistory(get("name_change_history"))
	if err != nil {
		return row, err
	}
	row.NameHistory = history
	return row, nil
}

// History is stored as a JSON object of previous name -> retirement date.
func encodeHistory(history []models.NameChange) (string, error) {
	if len(history) == 0 {
		return "", nil
	}
	m := make(map[string]string, len(history))
	for _, h := range history {
		m[h.Name] = h.Retired.Format(dateLayout)
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("encode name history: %w", err)
	}
	return string(b), nil
}

func decodeHistory(s string) ([]models.NameChange, error) {
	if s == "" {
		return nil, nil
	}
	var m map[string]string
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		return nil, fmt.Errorf("name_change_history: %w", err)
	}
	history := make([]models.NameChange, 0, len(m))
	for name, d := range m {
		t, err := time.Parse(dateLayout, d)
		if err != nil {
			return nil, fmt.Errorf("name_change_history %q: %w", name, err)
		}
		history = append(history, models.NameChange{Name: name, Retired: t})
	}
	sort.Slice(history, func(i, j int) bool {
		return history[i].Retired.After(history[j].Retired)
	})
	return history, nil
}

type fieldParser struct {
	get func(string) string
	err error
}

func (p *fieldParser) int(name string) int {
	if p.err != nil {
		return 0
	}
	v, err := strconv.Atoi(p.get(name))
	if err != nil {
		p.err = fmt.Errorf("%s: %w", name, err)
	}
	return v
}

func (p *fieldParser) float(name string) float64 {
	if p.err != nil {
		return 0
	}
	v, err := strconv.ParseFloat(p.get(name), 64)
	if err != nil {
		p.err = fmt.Errorf("%s: %w", name, err)
	}
	return v
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
