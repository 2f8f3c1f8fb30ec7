package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	parquet "github.com/parquet-go/parquet-go"

	"github.com/lox/jmaetrn/internal/models"
)

// Format selects the series file encoding.
type Format string

const (
	FormatCSV     Format = "csv"
	FormatParquet Format = "parquet"
)

// Valid reports whether f is a supported format.
func (f Format) Valid() bool {
	return f == FormatCSV || f == FormatParquet
}

// SeriesFileName names the output file for one station and date range.
func SeriesFileName(stationID int, from, to time.Time, f Format) string {
	return fmt.Sprintf("weather_point%05d_%s_%s.%s",
		stationID, from.Format(dateLayout), to.Format(dateLayout), f)
}

// SeriesPath joins dir with SeriesFileName.
func SeriesPath(dir string, stationID int, from, to time.Time, f Format) string {
	return filepath.Join(dir, SeriesFileName(stationID, from, to, f))
}

// WriteSeries writes observations in the given format, atomically.
func WriteSeries(path string, rows []models.Observation, g models.Granularity, f Format) error {
	if !g.Valid() {
		return fmt.Errorf("write series: invalid granularity %q", g)
	}
	return writeAtomic(path, func(file *os.File) error {
		switch f {
		case FormatCSV:
			return EncodeSeriesCSV(file, rows, g)
		case FormatParquet:
			return EncodeSeriesParquet(file, rows, g)
		default:
			return fmt.Errorf("write series: unknown format %q", f)
		}
	})
}

// EncodeSeriesCSV writes one row per observation under g.Columns().
func EncodeSeriesCSV(w io.Writer, rows []models.Observation, g models.Granularity) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(g.Columns()); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	width := len(g.Fields())
	layout := g.TimeLayout()
	record := make([]string, width+2)
	for _, obs := range rows {
		record[0] = obs.Time.Format(layout)
		record[1] = strconv.Itoa(obs.StationID)
		for i := 0; i < width; i++ {
			record[i+2] = ""
			if i < len(obs.Values) {
				record[i+2] = string(obs.Values[i])
			}
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write row %s: %w", record[0], err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// SeriesRecord is the long-format Parquet row: one cell per record.
type SeriesRecord struct {
	Time     int64    `parquet:"time"`
	PointNum int32    `parquet:"point_num"`
	Field    string   `parquet:"field,dict"`
	Raw      string   `parquet:"raw"`
	Value    *float64 `parquet:"value,optional"`
	Quality  string   `parquet:"quality,dict"`
}

// SeriesRecords flattens observations into long-format records.
func SeriesRecords(rows []models.Observation, g models.Granularity) []SeriesRecord {
	fields := g.Fields()
	out := make([]SeriesRecord, 0, len(rows)*len(fields))
	for _, obs := range rows {
		for _, field := range fields {
			v := obs.Get(g, field)
			rec := SeriesRecord{
				Time:     obs.Time.UnixMilli(),
				PointNum: int32(obs.StationID),
				Field:    field,
				Raw:      string(v),
				Quality:  v.Quality().String(),
			}
			if f, ok := v.Float(); ok {
				rec.Value = &f
			}
			out = append(out, rec)
		}
	}
	return out
}

// EncodeSeriesParquet writes observations as long-format Parquet.
func EncodeSeriesParquet(w io.Writer, rows []models.Observation, g models.Granularity) error {
	pw := parquet.NewGenericWriter[SeriesRecord](w)
	if _, err := pw.Write(SeriesRecords(rows, g)); err != nil {
		pw.Close()
		return fmt.Errorf("write parquet rows: %w", err)
	}
	if err := pw.Close(); err != nil {
		return fmt.Errorf("close parquet writer: %w", err)
	}
	return nil
}
