package jma

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/lox/jmaetrn/internal/htmlutil"
	"github.com/lox/jmaetrn/internal/metrics"
	"github.com/lox/jmaetrn/internal/models"
)

const dataTableSelector = "table.data2_s"

// FetchSeries retrieves every planned page for one station and returns the
// rows whose timestamps fall in [from, to], ascending. Pages without a data
// table contribute no rows. A transport failure aborts the whole request and
// no partial result is returned.
func (c *Client) FetchSeries(ctx context.Context, regionID, stationID int, from, to time.Time, g models.Granularity) ([]models.Observation, error) {
	pages, err := PlanPages(from, to, g)
	if err != nil {
		return nil, err
	}

	var rows []models.Observation
	for _, page := range pages {
		url := seriesPageURL(c.baseURL, g, regionID, stationID, page)
		doc, err := c.fetchDocument(ctx, url)
		if err != nil {
			return nil, fmt.Errorf("fetch %s page %s for station %d/%d: %w", g, page.Format("2006-01-02"), regionID, stationID, err)
		}

		pageRows, err := parseSeriesTable(doc, page, g)
		if errors.Is(err, errMissingTable) {
			metrics.MissingTablesTotal.WithLabelValues(string(g)).Inc()
			c.log.Debug("no data table", "url", url)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", url, err)
		}
		rows = append(rows, pageRows...)
	}

	out := assembleSeries(rows, stationID, from, to)
	metrics.ObservationsCollected.WithLabelValues(string(g)).Add(float64(len(out)))
	return out, nil
}

// ParseSeriesTable reads the data table of one series page. page supplies
// the year and month (daily) or the full date (hourly). A page without a
// table yields no rows and no error.
func ParseSeriesTable(r io.Reader, page time.Time, g models.Granularity) ([]models.Observation, error) {
	if !g.Valid() {
		return nil, ErrInvalidGranularity
	}
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	rows, err := parseSeriesTable(doc, page, g)
	if errors.Is(err, errMissingTable) {
		return nil, nil
	}
	return rows, err
}

func parseSeriesTable(doc *goquery.Document, page time.Time, g models.Granularity) ([]models.Observation, error) {
	table := doc.Find(dataTableSelector).First()
	if table.Length() == 0 {
		return nil, errMissingTable
	}

	fields := g.Fields()
	var rows []models.Observation
	var parseErr error

	table.Find("tr").EachWithBreak(func(_ int, tr *goquery.Selection) bool {
		cells := tr.Find("td")
		if cells.Length() == 0 {
			return true // header row
		}

		first, err := cells.First().Html()
		if err != nil {
			parseErr = err
			return false
		}
		n, err := strconv.Atoi(htmlutil.CellText(first))
		if err != nil {
			return true // footer or summary row
		}

		ts, ok := rowTime(page, n, g)
		if !ok {
			return true
		}

		values := make([]models.Value, len(fields))
		cells.Slice(1, cells.Length()).EachWithBreak(func(i int, td *goquery.Selection) bool {
			if i >= len(values) {
				return false
			}
			inner, err := td.Html()
			if err != nil {
				parseErr = err
				return false
			}
			values[i] = models.Value(htmlutil.CellText(inner))
			return true
		})
		if parseErr != nil {
			return false
		}

		rows = append(rows, models.Observation{Time: ts, Values: values})
		return true
	})
	if parseErr != nil {
		return nil, fmt.Errorf("read table cell: %w", parseErr)
	}
	return rows, nil
}

// rowTime combines the first column with the page date. Daily pages number
// days of the month; hourly pages number hours 1..24, stored as 0..23.
func rowTime(page time.Time, n int, g models.Granularity) (time.Time, bool) {
	switch g {
	case models.Daily:
		t, ok := validDate(page.Year(), int(page.Month()), n)
		return t, ok
	case models.Hourly:
		if n < 1 || n > 24 {
			return time.Time{}, false
		}
		return time.Date(page.Year(), page.Month(), page.Day(), n-1, 0, 0, 0, time.UTC), true
	default:
		return time.Time{}, false
	}
}

// assembleSeries tags rows with the station, orders them by time and keeps
// only the requested window. Padding pages are dropped here.
func assembleSeries(rows []models.Observation, stationID int, from, to time.Time) []models.Observation {
	start, end := DateOnly(from), windowEnd(to)

	out := make([]models.Observation, 0, len(rows))
	for _, r := range rows {
		if r.Time.Before(start) || !r.Time.Before(end) {
			continue
		}
		r.StationID = stationID
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Time.Before(out[j].Time)
	})
	return out
}
