package jma

import (
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"

	"github.com/PuerkitoBio/goquery"

	"github.com/lox/jmaetrn/internal/metrics"
	"github.com/lox/jmaetrn/internal/models"
)

// UnknownRegionID marks a region marker whose link carried no decodable id.
const UnknownRegionID = -1

var regionIDPattern = regexp.MustCompile(`prec_no=(\d+)&`)

// Region is one navigable marker on the top-level map.
type Region struct {
	Name string
	ID   int
}

// Known reports whether the region id was decoded from its link.
func (r Region) Known() bool {
	return r.ID != UnknownRegionID
}

// Marker is one station hot-zone on a region map.
type Marker struct {
	Name    string // alt text
	Link    string // href
	Payload string // onmouseover handler
}

// RegionIDFromLink extracts the prec_no parameter from a navigation link.
func RegionIDFromLink(link string) (int, bool) {
	m := regionIDPattern.FindStringSubmatch(link)
	if m == nil {
		return 0, false
	}
	id, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return id, true
}

// DiscoverRegions fetches the top-level map and returns its regions in page order.
func (c *Client) DiscoverRegions(ctx context.Context) ([]Region, error) {
	doc, err := c.fetchDocument(ctx, regionMapURL(c.baseURL))
	if err != nil {
		return nil, fmt.Errorf("discover regions: %w", err)
	}
	return parseRegions(doc), nil
}

// ParseRegions reads regions from a top-level map document.
func ParseRegions(r io.Reader) ([]Region, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return parseRegions(doc), nil
}

// parseRegions keeps first-seen order; a repeated name takes the later id,
// matching a name->id mapping.
func parseRegions(doc *goquery.Document) []Region {
	var regions []Region
	index := make(map[string]int)

	doc.Find("area").Each(func(_ int, s *goquery.Selection) {
		name, _ := s.Attr("alt")
		href, _ := s.Attr("href")

		id, ok := RegionIDFromLink(href)
		if !ok {
			id = UnknownRegionID
		}

		if i, seen := index[name]; seen {
			regions[i].ID = id
			return
		}
		index[name] = len(regions)
		regions = append(regions, Region{Name: name, ID: id})
	})
	return regions
}

// DiscoverStations fetches one region page and returns its station markers,
// deduplicated by link in first-seen order.
func (c *Client) DiscoverStations(ctx context.Context, regionID int) ([]Marker, error) {
	doc, err := c.fetchDocument(ctx, regionPageURL(c.baseURL, regionID))
	if err != nil {
		return nil, fmt.Errorf("discover stations in region %d: %w", regionID, err)
	}
	return parseMarkers(doc), nil
}

// ParseMarkers reads station markers from a region page document.
func ParseMarkers(r io.Reader) ([]Marker, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return parseMarkers(doc), nil
}

func parseMarkers(doc *goquery.Document) []Marker {
	var markers []Marker
	seen := make(map[string]bool)

	doc.Find("area[onmouseover]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		if seen[href] {
			return
		}
		seen[href] = true

		name, _ := s.Attr("alt")
		payload, _ := s.Attr("onmouseover")
		markers = append(markers, Marker{Name: name, Link: href, Payload: payload})
	})
	return markers
}

// Stations walks every known region and decodes its station markers.
// Undecodable markers are logged and dropped; regions without an id are
// skipped with a warning. Transport failures abort the walk.
func (c *Client) Stations(ctx context.Context, regions []Region) ([]models.Station, error) {
	var stations []models.Station

	for _, region := range regions {
		if !region.Known() {
			c.log.Warn("region has no id, skipping", "region", region.Name)
			continue
		}

		markers, err := c.DiscoverStations(ctx, region.ID)
		if err != nil {
			return nil, err
		}

		label := strconv.Itoa(region.ID)
		decoded := 0
		for _, m := range markers {
			st, err := DecodeStation(m)
			if err != nil {
				var de *DecodeError
				if !errors.As(err, &de) {
					return nil, err
				}
				metrics.DecodeErrors.WithLabelValues(label).Inc()
				c.log.Warn("dropping station marker", "region", region.Name, "link", de.Link, "reason", de.Reason)
				continue
			}
			metrics.StationsDecoded.WithLabelValues(label).Inc()
			stations = append(stations, st)
			decoded++
		}
		c.log.Info("region scanned", "region", region.Name, "id", region.ID, "markers", len(markers), "stations", decoded)
	}

	return stations, nil
}
