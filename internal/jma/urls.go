package jma

import (
	"fmt"
	"strings"
	"time"

	"github.com/lox/jmaetrn/internal/models"
)

const DefaultBaseURL = "https://www.data.jma.go.jp"

const (
	regionMapPath  = "/obd/stats/etrn/select/prefecture00.php"
	regionPagePath = "/obd/stats/etrn/select/prefecture.php"
	seriesPagePath = "/obd/stats/etrn/view/"
)

func regionMapURL(base string) string {
	return strings.TrimRight(base, "/") + regionMapPath
}

func regionPageURL(base string, regionID int) string {
	return fmt.Sprintf("%s%s?prec_no=%d", strings.TrimRight(base, "/"), regionPagePath, regionID)
}

// seriesPageURL builds the daily_s1/hourly_s1 URL for one page date. Station
// numbers are zero-padded to four digits because minor station ids keep
// their leading zeros on the site.
func seriesPageURL(base string, g models.Granularity, regionID, stationID int, d time.Time) string {
	return fmt.Sprintf("%s%s%s_s1.php?prec_no=%d&block_no=%04d&year=%d&month=%d&day=%d&view=",
		strings.TrimRight(base, "/"), seriesPagePath, g, regionID, stationID, d.Year(), int(d.Month()), d.Day())
}
