package jma

import (
	"errors"
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/lox/jmaetrn/internal/models"
)

const tokyoPayload = `javascript:viewPoint('s','47662','東京','トウキョウ','35','41.5','139','45.0','25.2','1','1','1','1','1','1','9999','99','99','','','','','');`

func TestTokenizePayload(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    []string
		wantErr bool
	}{
		{
			name:    "bare and quoted",
			payload: `s,'47412','Sapporo'`,
			want:    []string{"s", "47412", "Sapporo"},
		},
		{
			name:    "wrapped call",
			payload: `javascript:viewPoint('a','0363','x');`,
			want:    []string{"a", "0363", "x"},
		},
		{
			name:    "comma inside quotes",
			payload: `'a,b','c'`,
			want:    []string{"a,b", "c"},
		},
		{
			name:    "escaped quote",
			payload: `'it\'s','x'`,
			want:    []string{"it's", "x"},
		},
		{
			name:    "empty quoted arguments",
			payload: `'1','',''`,
			want:    []string{"1", "", ""},
		},
		{
			name:    "spaces around arguments",
			payload: `viewPoint( 's' , '1' )`,
			want:    []string{"s", "1"},
		},
		{name: "unterminated quote", payload: `'s','47`, wantErr: true},
		{name: "junk after quote", payload: `'s'x,'1'`, wantErr: true},
		{name: "unterminated call", payload: `javascript:viewPoint('s','1'`, wantErr: true},
		{name: "empty", payload: ``, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := TokenizePayload(tt.payload)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("TokenizePayload(%q) = %q, want error", tt.payload, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("TokenizePayload(%q): %v", tt.payload, err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("TokenizePayload(%q) = %q, want %q", tt.payload, got, tt.want)
			}
		})
	}
}

func TestTokenizePayload_FullMarker(t *testing.T) {
	got, err := TokenizePayload(tokyoPayload)
	if err != nil {
		t.Fatalf("TokenizePayload: %v", err)
	}
	if len(got) != 23 {
		t.Fatalf("len = %d, want 23", len(got))
	}
	if got[2] != "東京" || got[3] != "トウキョウ" {
		t.Errorf("names = %q, %q", got[2], got[3])
	}
}

func TestDecodeStation_Sapporo(t *testing.T) {
	m := Marker{
		Link:    "../index.php?prec_no=14&block_no=47412&year=&month=&day=&view=",
		Payload: `s,'47412','Sapporo','サッポロ','43','4','141','20','17.2','1','1','1','1','1','1','9999','1','1'`,
	}

	st, err := DecodeStation(m)
	if err != nil {
		t.Fatalf("DecodeStation: %v", err)
	}

	if st.Category != models.CategoryMajor {
		t.Errorf("Category = %q, want s", st.Category)
	}
	if st.RegionID != 14 {
		t.Errorf("RegionID = %d, want 14", st.RegionID)
	}
	if st.StationID != 47412 {
		t.Errorf("StationID = %d, want 47412", st.StationID)
	}
	if st.Name != "Sapporo" || st.NameKana != "サッポロ" {
		t.Errorf("names = %q, %q", st.Name, st.NameKana)
	}
	if math.Abs(st.Latitude-(43+4.0/60)) > 1e-12 {
		t.Errorf("Latitude = %v, want %v", st.Latitude, 43+4.0/60)
	}
	if math.Abs(st.Longitude-(141+20.0/60)) > 1e-12 {
		t.Errorf("Longitude = %v, want %v", st.Longitude, 141+20.0/60)
	}
	if st.Elevation != 17.2 {
		t.Errorf("Elevation = %v, want 17.2", st.Elevation)
	}
	want := models.Sensors{Precipitation: 1, Temperature: 1, Humidity: 1, Wind: 1, Sunshine: 1, Snowfall: 1}
	if st.Sensors != want {
		t.Errorf("Sensors = %+v, want %+v", st.Sensors, want)
	}
	if st.HasStartDate() {
		t.Errorf("ObservedFrom = %v, want unset", st.ObservedFrom)
	}
	if len(st.NameHistory) != 0 {
		t.Errorf("NameHistory = %v, want empty", st.NameHistory)
	}
}

func TestDecodeStation_SentinelIgnoresMonthAndDay(t *testing.T) {
	for _, md := range [][2]string{{"99", "99"}, {"1", "1"}, {"12", "31"}} {
		args := validArgs()
		args[argStartYear] = NoStartYear
		args[argStartMonth] = md[0]
		args[argStartDay] = md[1]

		st, err := DecodeStation(Marker{Link: "x?prec_no=44&block_no=1", Payload: quoteArgs(args)})
		if err != nil {
			t.Fatalf("DecodeStation(%v): %v", md, err)
		}
		if st.HasStartDate() {
			t.Errorf("month/day %v: ObservedFrom = %v, want unset", md, st.ObservedFrom)
		}
	}
}

func TestDecodeStation_StartDateAndHistory(t *testing.T) {
	args := validArgs()
	args[argStartYear], args[argStartMonth], args[argStartDay] = "1976", "11", "1"
	args = append(args,
		"2008年3月25日までの地点名「旧名」",
		"観測を休止しています",
		"",
		"1990年12月1日までの地点名「最初の名前」",
	)

	st, err := DecodeStation(Marker{Link: "x?prec_no=44&block_no=1", Payload: quoteArgs(args)})
	if err != nil {
		t.Fatalf("DecodeStation: %v", err)
	}

	wantFrom := time.Date(1976, 11, 1, 0, 0, 0, 0, time.UTC)
	if !st.ObservedFrom.Equal(wantFrom) {
		t.Errorf("ObservedFrom = %v, want %v", st.ObservedFrom, wantFrom)
	}
	want := []models.NameChange{
		{Name: "旧名", Retired: time.Date(2008, 3, 25, 0, 0, 0, 0, time.UTC)},
		{Name: "最初の名前", Retired: time.Date(1990, 12, 1, 0, 0, 0, 0, time.UTC)},
	}
	if !reflect.DeepEqual(st.NameHistory, want) {
		t.Errorf("NameHistory = %+v, want %+v", st.NameHistory, want)
	}
}

func TestDecodeStation_WindFlagKeepsValue(t *testing.T) {
	args := validArgs()
	args[argWind] = "2"
	st, err := DecodeStation(Marker{Link: "x?prec_no=44&block_no=1", Payload: quoteArgs(args)})
	if err != nil {
		t.Fatalf("DecodeStation: %v", err)
	}
	if st.Sensors.Wind != 2 {
		t.Errorf("Wind = %d, want 2", st.Sensors.Wind)
	}
}

func TestDecodeStation_Errors(t *testing.T) {
	tests := []struct {
		name   string
		marker Marker
	}{
		{"no region in link", Marker{Link: "index.php?block_no=1", Payload: quoteArgs(validArgs())}},
		{"too few arguments", Marker{Link: "x?prec_no=1&", Payload: quoteArgs(validArgs()[:17])}},
		{"bad category", Marker{Link: "x?prec_no=1&", Payload: quoteArgs(withArg(argCategory, "z"))}},
		{"bad station id", Marker{Link: "x?prec_no=1&", Payload: quoteArgs(withArg(argStationID, "abc"))}},
		{"bad latitude", Marker{Link: "x?prec_no=1&", Payload: quoteArgs(withArg(argLatMin, ""))}},
		{"bad sensor", Marker{Link: "x?prec_no=1&", Payload: quoteArgs(withArg(argSnowfall, "yes"))}},
		{"invalid start date", Marker{Link: "x?prec_no=1&", Payload: quoteArgs(withArg(argStartMonth, "13"))}},
		{"unterminated payload", Marker{Link: "x?prec_no=1&", Payload: `'s','1`}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeStation(tt.marker)
			var de *DecodeError
			if !errors.As(err, &de) {
				t.Fatalf("err = %v, want *DecodeError", err)
			}
			if de.Link != tt.marker.Link {
				t.Errorf("Link = %q, want %q", de.Link, tt.marker.Link)
			}
		})
	}
}

func TestDMSToDegrees(t *testing.T) {
	if got := DMSToDegrees(35, 30, 0); got != 35.5 {
		t.Errorf("DMSToDegrees(35, 30, 0) = %v, want 35.5", got)
	}
	if got := DMSToDegrees(35, 41.5, 0); math.Abs(got-35.691666) > 1e-5 {
		t.Errorf("DMSToDegrees(35, 41.5, 0) = %v", got)
	}
	if got := DMSToDegrees(10, 0, 36); math.Abs(got-10.01) > 1e-12 {
		t.Errorf("DMSToDegrees(10, 0, 36) = %v, want 10.01", got)
	}
}

func TestRegionIDFromLink(t *testing.T) {
	tests := []struct {
		link string
		want int
		ok   bool
	}{
		{"prefecture.php?prec_no=44&block_no=&year=&month=&day=&view=", 44, true},
		{"../index.php?prec_no=11&block_no=47401", 11, true},
		{"prefecture.php?prec_no=44", 0, false},
		{"prefecture.php?block_no=1&", 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		got, ok := RegionIDFromLink(tt.link)
		if got != tt.want || ok != tt.ok {
			t.Errorf("RegionIDFromLink(%q) = %d, %v; want %d, %v", tt.link, got, ok, tt.want, tt.ok)
		}
	}
}

func validArgs() []string {
	return []string{
		"s", "47662", "東京", "トウキョウ", "35", "41.5", "139", "45.0", "25.2",
		"1", "1", "1", "1", "1", "1", "9999", "99", "99",
	}
}

func withArg(i int, v string) []string {
	args := validArgs()
	args[argStartYear] = "2000"
	args[argStartMonth] = "1"
	args[argStartDay] = "1"
	args[i] = v
	return args
}

func quoteArgs(args []string) string {
	s := "javascript:viewPoint("
	for i, a := range args {
		if i > 0 {
			s += ","
		}
		s += "'" + a + "'"
	}
	return s + ");"
}
