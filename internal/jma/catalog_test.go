package jma

import (
	"context"
	"errors"
	"strings"
	"testing"
)

const regionMapHTML = `<html><body>
<map name="point">
<area shape="rect" alt="宗谷" coords="1,1,2,2" href="prefecture.php?prec_no=11&block_no=&year=&month=&day=&view=">
<area shape="rect" alt="東京" coords="1,1,2,2" href="prefecture.php?prec_no=44&block_no=&year=&month=&day=&view=">
<area shape="rect" alt="南極" coords="1,1,2,2" href="nankyoku.php">
</map>
</body></html>`

const tokyoRegionHTML = `<html><body>
<map name="point">
<area shape="rect" alt="東京" coords="1,1,2,2" href="../index.php?prec_no=44&block_no=47662&year=&month=&day=&view="
 onmouseover="javascript:viewPoint('s','47662','東京','トウキョウ','35','41.5','139','45.0','25.2','1','1','1','1','1','1','9999','99','99','','','','','');">
<area shape="rect" alt="東京" coords="3,3,4,4" href="../index.php?prec_no=44&block_no=47662&year=&month=&day=&view="
 onmouseover="javascript:viewPoint('s','47662','東京','トウキョウ','35','41.5','139','45.0','25.2','1','1','1','1','1','1','9999','99','99','','','','','');">
<area shape="rect" alt="練馬" coords="5,5,6,6" href="../index.php?prec_no=44&block_no=0366&year=&month=&day=&view="
 onmouseover="javascript:viewPoint('a','0366','練馬','ネリマ','35','44.1','139','40.1','38','1','1','1','1','0','0','1976','1','1','2003年3月1日までの地点名「旧練馬」','','','','');">
<area shape="rect" alt="壊れた" coords="7,7,8,8" href="../index.php?prec_no=44&block_no=9999&year=&month=&day=&view="
 onmouseover="javascript:viewPoint('s','broken');">
<area shape="rect" alt="戻る" coords="9,9,10,10" href="prefecture00.php">
</map>
</body></html>`

func TestParseRegions(t *testing.T) {
	regions, err := ParseRegions(strings.NewReader(regionMapHTML))
	if err != nil {
		t.Fatalf("ParseRegions: %v", err)
	}
	want := []Region{
		{Name: "宗谷", ID: 11},
		{Name: "東京", ID: 44},
		{Name: "南極", ID: UnknownRegionID},
	}
	if len(regions) != len(want) {
		t.Fatalf("len = %d, want %d: %+v", len(regions), len(want), regions)
	}
	for i := range want {
		if regions[i] != want[i] {
			t.Errorf("regions[%d] = %+v, want %+v", i, regions[i], want[i])
		}
	}
	if regions[2].Known() {
		t.Error("region without id reported as known")
	}
}

func TestParseMarkers_DeduplicatesByLink(t *testing.T) {
	markers, err := ParseMarkers(strings.NewReader(tokyoRegionHTML))
	if err != nil {
		t.Fatalf("ParseMarkers: %v", err)
	}
	if len(markers) != 3 {
		t.Fatalf("len = %d, want 3: %+v", len(markers), markers)
	}
	gotNames := []string{markers[0].Name, markers[1].Name, markers[2].Name}
	wantNames := []string{"東京", "練馬", "壊れた"}
	for i := range wantNames {
		if gotNames[i] != wantNames[i] {
			t.Errorf("markers[%d].Name = %q, want %q", i, gotNames[i], wantNames[i])
		}
	}
}

func TestClient_DiscoverRegions(t *testing.T) {
	site := &fakeSite{pages: map[string]string{
		regionMapPath: regionMapHTML,
	}}
	c := newTestClient(t, site)

	regions, err := c.DiscoverRegions(context.Background())
	if err != nil {
		t.Fatalf("DiscoverRegions: %v", err)
	}
	if len(regions) != 3 {
		t.Fatalf("len = %d, want 3", len(regions))
	}
}

func TestClient_Stations(t *testing.T) {
	site := &fakeSite{pages: map[string]string{
		regionPagePath + "?prec_no=44": tokyoRegionHTML,
	}}
	c := newTestClient(t, site)

	regions := []Region{{Name: "東京", ID: 44}, {Name: "南極", ID: UnknownRegionID}}
	stations, err := c.Stations(context.Background(), regions)
	if err != nil {
		t.Fatalf("Stations: %v", err)
	}

	if len(stations) != 2 {
		t.Fatalf("len = %d, want 2 (duplicate collapsed, broken dropped): %+v", len(stations), stations)
	}
	if stations[0].StationID != 47662 || stations[0].RegionID != 44 {
		t.Errorf("stations[0] = %d/%d, want 44/47662", stations[0].RegionID, stations[0].StationID)
	}
	nerima := stations[1]
	if nerima.StationID != 366 || nerima.Category != "a" {
		t.Errorf("stations[1] = %+v", nerima)
	}
	if !nerima.HasStartDate() || nerima.ObservedFrom.Year() != 1976 {
		t.Errorf("ObservedFrom = %v, want 1976-01-01", nerima.ObservedFrom)
	}
	if len(nerima.NameHistory) != 1 || nerima.NameHistory[0].Name != "旧練馬" {
		t.Errorf("NameHistory = %+v", nerima.NameHistory)
	}

	if got := site.Requests(); len(got) != 1 {
		t.Errorf("requests = %v, want one region page (unknown region skipped)", got)
	}
}

func TestClient_StationsTransportError(t *testing.T) {
	site := &fakeSite{pages: map[string]string{}}
	c := newTestClient(t, site)

	_, err := c.Stations(context.Background(), []Region{{Name: "東京", ID: 44}})
	var te *TransportError
	if !errors.As(err, &te) {
		t.Fatalf("err = %v, want *TransportError", err)
	}
	if te.StatusCode != 404 {
		t.Errorf("StatusCode = %d, want 404", te.StatusCode)
	}
}
