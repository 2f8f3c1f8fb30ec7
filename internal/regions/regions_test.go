package regions

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefault_PrefectureOf(t *testing.T) {
	table := Default()

	tests := []struct {
		area string
		want string
	}{
		{"宗谷", "北海道"},
		{"網走・北見・紋別", "北海道"},
		{"檜山", "北海道"},
		{"東京", "東京"},
		{"沖縄", "沖縄"},
	}
	for _, tt := range tests {
		if got := table.PrefectureOf(tt.area); got != tt.want {
			t.Errorf("PrefectureOf(%q) = %q, want %q", tt.area, got, tt.want)
		}
	}
}

func TestDefault_Expand(t *testing.T) {
	table := Default()

	labels, err := table.Expand([]string{"Tokyo", "Hokkaido"})
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	if len(labels) != 2 || !labels["東京"] || !labels["北海道"] {
		t.Errorf("labels = %v", labels)
	}

	kanto, err := table.Expand([]string{"Kanto", "Tokyo"})
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	if len(kanto) != 7 {
		t.Errorf("Kanto covers %d prefectures, want 7", len(kanto))
	}

	if _, err := table.Expand([]string{"Atlantis"}); err == nil {
		t.Error("expected error for unknown region")
	}
}

func TestDefault_AllCoversEveryPrefecture(t *testing.T) {
	table := Default()
	all := table.Groups["All"]
	if len(all) != len(prefectures) {
		t.Errorf("All has %d labels, want %d", len(all), len(prefectures))
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "regions.json")
	data := `{"groups":{"Sapporo":["北海道"]},"prefecture":"北海道","members":["石狩"]}`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	table, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := table.Keys(); len(got) != 1 || got[0] != "Sapporo" {
		t.Errorf("Keys = %v", got)
	}
	if got := table.PrefectureOf("石狩"); got != "北海道" {
		t.Errorf("PrefectureOf = %q", got)
	}
	if got := table.PrefectureOf("宗谷"); got != "宗谷" {
		t.Errorf("PrefectureOf(宗谷) = %q, want unchanged", got)
	}
}

func TestLoad_Empty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "regions.json")
	if err := os.WriteFile(path, []byte(`{}`), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected error for table without groups")
	}
}

func TestRender(t *testing.T) {
	table := Table{
		Groups: map[string][]string{
			"Tokyo": {"東京"},
			"Kanto": {"茨城", "東京"},
		},
		Prefecture: "北海道",
		Members:    []string{"石狩", "網走・北見・紋別"},
	}

	var buf bytes.Buffer
	if err := table.Render(&buf); err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	want := "Kanto  茨城、東京\n" +
		"Tokyo  東京\n" +
		"\n北海道:\n" +
		"  石狩             -> 北海道\n" +
		"  網走・北見・紋別 -> 北海道\n"
	if got := buf.String(); got != want {
		t.Errorf("Render output:\n%s\nwant:\n%s", got, want)
	}
}

func TestRender_TruncatesLongGroups(t *testing.T) {
	var buf bytes.Buffer
	if err := Default().Render(&buf); err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	for _, line := range strings.Split(buf.String(), "\n") {
		if strings.HasPrefix(line, "All") && !strings.HasSuffix(line, "…") {
			t.Errorf("All group not truncated: %q", line)
		}
	}
}
