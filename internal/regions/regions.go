package regions

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
)

// Table is the static reference data the catalog and output stages need:
// named groups of prefecture labels, and the areas that are relabeled as a
// single prefecture (Hokkaido is split into sub-prefectural areas on the site).
type Table struct {
	Groups     map[string][]string `json:"groups"`
	Prefecture string              `json:"prefecture"`
	Members    []string            `json:"members"`
}

var hokkaidoAreas = []string{
	"宗谷", "上川", "網走・北見・紋別", "留萌", "石狩", "空知", "後志",
	"根室", "釧路", "十勝", "胆振", "日高", "渡島", "檜山",
}

var prefectures = map[string]string{
	"Hokkaido":  "北海道",
	"Aomori":    "青森",
	"Akita":     "秋田",
	"Iwate":     "岩手",
	"Miyagi":    "宮城",
	"Yamagata":  "山形",
	"Fukushima": "福島",
	"Ibaraki":   "茨城",
	"Tochigi":   "栃木",
	"Gunma":     "群馬",
	"Saitama":   "埼玉",
	"Tokyo":     "東京",
	"Chiba":     "千葉",
	"Kanagawa":  "神奈川",
	"Nagano":    "長野",
	"Yamanashi": "山梨",
	"Shizuoka":  "静岡",
	"Aichi":     "愛知",
	"Gifu":      "岐阜",
	"Mie":       "三重",
	"Niigata":   "新潟",
	"Toyama":    "富山",
	"Ishikawa":  "石川",
	"Fukui":     "福井",
	"Shiga":     "滋賀",
	"Kyoto":     "京都",
	"Osaka":     "大阪",
	"Hyogo":     "兵庫",
	"Nara":      "奈良",
	"Wakayama":  "和歌山",
	"Okayama":   "岡山",
	"Hiroshima": "広島",
	"Shimane":   "島根",
	"Tottori":   "鳥取",
	"Tokushima": "徳島",
	"Kagawa":    "香川",
	"Ehime":     "愛媛",
	"Kochi":     "高知",
	"Yamaguchi": "山口",
	"Fukuoka":   "福岡",
	"Oita":      "大分",
	"Nagasaki":  "長崎",
	"Saga":      "佐賀",
	"Kumamoto":  "熊本",
	"Miyazaki":  "宮崎",
	"Kagoshima": "鹿児島",
	"Okinawa":   "沖縄",
	"Antarctic": "南極",
}

var districts = map[string][]string{
	"Tohoku":  {"Aomori", "Akita", "Iwate", "Miyagi", "Yamagata", "Fukushima"},
	"Kanto":   {"Ibaraki", "Tochigi", "Gunma", "Saitama", "Tokyo", "Chiba", "Kanagawa"},
	"Chubu":   {"Nagano", "Yamanashi", "Shizuoka", "Aichi", "Gifu", "Niigata", "Toyama", "Ishikawa", "Fukui"},
	"Kinki":   {"Mie", "Shiga", "Kyoto", "Osaka", "Hyogo", "Nara", "Wakayama"},
	"Chugoku": {"Okayama", "Hiroshima", "Shimane", "Tottori", "Yamaguchi"},
	"Shikoku": {"Tokushima", "Kagawa", "Ehime", "Kochi"},
	"Kyushu":  {"Fukuoka", "Oita", "Nagasaki", "Saga", "Kumamoto", "Miyazaki", "Kagoshima"},
}

// Default returns the built-in table.
func Default() Table {
	groups := make(map[string][]string, len(prefectures)+len(districts)+1)
	var all []string
	for key, label := range prefectures {
		groups[key] = []string{label}
		all = append(all, label)
	}
	for key, members := range districts {
		labels := make([]string, 0, len(members))
		for _, m := range members {
			labels = append(labels, prefectures[m])
		}
		groups[key] = labels
	}
	sort.Strings(all)
	groups["All"] = all

	return Table{
		Groups:     groups,
		Prefecture: "北海道",
		Members:    append([]string(nil), hokkaidoAreas...),
	}
}

// Load reads a table from a JSON file.
func Load(path string) (Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Table{}, fmt.Errorf("read regions file: %w", err)
	}
	var t Table
	if err := json.Unmarshal(data, &t); err != nil {
		return Table{}, fmt.Errorf("parse regions file: %w", err)
	}
	if len(t.Groups) == 0 {
		return Table{}, fmt.Errorf("regions file %s defines no groups", path)
	}
	return t, nil
}

// Keys returns the group names in sorted order.
func (t Table) Keys() []string {
	keys := make([]string, 0, len(t.Groups))
	for k := range t.Groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Expand resolves group keys to the set of prefecture labels they cover.
// Unknown keys are an error.
func (t Table) Expand(keys []string) (map[string]bool, error) {
	labels := make(map[string]bool)
	for _, k := range keys {
		group, ok := t.Groups[k]
		if !ok {
			return nil, fmt.Errorf("unknown region %q", k)
		}
		for _, label := range group {
			labels[label] = true
		}
	}
	return labels, nil
}

// PrefectureOf returns the prefecture label for an area name: the shared
// prefecture for member areas, otherwise the area name itself.
func (t Table) PrefectureOf(area string) string {
	for _, m := range t.Members {
		if m == area {
			return t.Prefecture
		}
	}
	return area
}
