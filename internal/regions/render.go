package regions

import (
	"fmt"
	"io"
	"strings"

	"github.com/mattn/go-runewidth"
)

const labelWidth = 72

// Render writes one line per group key with its prefecture labels, then the
// areas folded into the shared prefecture. Columns are aligned by display
// width so full-width labels line up.
func (t Table) Render(w io.Writer) error {
	keys := t.Keys()
	keyWidth := 0
	for _, k := range keys {
		keyWidth = max(keyWidth, runewidth.StringWidth(k))
	}

	for _, k := range keys {
		labels := runewidth.Truncate(strings.Join(t.Groups[k], "、"), labelWidth, "…")
		if _, err := fmt.Fprintf(w, "%s  %s\n", runewidth.FillRight(k, keyWidth), labels); err != nil {
			return err
		}
	}

	if t.Prefecture == "" || len(t.Members) == 0 {
		return nil
	}
	if _, err := fmt.Fprintf(w, "\n%s:\n", t.Prefecture); err != nil {
		return err
	}
	areaWidth := 0
	for _, m := range t.Members {
		areaWidth = max(areaWidth, runewidth.StringWidth(m))
	}
	for _, m := range t.Members {
		if _, err := fmt.Fprintf(w, "  %s -> %s\n", runewidth.FillRight(m, areaWidth), t.Prefecture); err != nil {
			return err
		}
	}
	return nil
}
