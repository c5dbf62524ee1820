package presence

import (
	"sort"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// sortLanguage drives name ordering. Root collation keeps accented and
// non-Latin hostnames next to their base letters.
var sortLanguage = language.Und //nolint:gochecknoglobals // collation locale

// sortRecords orders by display name, case-insensitively, keeping feed order
// for equal names. A collator is not safe for concurrent use, so each call
// builds its own.
func sortRecords(records []DeviceRecord) {
	c := collate.New(sortLanguage, collate.IgnoreCase)

	sort.SliceStable(records, func(i, j int) bool {
		return c.CompareString(records[i].DisplayName, records[j].DisplayName) < 0
	})
}
