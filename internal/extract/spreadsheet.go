package extract

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// xlsxElements returns one block per sheet: the sheet name, then one line per
// row with cells separated by tabs.
func xlsxElements(path string) ([]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	defer f.Close()

	var elements []string
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, fmt.Errorf("read sheet %s: %w", sheet, err)
		}
		var b strings.Builder
		b.WriteString(sheet)
		for _, row := range rows {
			line := strings.TrimRight(strings.Join(row, "\t"), "\t")
			if strings.TrimSpace(line) == "" {
				continue
			}
			b.WriteByte('\n')
			b.WriteString(line)
		}
		if len(rows) == 0 {
			continue
		}
		elements = append(elements, b.String())
	}
	return elements, nil
}
