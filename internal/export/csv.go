package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
)

// Keep header order stable, downstream imports map by position.
var catalogHeader = []string{
	"ID",
	"TEMPLATE_ID",
	"TITLE",
	"CATEGORY",
	"DURATION",
	"LANGUAGE",
	"LOCATION",
	"NEXT_EVENT_START",
	"EVENT_COUNT",
}

func WriteCatalogCSV(w io.Writer, rows []Row) error {
	cw := csv.NewWriter(w)
	cw.UseCRLF = true

	if err := cw.Write(catalogHeader); err != nil {
		return err
	}
	for _, r := range rows {
		if err := cw.Write([]string{
			itoa(r.ID),
			r.TemplateID,
			r.Title,
			r.Category,
			r.Duration,
			r.Language,
			r.Location,
			r.NextEventStart,
			strconv.Itoa(r.EventCount),
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteCatalogCSVFile writes rows to outPath, replacing any existing file.
func WriteCatalogCSVFile(outPath string, rows []Row) error {
	f, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("export: create csv: %w", err)
	}
	if err := WriteCatalogCSV(f, rows); err != nil {
		f.Close()
		return fmt.Errorf("export: write csv: %w", err)
	}
	return f.Close()
}
