package main

import (
	"fmt"
	"io"

	"bruhbug-service/internal/diary"
	"bruhbug-service/internal/entity"
)

func byline(p entity.Preferences) string {
	name, handle, _ := p.Snapshot()
	return name + " " + handle
}

func printPage(w io.Writer, p diary.Page) {
	if p.Total == 0 {
		fmt.Fprintln(w, "nothing here yet")
		return
	}
	for _, rec := range p.Entries {
		roast, _ := rec.Roast()
		fmt.Fprintf(w, "%s  %s %s\n", rec.CreatedAt.Local().Format("2006-01-02 15:04"), rec.DisplayName, rec.DisplayHandle)
		fmt.Fprintf(w, "  bug:   %s\n", rec.Description)
		fmt.Fprintf(w, "  roast: %s\n", roast)
	}
	fmt.Fprintf(w, "page %d/%d (%d total)\n", p.Page, p.TotalPages, p.Total)
}
