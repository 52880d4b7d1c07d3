package app

import (
	"fmt"

	"github.com/pterm/pterm"
)

func (a *App) printJSON(v any) error {
	enc := json.NewEncoder(a.stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printTable renders rows with the first row as the header.
func (a *App) printTable(rows [][]string) error {
	out, err := pterm.DefaultTable.WithHasHeader().WithData(rows).Srender()
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(a.stdout, out)
	return err
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "-"
}
