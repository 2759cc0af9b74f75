package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

var stdout io.Writer = os.Stdout

func outputFormat() string {
	if viper.GetBool("json") {
		return "json"
	}
	return viper.GetString("output")
}

// render prints v as JSON or YAML, or calls tableFn for the default format.
func render(v any, tableFn func(tw table.Writer)) error {
	switch outputFormat() {
	case "json":
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		// round-trip through JSON so the API field names are kept
		b, err := json.Marshal(v)
		if err != nil {
			return err
		}
		var generic any
		if err := json.Unmarshal(b, &generic); err != nil {
			return err
		}
		enc := yaml.NewEncoder(stdout)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(generic)
	case "table", "":
		tw := table.NewWriter()
		tw.SetOutputMirror(stdout)
		tw.SetStyle(table.StyleLight)
		tableFn(tw)
		tw.Render()
		return nil
	default:
		return fmt.Errorf("unknown output format %q", outputFormat())
	}
}

func kv(tw table.Writer, rows ...table.Row) {
	tw.AppendHeader(table.Row{"Field", "Value"})
	tw.AppendRows(rows)
}

func errorsTable(tw table.Writer, errs []string) {
	if len(errs) == 0 {
		return
	}
	tw.AppendSeparator()
	for _, e := range errs {
		tw.AppendRow(table.Row{"error", e})
	}
}
