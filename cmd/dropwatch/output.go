package main

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"dropwatch/internal/api"
	"dropwatch/internal/files"
)

// writeJSON encodes v as indented JSON to the command's stdout.
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// recordPrinter writes one line per record, as text or JSON lines.
type recordPrinter struct {
	out      io.Writer
	json     *json.Encoder
	colorize bool
}

func newRecordPrinter(out io.Writer, asJSON bool) *recordPrinter {
	p := &recordPrinter{out: out, colorize: shouldColorize(out)}
	if asJSON {
		p.json = json.NewEncoder(out)
	}
	return p
}

func (p *recordPrinter) print(rec files.Record) error {
	if p.json != nil {
		return p.json.Encode(api.FromRecord(rec))
	}
	label, color := "EXISTING", ansiBlue
	if rec.IsIncremental {
		label, color = "NEW", ansiGreen
	}
	line := fmt.Sprintf("%-8s %10s  %s", label, humanize.IBytes(uint64(max(rec.Size, 0))), rec.FileName)
	if p.colorize {
		line = color + line + ansiReset
	}
	_, err := fmt.Fprintln(p.out, line)
	return err
}

func recordRow(rec files.Record, class string) []string {
	modified := "-"
	if rec.LastModified > 0 {
		modified = humanize.Time(rec.ModTime())
	}
	return []string{rec.FileName, class, humanize.IBytes(uint64(max(rec.Size, 0))), modified}
}

func formatMillis(ms int64) string {
	if ms <= 0 {
		return "never"
	}
	at := time.UnixMilli(ms)
	return fmt.Sprintf("%s (%s)", at.Local().Format(time.RFC3339), humanize.Time(at))
}
