package main

import (
	"fmt"
	"strings"
	"testing"
)

func TestRenderStatusLineNoColor(t *testing.T) {
	got := renderStatusLine("Target", statusError, "not readable", false)
	want := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, "Target:", "[ERROR] not readable")
	if got != want {
		t.Fatalf("renderStatusLine mismatch\n got: %q\nwant: %q", got, want)
	}
}

func TestRenderStatusLineWithColor(t *testing.T) {
	got := renderStatusLine("Watcher", statusOK, "watching", true)
	if !strings.HasPrefix(got, ansiGreen) {
		t.Fatalf("expected green prefix, got %q", got)
	}
	if !strings.HasSuffix(got, ansiReset) {
		t.Fatalf("expected reset suffix, got %q", got)
	}
}

func TestRenderTablePadsRowsAndRendersFooter(t *testing.T) {
	out := renderTable(
		[]string{"File", "Class", "Size"},
		[][]string{{"a.jpg", "new"}, {"b.jpg", "existing", "1 B"}},
		[]columnAlignment{alignLeft, alignLeft, alignRight},
		"2 files",
	)
	for _, want := range []string{"a.jpg", "b.jpg", "existing", "2 files"} {
		if !strings.Contains(out, want) {
			t.Fatalf("table missing %q:\n%s", want, out)
		}
	}
	if renderTable(nil, nil, nil, "") != "" {
		t.Fatal("expected empty output without headers")
	}
}

func TestShouldColorizeNonFile(t *testing.T) {
	if shouldColorize(&strings.Builder{}) {
		t.Fatal("expected no color for non-file writer")
	}
}

func TestStatusWriterSeparatesSections(t *testing.T) {
	var buf strings.Builder
	w := newStatusWriter(&buf)
	w.section("Tracker")
	w.linef("Queue", statusInfo, "%d/%d", 3, 10)
	w.section("Process")
	w.line("Lock", statusInfo, "/tmp/100%")

	want := strings.Join([]string{
		"== Tracker ==",
		"-------------",
		renderStatusLine("Queue", statusInfo, "3/10", false),
		"",
		"== Process ==",
		"-------------",
		renderStatusLine("Lock", statusInfo, "/tmp/100%", false),
		"",
	}, "\n")
	if buf.String() != want {
		t.Fatalf("unexpected output\n got: %q\nwant: %q", buf.String(), want)
	}
}

func TestWatcherKind(t *testing.T) {
	cases := map[string]statusKind{
		"watching": statusOK,
		"starting": statusWarn,
		"stopped":  statusError,
	}
	for state, want := range cases {
		if got := watcherKind(state); got != want {
			t.Fatalf("watcherKind(%q) = %d, want %d", state, got, want)
		}
	}
}
