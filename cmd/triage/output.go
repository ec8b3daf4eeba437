package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/lipgloss"
	"gopkg.in/yaml.v3"

	"github.com/dmitrymomot/triage/internal/session"
)

const (
	formatTable = "table"
	formatJSON  = "json"
	formatYAML  = "yaml"
)

var errUnknownFormat = errors.New("unknown output format")

var (
	headerStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("62"))
	completeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	partialStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
)

func render(w io.Writer, format string, v any) error {
	switch format {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("%w: %q", errUnknownFormat, format)
	}
}

func renderSummaries(w io.Writer, format string, sessions []session.Summary) error {
	if format != formatTable {
		return render(w, format, sessions)
	}
	if len(sessions) == 0 {
		_, err := fmt.Fprintln(w, "No sessions.")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	header := []string{"SESSION ID", "TARGET", "HOSTNAME", "USERNAME", "ITEMS", "STATUS", "CREATED"}
	for i, h := range header {
		header[i] = headerStyle.Render(h)
	}
	fmt.Fprintln(tw, strings.Join(header, "\t"))

	for _, s := range sessions {
		status := partialStyle.Render(string(s.Status))
		if s.Status == session.StatusComplete {
			status = completeStyle.Render(string(s.Status))
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\t%s\n",
			s.ID,
			orDash(s.TargetName),
			orDash(s.DeviceInfo["hostname"]),
			orDash(s.DeviceInfo["username"]),
			s.CategoryCount,
			status,
			s.CreatedAt.Local().Format(time.DateTime),
		)
	}
	return tw.Flush()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
