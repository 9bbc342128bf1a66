package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/nao1215/docscout/internal/config"
	"github.com/nao1215/docscout/internal/database"
	"github.com/nao1215/docscout/internal/model"
	"github.com/spf13/cobra"
)

const (
	historyTimeFormat = "2006-01-02 15:04:05"
	unknownVersion    = "unknown"
)

// NewHistoryCmd creates the history command.
// It reads reports saved with "docscout scrape --save".
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [topic]",
		Short: "Show saved scrape reports",
		Long: `History reads reports saved with "docscout scrape --save".

Without flags it lists the saved runs of a topic. It can also print a
saved report again, or compare the two latest runs of a topic to show
which pages appeared or disappeared and whether the version changed.

Examples:
  # List every topic with saved reports
  docscout history --list-topics

  # List the saved runs of a topic
  docscout history hono

  # Print the latest saved report as Markdown
  docscout history hono --latest -f markdown

  # Print a saved report by ID
  docscout history --id 0b7c6a1e-...

  # Compare the two latest runs
  docscout history hono --compare`,
		Args: cobra.MaximumNArgs(1),
		RunE: runHistoryCmd,
	}

	cmd.Flags().BoolP("list-topics", "L", false,
		"List every topic with saved reports")
	cmd.Flags().StringP("id", "i", "",
		"Print the saved report with this ID")
	cmd.Flags().BoolP("latest", "l", false,
		"Print the latest saved report of the topic")
	cmd.Flags().Bool("compare", false,
		"Compare the two latest saved reports of the topic")
	cmd.Flags().StringP("format", "f", formatText,
		"Output format for reports and comparisons: json, markdown, or text")
	cmd.Flags().String("data-dir", "",
		"History database directory (default: $XDG_DATA_HOME/docscout)")

	return cmd
}

func runHistoryCmd(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()

	listTopics, err := flags.GetBool("list-topics")
	if err != nil {
		return err
	}
	id, err := flags.GetString("id")
	if err != nil {
		return err
	}
	latest, err := flags.GetBool("latest")
	if err != nil {
		return err
	}
	compare, err := flags.GetBool("compare")
	if err != nil {
		return err
	}
	format, err := flags.GetString("format")
	if err != nil {
		return err
	}
	switch format {
	case formatJSON, formatMarkdown, formatText:
	default:
		return errInvalidFormat
	}
	dataDir, err := flags.GetString("data-dir")
	if err != nil {
		return err
	}
	if dataDir == "" {
		dataDir = config.XDGDataDir()
	}

	// Validate before opening the database.
	var topic string
	if len(args) > 0 {
		topic = strings.TrimSpace(args[0])
	}
	if !listTopics && id == "" && topic == "" {
		return errors.New("topic is required (use --list-topics to see saved topics)")
	}

	db, err := database.Open(dataDir, database.DefaultOptions())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	out := cmd.OutOrStdout()
	verbose := getVerboseFlag(cmd)

	switch {
	case listTopics:
		return listSavedTopics(ctx, out, db)
	case id != "":
		return printSavedReport(ctx, out, db, id, format, verbose)
	case latest:
		return printLatestReport(ctx, out, db, topic, format, verbose)
	case compare:
		return runReportComparison(ctx, out, db, topic, format)
	default:
		return listReportHistory(ctx, out, db, topic)
	}
}

func listSavedTopics(ctx context.Context, out io.Writer, db *database.CrawlDB) error {
	topics, err := db.ListTopics(ctx)
	if err != nil {
		return err
	}
	if len(topics) == 0 {
		fmt.Fprintln(out, "No saved reports found in the database.")
		fmt.Fprintln(out, "\nUse 'docscout scrape <topic> --save' to save a report.")
		return nil
	}

	fmt.Fprintf(out, "Saved topics (%d):\n\n", len(topics))
	for _, topic := range topics {
		fmt.Fprintf(out, "  • %s\n", topic)
	}
	fmt.Fprintln(out, "\nUse 'docscout history <topic>' to see the saved runs of a topic.")
	return nil
}

func listReportHistory(ctx context.Context, out io.Writer, db *database.CrawlDB, topic string) error {
	history, err := db.GetReportHistory(ctx, topic)
	if err != nil {
		return err
	}
	if len(history) == 0 {
		fmt.Fprintf(out, "No saved reports found for %s\n", topic)
		fmt.Fprintln(out, "\nUse 'docscout scrape <topic> --save' to save a report.")
		return nil
	}

	fmt.Fprintf(out, "Saved reports for %s (%d):\n\n", topic, len(history))
	fmt.Fprintf(out, "  %-36s  %-19s  %-7s  %s\n", "ID", "Date", "Mode", "Summary")
	fmt.Fprintln(out, "  "+strings.Repeat("-", 90))
	for _, meta := range history {
		fmt.Fprintf(out, "  %-36s  %-19s  %-7s  %s\n",
			meta.ID,
			meta.Timestamp.Local().Format(historyTimeFormat),
			meta.Mode,
			formatStatsSummary(meta.Stats),
		)
	}

	fmt.Fprintln(out, "\nUse 'docscout history --id <id>' to print a saved report.")
	fmt.Fprintln(out, "Use 'docscout history <topic> --compare' to compare the latest two runs.")
	return nil
}

// formatStatsSummary condenses run counters for the history table.
func formatStatsSummary(stats model.Stats) string {
	parts := []string{fmt.Sprintf("%d pages", stats.PagesExtracted)}
	if stats.URLsFailed > 0 {
		parts = append(parts, fmt.Sprintf("%d failed", stats.URLsFailed))
	}
	if stats.SoftFailures > 0 {
		parts = append(parts, fmt.Sprintf("%d soft", stats.SoftFailures))
	}
	if stats.URLsCached > 0 {
		parts = append(parts, fmt.Sprintf("%d cached", stats.URLsCached))
	}
	parts = append(parts, fmt.Sprintf("%.1fs", stats.TotalTimeSeconds))
	return strings.Join(parts, ", ")
}

func printSavedReport(ctx context.Context, out io.Writer, db *database.CrawlDB, id, format string, verbose bool) error {
	saved, err := db.GetReportByID(ctx, id)
	if err != nil {
		return err
	}
	if saved == nil {
		return fmt.Errorf("report %s not found", id)
	}
	_, err = newReportWriter(out, format, verbose).Write(saved)
	return err
}

func printLatestReport(ctx context.Context, out io.Writer, db *database.CrawlDB, topic, format string, verbose bool) error {
	saved, err := db.GetLatestReport(ctx, topic)
	if err != nil {
		return err
	}
	if saved == nil {
		return fmt.Errorf("no saved reports found for %s", topic)
	}
	_, err = newReportWriter(out, format, verbose).Write(saved)
	return err
}

// ReportComparison is the difference between two saved runs of a topic.
type ReportComparison struct {
	// Topic is the compared topic.
	Topic string `json:"topic"`

	// Previous describes the older run.
	Previous RunSnapshot `json:"previous"`

	// Current describes the newer run.
	Current RunSnapshot `json:"current"`

	// VersionChanged is true when the detected versions differ.
	VersionChanged bool `json:"version_changed"`

	// AddedPages are pages present only in the newer run.
	AddedPages []string `json:"added_pages,omitempty"`

	// RemovedPages are pages present only in the older run.
	RemovedPages []string `json:"removed_pages,omitempty"`

	// UnchangedPages counts pages present in both runs.
	UnchangedPages int `json:"unchanged_pages"`

	// NewReleases are changelog entries the older run did not list.
	NewReleases []model.ChangelogEntry `json:"new_releases,omitempty"`
}

// RunSnapshot summarises one saved run.
type RunSnapshot struct {
	ID      string      `json:"id"`
	SavedAt time.Time   `json:"saved_at"`
	Version string      `json:"version"`
	Stats   model.Stats `json:"stats"`
}

func runReportComparison(ctx context.Context, out io.Writer, db *database.CrawlDB, topic, format string) error {
	history, err := db.GetReportHistory(ctx, topic)
	if err != nil {
		return err
	}
	if len(history) < 2 {
		return fmt.Errorf("at least 2 saved reports are required for comparison (found %d)", len(history))
	}

	current, err := loadReport(ctx, db, history[0].ID)
	if err != nil {
		return err
	}
	previous, err := loadReport(ctx, db, history[1].ID)
	if err != nil {
		return err
	}

	comparison := compareReports(previous, current)
	comparison.Previous.ID = history[1].ID
	comparison.Previous.SavedAt = history[1].Timestamp
	comparison.Current.ID = history[0].ID
	comparison.Current.SavedAt = history[0].Timestamp

	switch format {
	case formatJSON:
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		return encoder.Encode(comparison)
	case formatMarkdown:
		writeComparisonMarkdown(out, comparison)
	default:
		writeComparisonText(out, comparison)
	}
	return nil
}

func loadReport(ctx context.Context, db *database.CrawlDB, id string) (*model.Report, error) {
	saved, err := db.GetReportByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if saved == nil {
		return nil, fmt.Errorf("report %s not found", id)
	}
	return saved, nil
}

// compareReports compares the pages, version, and changelog of two runs.
// Page lists keep the order in which each run accepted them.
func compareReports(previous, current *model.Report) *ReportComparison {
	result := &ReportComparison{
		Topic:    current.Topic,
		Previous: RunSnapshot{Version: versionOf(previous), Stats: previous.Stats},
		Current:  RunSnapshot{Version: versionOf(current), Stats: current.Stats},
	}
	result.VersionChanged = result.Previous.Version != result.Current.Version

	for _, u := range current.URLsFetched {
		if slices.Contains(previous.URLsFetched, u) {
			result.UnchangedPages++
		} else {
			result.AddedPages = append(result.AddedPages, u)
		}
	}
	for _, u := range previous.URLsFetched {
		if !slices.Contains(current.URLsFetched, u) {
			result.RemovedPages = append(result.RemovedPages, u)
		}
	}

	known := make(map[string]bool, len(previous.Changelog))
	for _, entry := range previous.Changelog {
		known[entry.Version] = true
	}
	for _, entry := range current.Changelog {
		if !known[entry.Version] {
			result.NewReleases = append(result.NewReleases, entry)
		}
	}
	return result
}

func versionOf(r *model.Report) string {
	if r.Version == nil {
		return unknownVersion
	}
	return *r.Version
}

func writeComparisonText(out io.Writer, c *ReportComparison) {
	fmt.Fprintf(out, "Report Comparison: %s\n", c.Topic)
	fmt.Fprintln(out, strings.Repeat("=", 60))

	fmt.Fprintf(out, "\nPrevious run: %s (%s)\n", c.Previous.SavedAt.Local().Format(historyTimeFormat), c.Previous.ID)
	fmt.Fprintf(out, "Current run:  %s (%s)\n", c.Current.SavedAt.Local().Format(historyTimeFormat), c.Current.ID)

	if c.VersionChanged {
		fmt.Fprintf(out, "\nVersion: %s -> %s\n", c.Previous.Version, c.Current.Version)
	} else {
		fmt.Fprintf(out, "\nVersion: %s (unchanged)\n", c.Current.Version)
	}

	fmt.Fprintln(out, "\nStatistics:")
	fmt.Fprintf(out, "  %-12s  %-10s  %-10s  %-10s\n", "Counter", "Previous", "Current", "Change")
	fmt.Fprintln(out, "  "+strings.Repeat("-", 48))
	for _, row := range statRows(c) {
		fmt.Fprintf(out, "  %-12s  %-10d  %-10d  %-10s\n", row.name, row.previous, row.current, formatDelta(row.current-row.previous))
	}

	if len(c.AddedPages) > 0 {
		fmt.Fprintf(out, "\nAdded Pages (%d):\n", len(c.AddedPages))
		for _, u := range c.AddedPages {
			fmt.Fprintf(out, "  [+] %s\n", u)
		}
	}
	if len(c.RemovedPages) > 0 {
		fmt.Fprintf(out, "\nRemoved Pages (%d):\n", len(c.RemovedPages))
		for _, u := range c.RemovedPages {
			fmt.Fprintf(out, "  [-] %s\n", u)
		}
	}
	if len(c.NewReleases) > 0 {
		fmt.Fprintf(out, "\nNew Releases (%d):\n", len(c.NewReleases))
		for _, entry := range c.NewReleases {
			fmt.Fprintf(out, "  * %s\n", releaseLabel(entry))
		}
	}
	if c.UnchangedPages > 0 {
		fmt.Fprintf(out, "\nUnchanged: %d pages\n", c.UnchangedPages)
	}
}

func writeComparisonMarkdown(out io.Writer, c *ReportComparison) {
	fmt.Fprintf(out, "# Report Comparison: %s\n\n", c.Topic)

	fmt.Fprintln(out, "| Counter | Previous | Current | Change |")
	fmt.Fprintln(out, "|---------|----------|---------|--------|")
	fmt.Fprintf(out, "| Date | %s | %s | - |\n",
		c.Previous.SavedAt.Local().Format("2006-01-02 15:04"),
		c.Current.SavedAt.Local().Format("2006-01-02 15:04"))
	fmt.Fprintf(out, "| Version | %s | %s | - |\n", c.Previous.Version, c.Current.Version)
	for _, row := range statRows(c) {
		fmt.Fprintf(out, "| %s | %d | %d | %s |\n", row.name, row.previous, row.current, formatDelta(row.current-row.previous))
	}

	if len(c.AddedPages) > 0 {
		fmt.Fprintf(out, "\n## Added Pages (%d)\n\n", len(c.AddedPages))
		for _, u := range c.AddedPages {
			fmt.Fprintf(out, "- %s\n", u)
		}
	}
	if len(c.RemovedPages) > 0 {
		fmt.Fprintf(out, "\n## Removed Pages (%d)\n\n", len(c.RemovedPages))
		for _, u := range c.RemovedPages {
			fmt.Fprintf(out, "- ~~%s~~\n", u)
		}
	}
	if len(c.NewReleases) > 0 {
		fmt.Fprintf(out, "\n## New Releases (%d)\n\n", len(c.NewReleases))
		for _, entry := range c.NewReleases {
			fmt.Fprintf(out, "- %s\n", releaseLabel(entry))
		}
	}
	if c.UnchangedPages > 0 {
		fmt.Fprintf(out, "\n---\n\n*%d pages unchanged*\n", c.UnchangedPages)
	}
}

type statRow struct {
	name              string
	previous, current int
}

func statRows(c *ReportComparison) []statRow {
	p, n := c.Previous.Stats, c.Current.Stats
	return []statRow{
		{"Pages", p.PagesExtracted, n.PagesExtracted},
		{"Fetched", p.URLsFetched, n.URLsFetched},
		{"Failed", p.URLsFailed, n.URLsFailed},
		{"Soft fails", p.SoftFailures, n.SoftFailures},
		{"Duplicates", p.URLsSkippedDedup, n.URLsSkippedDedup},
		{"Discovered", p.URLsDiscovered, n.URLsDiscovered},
	}
}

func releaseLabel(entry model.ChangelogEntry) string {
	if entry.Date == "" {
		return entry.Version
	}
	return entry.Version + " (" + entry.Date + ")"
}

// formatDelta formats a numeric delta with sign for display.
func formatDelta(delta int) string {
	if delta > 0 {
		return "+" + strconv.Itoa(delta)
	}
	return strconv.Itoa(delta)
}
