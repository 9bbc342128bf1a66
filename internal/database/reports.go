package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nao1215/docscout/internal/model"
)

// SaveReport stores a complete report and returns its generated ID.
func (cdb *CrawlDB) SaveReport(ctx context.Context, report *model.Report) (string, error) {
	reportJSON, err := json.Marshal(report)
	if err != nil {
		return "", fmt.Errorf("failed to serialize report: %w", err)
	}
	statsJSON, err := json.Marshal(report.Stats)
	if err != nil {
		return "", fmt.Errorf("failed to serialize stats: %w", err)
	}

	id := uuid.NewString()
	query := `
	INSERT INTO scrape_reports (id, topic, mode, timestamp, report_json, stats_summary)
	VALUES (?, ?, ?, ?, ?, ?)
	`
	_, err = cdb.db.ExecContext(ctx, query,
		id,
		report.Topic,
		report.Mode,
		formatTimestamp(time.Now()),
		string(reportJSON),
		string(statsJSON),
	)
	if err != nil {
		return "", fmt.Errorf("failed to save report: %w", err)
	}
	return id, nil
}

// GetLatestReport retrieves the most recent report for topic.
// It returns nil without error if the topic was never saved.
func (cdb *CrawlDB) GetLatestReport(ctx context.Context, topic string) (*model.Report, error) {
	query := `
	SELECT report_json FROM scrape_reports
	WHERE topic = ?
	ORDER BY timestamp DESC, rowid DESC
	LIMIT 1
	`
	return cdb.queryReport(ctx, query, topic)
}

// GetReportByID retrieves a report by its ID.
// It returns nil without error if no report has that ID.
func (cdb *CrawlDB) GetReportByID(ctx context.Context, id string) (*model.Report, error) {
	query := `
	SELECT report_json FROM scrape_reports
	WHERE id = ?
	`
	return cdb.queryReport(ctx, query, id)
}

func (cdb *CrawlDB) queryReport(ctx context.Context, query string, arg string) (*model.Report, error) {
	var reportJSON string
	err := cdb.db.QueryRowContext(ctx, query, arg).Scan(&reportJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get report: %w", err)
	}

	var report model.Report
	if err := json.Unmarshal([]byte(reportJSON), &report); err != nil {
		return nil, fmt.Errorf("failed to parse report: %w", err)
	}
	return &report, nil
}

// ListTopics returns every topic with at least one saved report.
func (cdb *CrawlDB) ListTopics(ctx context.Context) ([]string, error) {
	query := `
	SELECT DISTINCT topic FROM scrape_reports
	ORDER BY topic
	`

	rows, err := cdb.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list topics: %w", err)
	}
	defer rows.Close()

	var topics []string
	for rows.Next() {
		var topic string
		if err := rows.Scan(&topic); err != nil {
			return nil, fmt.Errorf("failed to scan topic: %w", err)
		}
		topics = append(topics, topic)
	}
	return topics, rows.Err()
}

// ReportMetadata summarises a saved report without loading its pages.
type ReportMetadata struct {
	// ID is the report identifier.
	ID string

	// Topic is the scraped topic.
	Topic string

	// Mode is the depth mode of the run.
	Mode string

	// Timestamp is when the report was saved.
	Timestamp time.Time

	// Stats are the run counters.
	Stats model.Stats
}

// GetReportHistory returns metadata for every report of topic, newest first.
func (cdb *CrawlDB) GetReportHistory(ctx context.Context, topic string) ([]ReportMetadata, error) {
	query := `
	SELECT id, topic, mode, timestamp, stats_summary
	FROM scrape_reports
	WHERE topic = ?
	ORDER BY timestamp DESC, rowid DESC
	`

	rows, err := cdb.db.QueryContext(ctx, query, topic)
	if err != nil {
		return nil, fmt.Errorf("failed to get report history: %w", err)
	}
	defer rows.Close()

	var results []ReportMetadata
	for rows.Next() {
		var meta ReportMetadata
		var timestamp string
		var statsJSON sql.NullString

		if err := rows.Scan(&meta.ID, &meta.Topic, &meta.Mode, &timestamp, &statsJSON); err != nil {
			return nil, fmt.Errorf("failed to scan metadata: %w", err)
		}
		meta.Timestamp = parseTimestamp(timestamp)

		if statsJSON.Valid && statsJSON.String != "" {
			// A malformed summary leaves zero stats rather than hiding the row.
			_ = json.Unmarshal([]byte(statsJSON.String), &meta.Stats) //nolint:errcheck
		}
		results = append(results, meta)
	}
	return results, rows.Err()
}
