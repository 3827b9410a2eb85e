package store

import (
	"context"
	"fmt"

	"github.com/doug-martin/goqu/v9"
)

// GA4Row is one analytics row for a page path on a given date. BounceRate is
// a fraction and AvgSessionDuration is in seconds.
type GA4Row struct {
	PagePath           string  `json:"page_path" binding:"required"`
	Date               string  `json:"date" binding:"required"`
	Sessions           int64   `json:"sessions"`
	Pageviews          int64   `json:"pageviews"`
	AvgSessionDuration float64 `json:"avg_session_duration"`
	BounceRate         float64 `json:"bounce_rate"`
	Conversions        int64   `json:"conversions"`
}

// GA4Summary folds the analytics rows of one page
type GA4Summary struct {
	Sessions           int64   `json:"sessions"`
	Pageviews          int64   `json:"pageviews"`
	AvgSessionDuration float64 `json:"avg_session_duration"`
	BounceRate         float64 `json:"bounce_rate"`
	Conversions        int64   `json:"conversions"`
}

// ReplaceGA4Rows supersedes the site's analytics rows dated within [from, to]
func (s *Store) ReplaceGA4Rows(ctx context.Context, siteID int64, from, to string, rows []GA4Row) error {
	if err := checkWindow(from, to); err != nil {
		return err
	}

	records := make([]interface{}, 0, len(rows))
	for i, row := range rows {
		if err := checkRowDate(i, row.Date, from, to); err != nil {
			return err
		}
		records = append(records, goqu.Record{
			"site_id":              siteID,
			"page_path":            row.PagePath,
			"metric_date":          row.Date,
			"sessions":             row.Sessions,
			"pageviews":            row.Pageviews,
			"avg_session_duration": row.AvgSessionDuration,
			"bounce_rate":          row.BounceRate,
			"conversions":          row.Conversions,
		})
	}

	return s.replaceWindow(ctx, "ga4_metrics", siteID, from, to, records)
}

// GA4ForPage summarizes the analytics rows of a page path. Counts are summed;
// duration and bounce rate are session-weighted means. It returns
// ErrNotFound when no row exists for the path.
func (s *Store) GA4ForPage(ctx context.Context, siteID int64, path string) (*GA4Summary, error) {
	query, args, err := s.dialect.From("ga4_metrics").Prepared(true).
		Select("sessions", "pageviews", "avg_session_duration", "bounce_rate", "conversions").
		Where(goqu.Ex{"site_id": siteID, "page_path": path}).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("failed to build analytics query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query analytics rows: %w", err)
	}
	defer rows.Close()

	var (
		summary                 GA4Summary
		count                   int
		durationSum, bounceSum  float64
		weightedDur, weightedBR float64
	)
	for rows.Next() {
		var row GA4Row
		if err := rows.Scan(&row.Sessions, &row.Pageviews, &row.AvgSessionDuration, &row.BounceRate, &row.Conversions); err != nil {
			return nil, fmt.Errorf("failed to scan analytics row: %w", err)
		}
		count++
		summary.Sessions += row.Sessions
		summary.Pageviews += row.Pageviews
		summary.Conversions += row.Conversions
		durationSum += row.AvgSessionDuration
		bounceSum += row.BounceRate
		weightedDur += row.AvgSessionDuration * float64(row.Sessions)
		weightedBR += row.BounceRate * float64(row.Sessions)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read analytics rows: %w", err)
	}
	if count == 0 {
		return nil, ErrNotFound
	}

	if summary.Sessions > 0 {
		summary.AvgSessionDuration = weightedDur / float64(summary.Sessions)
		summary.BounceRate = weightedBR / float64(summary.Sessions)
	} else {
		summary.AvgSessionDuration = durationSum / float64(count)
		summary.BounceRate = bounceSum / float64(count)
	}
	return &summary, nil
}
