package store

import (
	"context"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"

	"github.com/seo-engine/backend/rules"
)

// MetricRow is one search-console row: a url, query, country and device on a given date
type MetricRow struct {
	URL         string  `json:"url" binding:"required"`
	Query       string  `json:"query"`
	Country     string  `json:"country"`
	Device      string  `json:"device"`
	Date        string  `json:"date" binding:"required"`
	Impressions int64   `json:"impressions"`
	Clicks      int64   `json:"clicks"`
	CTR         float64 `json:"ctr"`
	Position    float64 `json:"position"`
}

// ReplaceMetricRows supersedes the site's search-console rows dated within
// [from, to] with rows. Every row must fall inside the window, so that
// re-ingesting the same window never accumulates duplicates.
func (s *Store) ReplaceMetricRows(ctx context.Context, siteID int64, from, to string, rows []MetricRow) error {
	if err := checkWindow(from, to); err != nil {
		return err
	}

	records := make([]interface{}, 0, len(rows))
	for i, row := range rows {
		if err := checkRowDate(i, row.Date, from, to); err != nil {
			return err
		}
		records = append(records, goqu.Record{
			"site_id":      siteID,
			"url":          row.URL,
			"query":        row.Query,
			"country":      row.Country,
			"device":       row.Device,
			"metric_date":  row.Date,
			"impressions":  row.Impressions,
			"clicks":       row.Clicks,
			"ctr":          row.CTR,
			"avg_position": row.Position,
		})
	}

	return s.replaceWindow(ctx, "gsc_metrics", siteID, from, to, records)
}

// AggregatedMetrics sums impressions and clicks per URL and averages the
// position. CTR is recomputed as clicks / impressions.
func (s *Store) AggregatedMetrics(ctx context.Context, siteID int64) ([]rules.PageMetric, error) {
	return s.aggregate(ctx, goqu.Ex{"site_id": siteID}, false)
}

// AggregatedQueryMetrics is AggregatedMetrics grouped by URL and query
func (s *Store) AggregatedQueryMetrics(ctx context.Context, siteID int64) ([]rules.PageMetric, error) {
	return s.aggregate(ctx, goqu.Ex{"site_id": siteID}, true)
}

// MetricsForPage returns the per-query metrics of one URL, most impressions first
func (s *Store) MetricsForPage(ctx context.Context, siteID int64, url string) ([]rules.PageMetric, error) {
	return s.aggregate(ctx, goqu.Ex{"site_id": siteID, "url": url}, true)
}

func (s *Store) aggregate(ctx context.Context, where exp.Ex, byQuery bool) ([]rules.PageMetric, error) {
	groupBy := []interface{}{goqu.C("url")}
	if byQuery {
		groupBy = append(groupBy, goqu.C("query"))
	}
	selects := append([]interface{}{}, groupBy...)
	selects = append(selects,
		goqu.SUM("impressions").As("total_impressions"),
		goqu.SUM("clicks").As("total_clicks"),
		goqu.AVG("avg_position").As("mean_position"),
	)

	query, args, err := s.dialect.From("gsc_metrics").Prepared(true).
		Select(selects...).
		Where(where).
		GroupBy(groupBy...).
		Order(goqu.I("total_impressions").Desc(), goqu.C("url").Asc()).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("failed to build aggregate query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate metrics: %w", err)
	}
	defer rows.Close()

	metrics := make([]rules.PageMetric, 0)
	for rows.Next() {
		var m rules.PageMetric
		dest := []interface{}{&m.URL}
		if byQuery {
			dest = append(dest, &m.Query)
		}
		dest = append(dest, &m.Impressions, &m.Clicks, &m.Position)
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("failed to scan aggregated metric: %w", err)
		}
		if m.Impressions > 0 {
			m.CTR = float64(m.Clicks) / float64(m.Impressions)
		}
		metrics = append(metrics, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read aggregated metrics: %w", err)
	}
	return metrics, nil
}
