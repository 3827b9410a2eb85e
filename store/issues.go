package store

import (
	"context"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	"github.com/google/uuid"

	"github.com/seo-engine/backend/rules"
)

// severityRank orders issues critical, high, medium, then everything else
var severityRank = goqu.L(fmt.Sprintf(
	"CASE severity WHEN '%s' THEN 1 WHEN '%s' THEN 2 WHEN '%s' THEN 3 ELSE 4 END",
	rules.SeverityCritical, rules.SeverityHigh, rules.SeverityMedium,
))

// InsertIssue persists an issue and returns its id. Missing id, status and
// creation time are filled in. Duplicates are accepted.
func (s *Store) InsertIssue(ctx context.Context, issue *rules.Issue) (string, error) {
	if issue == nil {
		return "", fmt.Errorf("issue is nil")
	}
	if issue.ID == "" {
		issue.ID = uuid.NewString()
	}
	if issue.Status == "" {
		issue.Status = rules.StatusOpen
	}
	if issue.CreatedAt.IsZero() {
		issue.CreatedAt = s.now().UTC()
	}

	record := goqu.Record{
		"id":               issue.ID,
		"site_id":          issue.SiteID,
		"issue_type":       string(issue.Type),
		"severity":         string(issue.Severity),
		"url":              issue.URL,
		"query":            issue.Query,
		"description":      issue.Description,
		"suggested_action": issue.SuggestedAction,
		"status":           issue.Status,
		"created_at":       issue.CreatedAt,
	}

	query, args, err := s.dialect.Insert("issues").Prepared(true).Rows(record).ToSQL()
	if err != nil {
		return "", fmt.Errorf("failed to build issue insert query: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return "", fmt.Errorf("failed to create issue: %w", err)
	}
	return issue.ID, nil
}

// ListIssues returns the site's issues, most severe first and newest first within a severity
func (s *Store) ListIssues(ctx context.Context, siteID int64, limit uint) ([]rules.Issue, error) {
	ds := s.dialect.From("issues").Prepared(true).
		Select("id", "site_id", "issue_type", "severity", "url", "query",
			"description", "suggested_action", "status", "created_at").
		Where(goqu.Ex{"site_id": siteID}).
		Order(severityRank.Asc(), goqu.C("created_at").Desc(), goqu.C("id").Asc())
	if limit > 0 {
		ds = ds.Limit(limit)
	}

	query, args, err := ds.ToSQL()
	if err != nil {
		return nil, fmt.Errorf("failed to build issue list query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list issues: %w", err)
	}
	defer rows.Close()

	issues := make([]rules.Issue, 0)
	for rows.Next() {
		var (
			issue               rules.Issue
			issueType, severity string
		)
		if err := rows.Scan(&issue.ID, &issue.SiteID, &issueType, &severity, &issue.URL, &issue.Query,
			&issue.Description, &issue.SuggestedAction, &issue.Status, &issue.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan issue: %w", err)
		}
		issue.Type = rules.IssueType(issueType)
		issue.Severity = rules.Severity(severity)
		issues = append(issues, issue)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read issues: %w", err)
	}
	return issues, nil
}
