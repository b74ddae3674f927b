package models

import "time"

// AuditStatus is the lifecycle state of one audit run.
type AuditStatus string

const (
	AuditStatusInProgress AuditStatus = "in-progress"
	AuditStatusCompleted  AuditStatus = "completed"
	AuditStatusFailed     AuditStatus = "failed"
)

// AuditRecord describes one identified crawl execution. A record is created
// in-progress and transitions exactly once to a terminal status; it is never
// reopened except by resuming a run that is still in-progress.
type AuditRecord struct {
	ID            string      `json:"id"`
	StartTime     time.Time   `json:"startTime"`
	EndTime       *time.Time  `json:"endTime,omitempty"`
	Status        AuditStatus `json:"status"`
	Duration      string      `json:"duration,omitempty"`
	PagesAnalyzed int         `json:"pagesAnalyzed,omitempty"`
	LinksChecked  int         `json:"linksChecked,omitempty"`
	Error         string      `json:"error,omitempty"`
}

// AuditIndex is the per-domain run history, replaced wholesale on every
// write. Concurrent writers from multiple processes are not supported.
type AuditIndex struct {
	Domain      string        `json:"domain"`
	Audits      []AuditRecord `json:"audits"`
	TotalAudits int           `json:"totalAudits"`
	LastAuditID string        `json:"lastAuditId,omitempty"`
	LastUpdated time.Time     `json:"lastUpdated"`
}

// PageRecord is the per-page data record the crawler stores in the page data
// cache for downstream report and analyzer consumers.
type PageRecord struct {
	URL           string    `json:"url"`
	StatusCode    int       `json:"status_code"`
	Title         string    `json:"title,omitempty"`
	InternalLinks int       `json:"internal_links"`
	ExternalLinks int       `json:"external_links"`
	FetchedAt     time.Time `json:"fetched_at"`
}
