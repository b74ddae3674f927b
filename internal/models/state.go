package models

import (
	"encoding/json"
	"sort"
)

// External link status markers. Numeric HTTP statuses are stored as their
// decimal string; these two cover the non-HTTP outcomes.
const (
	ExternalStatusPending    = ""
	ExternalStatusTimeout    = "TIMEOUT"
	ExternalStatusFetchError = "FETCH_ERROR"
)

// StringSet is a membership set persisted as a sorted JSON array. Sets are
// never serialized through map iteration order so checkpoints stay
// byte-deterministic.
type StringSet map[string]struct{}

// NewStringSet creates a set from the given values.
func NewStringSet(values ...string) StringSet {
	s := make(StringSet, len(values))
	for _, v := range values {
		s[v] = struct{}{}
	}
	return s
}

// Add inserts a value into the set.
func (s StringSet) Add(v string) {
	s[v] = struct{}{}
}

// Contains reports whether the value is a member.
func (s StringSet) Contains(v string) bool {
	_, ok := s[v]
	return ok
}

// Len returns the number of members.
func (s StringSet) Len() int {
	return len(s)
}

// Values returns the members in sorted order.
func (s StringSet) Values() []string {
	values := make([]string, 0, len(s))
	for v := range s {
		values = append(values, v)
	}
	sort.Strings(values)
	return values
}

// MarshalJSON serializes the set as a sorted array.
func (s StringSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Values())
}

// UnmarshalJSON reconstructs the set from an array.
func (s *StringSet) UnmarshalJSON(data []byte) error {
	var values []string
	if err := json.Unmarshal(data, &values); err != nil {
		return err
	}
	*s = NewStringSet(values...)
	return nil
}

// PageLinkStat aggregates how an internal URL is referenced across the site:
// total occurrence count, the distinct anchor texts used, and the distinct
// pages that link to it.
type PageLinkStat struct {
	Count   int       `json:"count"`
	Anchors StringSet `json:"anchors"`
	Sources StringSet `json:"sources"`
}

// BadRequestRecord captures an internal page that failed to load. Status 0
// means the fetch failed before an HTTP status was received.
type BadRequestRecord struct {
	Status  int       `json:"status"`
	Sources StringSet `json:"sources"`
}

// ExternalLinkRecord tracks an outbound link and the internal pages that
// reference it. Status stays empty until the verification phase records a
// final outcome.
type ExternalLinkRecord struct {
	Status  string    `json:"status"`
	Sources StringSet `json:"sources"`
}

// FunctionalLinkRecord tracks a mailto/tel address and its referring pages.
type FunctionalLinkRecord struct {
	Sources StringSet `json:"sources"`
}

// CrawlState is the complete crawl state round-tripped through the state
// store. Visited and Frontier are always disjoint: a URL moves from Frontier
// to Visited at the moment it is handed to a worker.
type CrawlState struct {
	Visited       StringSet                        `json:"visited"`
	Frontier      []string                         `json:"frontier"`
	Stats         map[string]*PageLinkStat         `json:"stats"`
	BadRequests   map[string]*BadRequestRecord     `json:"badRequests"`
	ExternalLinks map[string]*ExternalLinkRecord   `json:"externalLinks"`
	MailtoLinks   map[string]*FunctionalLinkRecord `json:"mailtoLinks"`
	TelLinks      map[string]*FunctionalLinkRecord `json:"telLinks"`
}

// NewCrawlState creates an empty crawl state.
func NewCrawlState() *CrawlState {
	return &CrawlState{
		Visited:       NewStringSet(),
		Frontier:      []string{},
		Stats:         make(map[string]*PageLinkStat),
		BadRequests:   make(map[string]*BadRequestRecord),
		ExternalLinks: make(map[string]*ExternalLinkRecord),
		MailtoLinks:   make(map[string]*FunctionalLinkRecord),
		TelLinks:      make(map[string]*FunctionalLinkRecord),
	}
}

// normalize backfills nil maps after deserialization so a state loaded from
// an older or hand-edited document is always structurally complete.
func (s *CrawlState) normalize() {
	if s.Visited == nil {
		s.Visited = NewStringSet()
	}
	if s.Frontier == nil {
		s.Frontier = []string{}
	}
	if s.Stats == nil {
		s.Stats = make(map[string]*PageLinkStat)
	}
	if s.BadRequests == nil {
		s.BadRequests = make(map[string]*BadRequestRecord)
	}
	if s.ExternalLinks == nil {
		s.ExternalLinks = make(map[string]*ExternalLinkRecord)
	}
	if s.MailtoLinks == nil {
		s.MailtoLinks = make(map[string]*FunctionalLinkRecord)
	}
	if s.TelLinks == nil {
		s.TelLinks = make(map[string]*FunctionalLinkRecord)
	}
}

// UnmarshalJSON deserializes the state and backfills any missing sections.
func (s *CrawlState) UnmarshalJSON(data []byte) error {
	type alias CrawlState
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*s = CrawlState(a)
	s.normalize()
	return nil
}

// RecordInternalLink updates the stat entry for an internal URL referenced
// from sourceURL with the given anchor text.
func (s *CrawlState) RecordInternalLink(targetURL, anchorText, sourceURL string) {
	stat, ok := s.Stats[targetURL]
	if !ok {
		stat = &PageLinkStat{Anchors: NewStringSet(), Sources: NewStringSet()}
		s.Stats[targetURL] = stat
	}
	stat.Count++
	if anchorText != "" {
		stat.Anchors.Add(anchorText)
	}
	stat.Sources.Add(sourceURL)
}

// RecordPageVisit makes sure a successfully crawled page has a stat entry
// even when nothing references it. Only the seed page can be visited without
// a prior reference, so it becomes its own source; reference counts are not
// touched.
func (s *CrawlState) RecordPageVisit(pageURL string) {
	if _, ok := s.Stats[pageURL]; ok {
		return
	}
	s.Stats[pageURL] = &PageLinkStat{
		Anchors: NewStringSet(),
		Sources: NewStringSet(pageURL),
	}
}

// RecordBadRequest records a failed internal page load. Sources are taken
// from the pages that referenced the URL; the URL itself is used when it was
// never referenced (the seed page).
func (s *CrawlState) RecordBadRequest(pageURL string, status int) {
	rec, ok := s.BadRequests[pageURL]
	if !ok {
		rec = &BadRequestRecord{Sources: NewStringSet()}
		s.BadRequests[pageURL] = rec
	}
	rec.Status = status
	if stat, ok := s.Stats[pageURL]; ok {
		for src := range stat.Sources {
			rec.Sources.Add(src)
		}
	}
	if rec.Sources.Len() == 0 {
		rec.Sources.Add(pageURL)
	}
}

// RecordExternalLink adds a referrer to an external link, creating a pending
// record on first discovery. An already-verified status is left untouched.
func (s *CrawlState) RecordExternalLink(linkURL, sourceURL string) {
	rec, ok := s.ExternalLinks[linkURL]
	if !ok {
		rec = &ExternalLinkRecord{Status: ExternalStatusPending, Sources: NewStringSet()}
		s.ExternalLinks[linkURL] = rec
	}
	rec.Sources.Add(sourceURL)
}

// RecordMailtoLink adds a referrer to a mailto address.
func (s *CrawlState) RecordMailtoLink(address, sourceURL string) {
	rec, ok := s.MailtoLinks[address]
	if !ok {
		rec = &FunctionalLinkRecord{Sources: NewStringSet()}
		s.MailtoLinks[address] = rec
	}
	rec.Sources.Add(sourceURL)
}

// RecordTelLink adds a referrer to a tel address.
func (s *CrawlState) RecordTelLink(address, sourceURL string) {
	rec, ok := s.TelLinks[address]
	if !ok {
		rec = &FunctionalLinkRecord{Sources: NewStringSet()}
		s.TelLinks[address] = rec
	}
	rec.Sources.Add(sourceURL)
}

// PendingExternals returns the external URLs that have not been verified yet,
// in sorted order so verification passes are reproducible.
func (s *CrawlState) PendingExternals() []string {
	pending := make([]string, 0, len(s.ExternalLinks))
	for u, rec := range s.ExternalLinks {
		if rec.Status == ExternalStatusPending {
			pending = append(pending, u)
		}
	}
	sort.Strings(pending)
	return pending
}
