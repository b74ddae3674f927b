package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStringSet_MarshalSorted(t *testing.T) {
	s := NewStringSet("zebra", "apple", "mango")

	data, err := json.Marshal(s)
	require.NoError(t, err)
	assert.Equal(t, `["apple","mango","zebra"]`, string(data), "set serialization must be order-independent")

	var back StringSet
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, s, back)
}

func TestRecordInternalLink_Aggregation(t *testing.T) {
	s := NewCrawlState()
	s.RecordInternalLink("https://acme.test/about", "About", "https://acme.test/")
	s.RecordInternalLink("https://acme.test/about", "About Us", "https://acme.test/products")
	s.RecordInternalLink("https://acme.test/about", "", "https://acme.test/products")

	stat := s.Stats["https://acme.test/about"]
	require.NotNil(t, stat)
	assert.Equal(t, 3, stat.Count, "every occurrence counts, even repeats from one page")
	assert.ElementsMatch(t, []string{"About", "About Us"}, stat.Anchors.Values(), "empty anchor texts are not collected")
	assert.ElementsMatch(t, []string{"https://acme.test/", "https://acme.test/products"}, stat.Sources.Values())
}

func TestRecordPageVisit_SeedSelfSources(t *testing.T) {
	s := NewCrawlState()
	s.RecordPageVisit("https://acme.test/")

	stat := s.Stats["https://acme.test/"]
	require.NotNil(t, stat, "a visited page always appears in stats")
	assert.Zero(t, stat.Count, "a visit is not a reference")
	assert.ElementsMatch(t, []string{"https://acme.test/"}, stat.Sources.Values())

	// A later visit of an already-referenced page changes nothing.
	s.RecordInternalLink("https://acme.test/about", "About", "https://acme.test/")
	s.RecordPageVisit("https://acme.test/about")
	about := s.Stats["https://acme.test/about"]
	assert.Equal(t, 1, about.Count)
	assert.ElementsMatch(t, []string{"https://acme.test/"}, about.Sources.Values())
}

func TestRecordBadRequest_SourcesFromStats(t *testing.T) {
	s := NewCrawlState()
	s.RecordInternalLink("https://acme.test/missing", "Old Page", "https://acme.test/about")
	s.RecordBadRequest("https://acme.test/missing", 404)

	rec := s.BadRequests["https://acme.test/missing"]
	require.NotNil(t, rec)
	assert.Equal(t, 404, rec.Status)
	assert.ElementsMatch(t, []string{"https://acme.test/about"}, rec.Sources.Values())
}

func TestRecordBadRequest_UnreferencedSeedFallsBackToSelf(t *testing.T) {
	s := NewCrawlState()
	s.RecordBadRequest("https://acme.test/", 503)

	rec := s.BadRequests["https://acme.test/"]
	require.NotNil(t, rec)
	assert.ElementsMatch(t, []string{"https://acme.test/"}, rec.Sources.Values(), "a bad request never has an empty source set")
}

func TestPendingExternals(t *testing.T) {
	s := NewCrawlState()
	s.RecordExternalLink("https://b.test/", "https://acme.test/")
	s.RecordExternalLink("https://a.test/", "https://acme.test/")
	s.RecordExternalLink("https://c.test/", "https://acme.test/")
	s.ExternalLinks["https://b.test/"].Status = "200"

	assert.Equal(t, []string{"https://a.test/", "https://c.test/"}, s.PendingExternals(),
		"verified links are excluded and the rest come back sorted")
}

func TestRecordExternalLink_SecondReferenceKeepsStatus(t *testing.T) {
	s := NewCrawlState()
	s.RecordExternalLink("https://partner.test/", "https://acme.test/")
	s.ExternalLinks["https://partner.test/"].Status = "404"
	s.RecordExternalLink("https://partner.test/", "https://acme.test/about")

	rec := s.ExternalLinks["https://partner.test/"]
	assert.Equal(t, "404", rec.Status, "a new referrer never resets a verified outcome")
	assert.Equal(t, 2, rec.Sources.Len())
}

func TestCrawlState_UnmarshalBackfillsSections(t *testing.T) {
	var state CrawlState
	require.NoError(t, json.Unmarshal([]byte(`{"visited":["a"],"frontier":["b"]}`), &state))

	assert.True(t, state.Visited.Contains("a"))
	assert.Equal(t, []string{"b"}, state.Frontier)
	assert.NotNil(t, state.Stats)
	assert.NotNil(t, state.BadRequests)
	assert.NotNil(t, state.ExternalLinks)
	assert.NotNil(t, state.MailtoLinks)
	assert.NotNil(t, state.TelLinks)
}
