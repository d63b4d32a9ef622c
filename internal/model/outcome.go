package model

import "time"

// AggregateOutcome is the single summarized result of one collection run
// across all eligible tabs.
type AggregateOutcome struct {
	// RequestID identifies the collection request that produced this outcome.
	RequestID string `json:"requestId,omitempty"`

	// Success is true when at least one tab yielded a download link.
	Success bool `json:"success"`

	// TotalLinkCount is the sum of the link counts of all TabResults.
	TotalLinkCount int `json:"linkCount"`

	// TabCount is the number of eligible tabs that were scanned without error.
	TabCount int `json:"tabCount"`

	// TabResults holds one entry per tab that yielded at least one link,
	// in the order the host enumerated the tabs.
	TabResults []TabResult `json:"results"`

	// TabsSkipped counts tabs excluded by the internal-page filter.
	TabsSkipped int `json:"tabsSkipped"`

	// TabsFailed counts eligible tabs whose scan failed.
	TabsFailed int `json:"tabsFailed"`

	// StartedAt is when the run began.
	StartedAt time.Time `json:"startedAt"`

	// CompletedAt is when the run finished.
	CompletedAt time.Time `json:"completedAt"`
}

// NewAggregateOutcome creates an empty outcome for the given request.
func NewAggregateOutcome(requestID string, startedAt time.Time) *AggregateOutcome {
	return &AggregateOutcome{
		RequestID:  requestID,
		TabResults: make([]TabResult, 0),
		StartedAt:  startedAt,
	}
}

// RecordScan records a tab that was scanned successfully.
// Tabs without links are counted but not added to TabResults.
func (o *AggregateOutcome) RecordScan(title, url string, links []LinkRecord) {
	o.TabCount++
	if len(links) == 0 {
		return
	}
	o.TabResults = append(o.TabResults, TabResult{
		TabTitle: title,
		TabURL:   url,
		Links:    links,
	})
	o.TotalLinkCount += len(links)
	o.Success = true
}

// RecordSkipped records a tab excluded by the eligibility filter.
func (o *AggregateOutcome) RecordSkipped() {
	o.TabsSkipped++
}

// RecordFailure records an eligible tab whose scan failed.
func (o *AggregateOutcome) RecordFailure() {
	o.TabsFailed++
}

// Complete stamps the completion time.
func (o *AggregateOutcome) Complete(at time.Time) {
	o.CompletedAt = at
}

// URLs flattens every link URL in tab order, one entry per LinkRecord.
// Tab boundaries are not preserved.
func (o *AggregateOutcome) URLs() []string {
	urls := make([]string, 0, o.TotalLinkCount)
	for _, tr := range o.TabResults {
		for _, link := range tr.Links {
			urls = append(urls, link.URL)
		}
	}
	return urls
}

// Duration returns how long the run took, or zero if it has not completed.
func (o *AggregateOutcome) Duration() time.Duration {
	if o.CompletedAt.IsZero() || o.StartedAt.IsZero() {
		return 0
	}
	return o.CompletedAt.Sub(o.StartedAt)
}
