package model

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

// TestAggregateOutcome tests the bookkeeping of a collection run.
func TestAggregateOutcome(t *testing.T) {
	t.Parallel()

	t.Run("tabs without links are counted but omitted", func(t *testing.T) {
		t.Parallel()

		o := NewAggregateOutcome("req-1", time.Now())
		o.RecordScan("A", "https://a.example/", []LinkRecord{
			{Text: "Download", URL: "https://a.example/1.zip"},
			{Text: "Download", URL: "https://a.example/2.zip"},
		})
		o.RecordScan("B", "https://b.example/", nil)
		o.RecordSkipped()

		if o.TabCount != 2 {
			t.Errorf("expected TabCount 2, got %d", o.TabCount)
		}
		if len(o.TabResults) != 1 {
			t.Fatalf("expected 1 tab result, got %d", len(o.TabResults))
		}
		if o.TabResults[0].TabTitle != "A" {
			t.Errorf("expected tab A, got %q", o.TabResults[0].TabTitle)
		}
		if o.TotalLinkCount != 2 {
			t.Errorf("expected 2 links, got %d", o.TotalLinkCount)
		}
		if !o.Success {
			t.Error("expected success")
		}
		if o.TabsSkipped != 1 {
			t.Errorf("expected 1 skipped tab, got %d", o.TabsSkipped)
		}
	})

	t.Run("no links means no success", func(t *testing.T) {
		t.Parallel()

		o := NewAggregateOutcome("req-2", time.Now())
		o.RecordScan("B", "https://b.example/", []LinkRecord{})
		o.RecordFailure()

		if o.Success {
			t.Error("expected success to be false")
		}
		if o.TotalLinkCount != 0 {
			t.Errorf("expected 0 links, got %d", o.TotalLinkCount)
		}
		if o.TabsFailed != 1 {
			t.Errorf("expected 1 failed tab, got %d", o.TabsFailed)
		}
	})

	t.Run("URLs flattens in tab order", func(t *testing.T) {
		t.Parallel()

		o := NewAggregateOutcome("req-3", time.Now())
		o.RecordScan("A", "https://a.example/", []LinkRecord{{URL: "https://a.example/1"}})
		o.RecordScan("C", "https://c.example/", []LinkRecord{{URL: "https://c.example/1"}, {URL: "https://c.example/2"}})

		urls := o.URLs()
		want := []string{"https://a.example/1", "https://c.example/1", "https://c.example/2"}
		if len(urls) != len(want) {
			t.Fatalf("expected %d urls, got %d", len(want), len(urls))
		}
		for i := range want {
			if urls[i] != want[i] {
				t.Errorf("urls[%d] = %q, expected %q", i, urls[i], want[i])
			}
		}
		if len(urls) != o.TotalLinkCount {
			t.Errorf("url count %d does not match TotalLinkCount %d", len(urls), o.TotalLinkCount)
		}
	})

	t.Run("duration is zero until completed", func(t *testing.T) {
		t.Parallel()

		start := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
		o := NewAggregateOutcome("req-4", start)
		if o.Duration() != 0 {
			t.Errorf("expected zero duration, got %v", o.Duration())
		}
		o.Complete(start.Add(1500 * time.Millisecond))
		if o.Duration() != 1500*time.Millisecond {
			t.Errorf("expected 1.5s, got %v", o.Duration())
		}
	})
}

// TestMessages tests request and response message helpers.
func TestMessages(t *testing.T) {
	t.Parallel()

	t.Run("request uses the collect action", func(t *testing.T) {
		t.Parallel()

		req := NewCollectRequest("abc", true)
		if err := req.Validate(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		data, err := json.Marshal(req)
		if err != nil {
			t.Fatalf("failed to marshal: %v", err)
		}
		want := `{"action":"collectAllDownloadLinks","requestId":"abc","settings":{"allowVariations":true}}`
		if string(data) != want {
			t.Errorf("got %s, expected %s", data, want)
		}
	})

	t.Run("request with another action is rejected", func(t *testing.T) {
		t.Parallel()

		req := CollectRequest{Action: "getDownloadLinks"}
		if err := req.Validate(); !errors.Is(err, ErrUnknownAction) {
			t.Errorf("expected ErrUnknownAction, got %v", err)
		}
	})

	t.Run("complete message carries the outcome", func(t *testing.T) {
		t.Parallel()

		o := NewAggregateOutcome("id-1", time.Now())
		o.RecordScan("A", "https://a.example/", []LinkRecord{{Text: "Download", URL: "https://a.example/x"}})

		msg := CompleteMessage(o)
		if !msg.IsComplete() || msg.IsError() {
			t.Fatalf("unexpected action %q", msg.Action)
		}
		if msg.LinkCount != 1 || msg.TabCount != 1 {
			t.Errorf("unexpected counts: links=%d tabs=%d", msg.LinkCount, msg.TabCount)
		}
		if msg.Outcome() != o {
			t.Error("expected the in-process outcome to be returned")
		}
	})

	t.Run("decoded message rebuilds the outcome", func(t *testing.T) {
		t.Parallel()

		raw := `{"action":"collectionComplete","requestId":"id-2","success":true,"linkCount":1,"tabCount":3,
			"results":[{"tabTitle":"A","tabUrl":"https://a.example/","downloadLinks":[{"text":"Download","url":"https://a.example/x","context":"<a>"}]}]}`
		var msg Message
		if err := json.Unmarshal([]byte(raw), &msg); err != nil {
			t.Fatalf("failed to unmarshal: %v", err)
		}

		o := msg.Outcome()
		if o == nil {
			t.Fatal("expected outcome")
		}
		if o.RequestID != "id-2" || o.TabCount != 3 || o.TotalLinkCount != 1 {
			t.Errorf("unexpected outcome: %+v", o)
		}
		if urls := o.URLs(); len(urls) != 1 || urls[0] != "https://a.example/x" {
			t.Errorf("unexpected urls: %v", urls)
		}
	})

	t.Run("error message has no outcome", func(t *testing.T) {
		t.Parallel()

		msg := ErrorMessage("id-3", "enumeration failed")
		if !msg.IsError() {
			t.Fatalf("expected error action, got %q", msg.Action)
		}
		if msg.Outcome() != nil {
			t.Error("expected nil outcome")
		}
		if msg.Error != "enumeration failed" {
			t.Errorf("unexpected error text %q", msg.Error)
		}
	})
	t.Run("error message encodes only the error shape", func(t *testing.T) {
		t.Parallel()

		data, err := json.Marshal(ErrorMessage("id-4", "no tabs API"))
		if err != nil {
			t.Fatalf("failed to marshal: %v", err)
		}
		want := `{"action":"collectionError","requestId":"id-4","error":"no tabs API"}`
		if string(data) != want {
			t.Errorf("expected %s, got %s", want, data)
		}
	})

	t.Run("empty complete message keeps its counts", func(t *testing.T) {
		t.Parallel()

		o := NewAggregateOutcome("id-5", time.Now())
		o.Complete(time.Now())

		data, err := json.Marshal(CompleteMessage(o))
		if err != nil {
			t.Fatalf("failed to marshal: %v", err)
		}
		var got map[string]any
		if err := json.Unmarshal(data, &got); err != nil {
			t.Fatalf("failed to unmarshal: %v", err)
		}
		if got["success"] != false || got["linkCount"] != float64(0) || got["tabCount"] != float64(0) {
			t.Errorf("unexpected complete shape: %s", data)
		}
		if _, ok := got["error"]; ok {
			t.Errorf("complete shape must not carry error: %s", data)
		}
	})
}
