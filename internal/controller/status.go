package controller

import (
	"fmt"
	"io"
	"sync"
)

// Kind classifies a status notice.
type Kind string

const (
	// KindSuccess is shown after links were collected and exported.
	KindSuccess Kind = "success"
	// KindInfo is shown when no tab had a download link.
	KindInfo Kind = "info"
	// KindError is shown for failures and timeouts.
	KindError Kind = "error"
)

// Status is one notice shown to the user.
type Status struct {
	Kind    Kind
	Message string
}

// Presenter displays status notices.
type Presenter interface {
	Show(Status)
}

// SuccessStatus reports a run that found links.
func SuccessStatus(links, tabs int) Status {
	return Status{
		Kind:    KindSuccess,
		Message: fmt.Sprintf("Successfully collected %d download links from %d tabs!", links, tabs),
	}
}

// EmptyStatus reports a run that found nothing.
func EmptyStatus() Status {
	return Status{
		Kind:    KindInfo,
		Message: `No links with "Download" text found in any open tabs.`,
	}
}

// ErrorStatus reports a failed run.
func ErrorStatus(reason string) Status {
	return Status{
		Kind:    KindError,
		Message: fmt.Sprintf("Error occurred: %s. Please try again.", reason),
	}
}

// TimeoutStatus reports a run that did not answer in time.
func TimeoutStatus() Status {
	return Status{
		Kind:    KindError,
		Message: "Collection timed out. Please try again.",
	}
}

// WriterPresenter prints one line per notice.
type WriterPresenter struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriterPresenter creates a presenter writing to w.
func NewWriterPresenter(w io.Writer) *WriterPresenter {
	return &WriterPresenter{w: w}
}

// Show implements Presenter.
func (p *WriterPresenter) Show(s Status) {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, _ = fmt.Fprintln(p.w, s.Message)
}

// discardPresenter drops every notice.
type discardPresenter struct{}

func (discardPresenter) Show(Status) {}
