package progress

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/jedib0t/go-pretty/v6/progress"

	"sjsage522/tenderscraper/internal/tenderboard"
)

// Display renders one tracker for the whole run plus one per page being
// extracted. It implements tenderboard.RowObserver.
type Display struct {
	out io.Writer

	mu     sync.Mutex
	pw     progress.Writer
	pages  *progress.Tracker
	rows   map[int]*progress.Tracker
	failed int
}

var _ tenderboard.RowObserver = (*Display)(nil)

// New creates a display writing to out
func New(out io.Writer) *Display {
	return &Display{out: out, rows: make(map[int]*progress.Tracker)}
}

// Start begins rendering a run of totalPages pages
func (d *Display) Start(totalPages int) {
	d.mu.Lock()
	defer d.mu.Unlock()

	pw := progress.NewWriter()
	pw.SetOutputWriter(d.out)
	pw.SetAutoStop(false)
	pw.SetTrackerLength(25)
	pw.SetTrackerPosition(progress.PositionRight)
	pw.SetUpdateFrequency(100 * time.Millisecond)
	pw.SetStyle(progress.StyleDefault)
	pw.Style().Visibility.ETA = true
	pw.Style().Visibility.Value = true

	d.pw = pw
	d.pages = &progress.Tracker{Message: "Pages", Total: int64(totalPages), Units: progress.UnitsDefault}
	d.rows = make(map[int]*progress.Tracker)
	d.failed = 0
	pw.AppendTracker(d.pages)

	go pw.Render()
	for !pw.IsRenderInProgress() {
		time.Sleep(time.Millisecond)
	}
}

// Stop finishes rendering and waits for the last frame
func (d *Display) Stop() {
	d.mu.Lock()
	pw := d.pw
	if d.pages != nil && !d.pages.IsDone() {
		d.pages.MarkAsDone()
	}
	d.mu.Unlock()

	if pw == nil {
		return
	}
	pw.Stop()
	for pw.IsRenderInProgress() {
		time.Sleep(10 * time.Millisecond)
	}
}

// PageStarted adds a row tracker for page
func (d *Display) PageStarted(page, rows int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.pw == nil {
		return
	}
	t := &progress.Tracker{Message: fmt.Sprintf("Page %d", page), Total: int64(rows), Units: progress.UnitsDefault}
	d.rows[page] = t
	d.pw.AppendTracker(t)
}

// RowExtracted advances the page's tracker
func (d *Display) RowExtracted(page int) {
	d.mu.Lock()
	t := d.rows[page]
	d.mu.Unlock()
	if t != nil {
		t.Increment(1)
	}
}

// PageFinished closes the page's tracker and advances the run tracker
func (d *Display) PageFinished(page int, status tenderboard.PageStatus) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if t := d.rows[page]; t != nil {
		if status == tenderboard.PageFailed {
			t.MarkAsErrored()
		} else {
			t.MarkAsDone()
		}
		delete(d.rows, page)
	}
	if status == tenderboard.PageFailed {
		d.failed++
	}
	if d.pages != nil {
		d.pages.Increment(1)
	}
}

// Completed returns how many pages have finished and how many of them failed
func (d *Display) Completed() (pages int, failed int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.pages == nil {
		return 0, d.failed
	}
	return int(d.pages.Value()), d.failed
}
