package progress

import (
	"bytes"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"sjsage522/tenderscraper/internal/tenderboard"
)

// syncBuffer guards the buffer the render goroutine writes to
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}


func TestDisplayTracksPages(t *testing.T) {
	out := &syncBuffer{}
	d := New(out)
	d.Start(3)

	var wg sync.WaitGroup
	for page := 1; page <= 3; page++ {
		wg.Add(1)
		go func(page int) {
			defer wg.Done()
			d.PageStarted(page, 2)
			d.RowExtracted(page)
			d.RowExtracted(page)
			status := tenderboard.PageOK
			if page == 2 {
				status = tenderboard.PageFailed
			}
			d.PageFinished(page, status)
		}(page)
	}
	wg.Wait()
	d.Stop()

	pages, failed := d.Completed()
	assert.Equal(t, 3, pages)
	assert.Equal(t, 1, failed)
}

func TestDisplayWithoutStartIgnoresEvents(t *testing.T) {
	d := New(&syncBuffer{})
	assert.NotPanics(t, func() {
		d.PageStarted(1, 4)
		d.RowExtracted(1)
		d.PageFinished(1, tenderboard.PageEmpty)
		d.Stop()
	})
	pages, failed := d.Completed()
	assert.Equal(t, 0, pages)
	assert.Equal(t, 0, failed)
}
