package publisher

import "context"

// RecordKey is the stream field under which a tender is published
const RecordKey = "tender"

// Publisher represents a sink for scraped tenders
type Publisher interface {
	// Publish appends a message to one of the publisher's streams
	Publish(ctx context.Context, key string, message []byte) error

	// TrimStreams trims all streams to the configured maximum length
	TrimStreams(ctx context.Context) error

	// Close closes the publisher connection
	Close() error
}
