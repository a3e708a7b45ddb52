package index

import (
	"time"

	"lsp-bridge/internal/event"
)

// FileIndexedEvent fires after a file's symbols are stored
type FileIndexedEvent struct {
	URI         string
	SymbolCount int
	FromCache   bool
}

// IndexErrorEvent fires when one file fails; siblings keep going
type IndexErrorEvent struct {
	URI string
	Err error
}

// IndexingStartedEvent fires once per IndexFiles batch
type IndexingStartedEvent struct {
	Files int
}

// IndexingCompletedEvent fires when a batch finishes, failures included
type IndexingCompletedEvent struct {
	Files    int
	Failed   int
	Duration time.Duration
}

// FileRemovedEvent fires after a file's contribution is retracted
type FileRemovedEvent struct {
	URI string
}

// Events groups the indexer's typed streams
type Events struct {
	FileIndexed       *event.Stream[FileIndexedEvent]
	IndexError        *event.Stream[IndexErrorEvent]
	IndexingStarted   *event.Stream[IndexingStartedEvent]
	IndexingCompleted *event.Stream[IndexingCompletedEvent]
	FileRemoved       *event.Stream[FileRemovedEvent]
}

func newEvents() *Events {
	return &Events{
		FileIndexed:       event.NewStream[FileIndexedEvent](),
		IndexError:        event.NewStream[IndexErrorEvent](),
		IndexingStarted:   event.NewStream[IndexingStartedEvent](),
		IndexingCompleted: event.NewStream[IndexingCompletedEvent](),
		FileRemoved:       event.NewStream[FileRemovedEvent](),
	}
}
