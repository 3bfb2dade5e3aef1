package bus

import (
	"fmt"

	"github.com/roach88/inkwell/internal/model"
)

// Op is the mutation an entity event announces.
type Op string

const (
	OpAdded   Op = "added"
	OpUpdated Op = "updated"
	OpDeleted Op = "deleted"

	// OpReordered announces a bulk reorder of an ordered collection.
	OpReordered Op = "reordered"
)

// Topic names one logical channel on the bus, e.g. "character.added".
type Topic string

const (
	// TopicStatsChanged fires when a book's word count or writing log moved.
	TopicStatsChanged Topic = "book.stats_changed"

	// TopicChildCountChanged fires when a child collection of a book grew or
	// shrank.
	TopicChildCountChanged Topic = "book.child_count_changed"
)

// TopicFor returns the topic for an entity kind and operation.
func TopicFor(kind model.Kind, op Op) Topic {
	return Topic(fmt.Sprintf("%s.%s", kind, op))
}

// EntityChanged is the payload of every kind.op topic.
type EntityChanged struct {
	Kind   model.Kind `json:"kind"`
	BookID int64      `json:"book_id"`
	ID     int64      `json:"id"`
}

// StatsChanged is the payload of TopicStatsChanged. Delta is the signed
// change to the book's cumulative word count.
type StatsChanged struct {
	BookID int64  `json:"book_id"`
	Delta  int    `json:"delta"`
	Date   string `json:"date"`
}

// ChildCountChanged is the payload of TopicChildCountChanged. Count is the
// collection size after the mutation.
type ChildCountChanged struct {
	BookID int64      `json:"book_id"`
	Kind   model.Kind `json:"kind"`
	Count  int        `json:"count"`
}
