// Package realtime carries row-level change events from the persistence
// gateway to the views that display them.
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Op is the kind of row change an Event describes.
type Op string

const (
	OpInsert Op = "INSERT"
	OpUpdate Op = "UPDATE"
	OpDelete Op = "DELETE"

	// OpResync is delivered locally after a feed reconnects. Events may
	// have been missed, so listeners should refetch.
	OpResync Op = "RESYNC"
)

// Event is a committed row change.
type Event struct {
	// Origin identifies the process that committed the change and Seq
	// orders changes within that process. Together they identify the
	// event for deduplication.
	Origin string `json:"origin"`
	Seq    uint64 `json:"seq"`

	Table string `json:"table"`
	Op    Op     `json:"op"`
	ID    string `json:"id"`

	// Columns holds the filterable columns of the row (e.g. user_id,
	// project_id). Delete events carry the values of the removed row.
	Columns map[string]string `json:"columns,omitempty"`

	// New is the JSON encoding of the row after the change. Empty for
	// deletes.
	New json.RawMessage `json:"new,omitempty"`

	At time.Time `json:"at"`
}

// Key identifies the event across delivery paths.
func (e Event) Key() string {
	return fmt.Sprintf("%s/%d", e.Origin, e.Seq)
}

// Decode unmarshals the row carried by the event into v.
func (e Event) Decode(v any) error {
	if len(e.New) == 0 {
		return fmt.Errorf("decoding %s %s event: empty row", e.Table, e.Op)
	}
	if err := json.Unmarshal(e.New, v); err != nil {
		return fmt.Errorf("decoding %s %s event: %w", e.Table, e.Op, err)
	}
	return nil
}

// Scope selects the events of one table, optionally filtered by one
// column equality, e.g. notifications where user_id = u1.
type Scope struct {
	Table  string
	Column string
	Value  string
}

// TableScope selects every event of table.
func TableScope(table string) Scope {
	return Scope{Table: table}
}

// Filtered selects events of table whose column equals value.
func Filtered(table, column, value string) Scope {
	return Scope{Table: table, Column: column, Value: value}
}

// Key is the canonical name of the scope, e.g. "notifications:user_id=eq.u1".
func (s Scope) Key() string {
	if s.Column == "" {
		return s.Table
	}
	return fmt.Sprintf("%s:%s=eq.%s", s.Table, s.Column, s.Value)
}

// Matches reports whether ev falls within the scope. Resync events match
// any scope on their table.
func (s Scope) Matches(ev Event) bool {
	if ev.Table != s.Table {
		return false
	}
	if s.Column == "" || ev.Op == OpResync {
		return true
	}
	return ev.Columns[s.Column] == s.Value
}

// Publisher receives committed change events.
type Publisher interface {
	Publish(ev Event)
}

// Stream is one open backend feed. Done is closed when the stream ends;
// Err then reports why (nil after Close).
type Stream interface {
	Done() <-chan struct{}
	Err() error
	Close()
}

// Feed opens backend change feeds for a scope. onEvent is invoked
// sequentially, in commit order, from a goroutine owned by the stream.
type Feed interface {
	Open(ctx context.Context, scope Scope, onEvent func(Event)) (Stream, error)
}
