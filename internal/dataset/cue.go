package dataset

import (
	"fmt"
	"reflect"
	"time"

	"github.com/webtiming/timingsrc/internal/interval"
)

// Cue is an immutable record stored under Key.
//
// Every mutation of a key stores a new Cue. Callers must not modify a Cue
// obtained from the dataset.
type Cue struct {
	Key      string
	Interval *interval.Interval
	Data     any
	Info     Info
}

// Info carries bookkeeping for a cue.
type Info struct {
	// CreatedAt is when the key was first inserted.
	CreatedAt time.Time
	// ChangedAt is when this record replaced the previous one.
	ChangedAt time.Time
	// Version counts replacements, starting at 0.
	Version int
	// Seq is the batch sequence number that produced this record.
	Seq int64
}

// Singular reports whether the cue has a single-point interval.
func (c *Cue) Singular() bool {
	return c != nil && c.Interval != nil && c.Interval.Singular()
}

func (c *Cue) String() string {
	if c == nil {
		return "<nil>"
	}
	iv := "-"
	if c.Interval != nil {
		iv = c.Interval.String()
	}
	return fmt.Sprintf("%s %s", c.Key, iv)
}

// Arg describes one cue mutation passed to Update.
//
// HasInterval and HasData tell which fields the mutation sets. For an
// existing key an unset field keeps its current value; when neither is set
// the key is deleted. For a new key an unset field is absent.
type Arg struct {
	Key         string
	Interval    *interval.Interval
	Data        any
	HasInterval bool
	HasData     bool
}

// Put sets both interval and data. A nil interval makes the cue
// interval-less.
func Put(key string, iv *interval.Interval, data any) Arg {
	return Arg{Key: key, Interval: iv, Data: data, HasInterval: true, HasData: true}
}

// PutInterval sets the interval and keeps existing data.
func PutInterval(key string, iv interval.Interval) Arg {
	return Arg{Key: key, Interval: &iv, HasInterval: true}
}

// PutData sets data and keeps the existing interval.
func PutData(key string, data any) Arg {
	return Arg{Key: key, Data: data, HasData: true}
}

// Remove deletes key.
func Remove(key string) Arg {
	return Arg{Key: key}
}

// Delta classifies the change of one cue field.
type Delta int

const (
	Noop Delta = iota
	Insert
	Replace
	Delete
)

func (d Delta) String() string {
	switch d {
	case Insert:
		return "insert"
	case Replace:
		return "replace"
	case Delete:
		return "delete"
	default:
		return "noop"
	}
}

// CueDelta holds the interval and data deltas between two cue states.
type CueDelta struct {
	Interval Delta
	Data     Delta
}

// Noop reports whether neither field changed.
func (d CueDelta) Noop() bool {
	return d.Interval == Noop && d.Data == Noop
}

// EqualsFunc compares cue data.
type EqualsFunc func(a, b any) bool

// DeepEqual is the default data comparison.
func DeepEqual(a, b any) bool {
	return reflect.DeepEqual(a, b)
}

// ComputeDelta classifies the change from a to b. Either may be nil.
func ComputeDelta(a, b *Cue, equals EqualsFunc) CueDelta {
	if equals == nil {
		equals = DeepEqual
	}
	var aIv, bIv *interval.Interval
	var aData, bData any
	if a != nil {
		aIv, aData = a.Interval, a.Data
	}
	if b != nil {
		bIv, bData = b.Interval, b.Data
	}
	var d CueDelta
	switch {
	case aIv == nil && bIv == nil:
		d.Interval = Noop
	case aIv == nil:
		d.Interval = Insert
	case bIv == nil:
		d.Interval = Delete
	case aIv.Equal(*bIv):
		d.Interval = Noop
	default:
		d.Interval = Replace
	}
	switch {
	case aData == nil && bData == nil:
		d.Data = Noop
	case aData == nil:
		d.Data = Insert
	case bData == nil:
		d.Data = Delete
	case equals(aData, bData):
		d.Data = Noop
	default:
		d.Data = Replace
	}
	return d
}

// EventItem reports the transition of one key: Old is the state before the
// batch, New the state after. Either may be nil.
type EventItem struct {
	Key string
	New *Cue
	Old *Cue
}

// BatchItem is an EventItem with its delta.
type BatchItem struct {
	EventItem
	Delta CueDelta
}

// EndpointItem pairs a cue with one of its endpoints.
type EndpointItem struct {
	Endpoint interval.Endpoint
	Cue      *Cue
}

// Batch is the complete outcome of one Update call, in first-touch order.
type Batch struct {
	Seq   int64
	Items []BatchItem
	// Relevance spans every endpoint touched by the batch, old and new.
	// Nil when no item has an interval.
	Relevance *interval.Interval

	byKey map[string]int
}

func newBatch(seq int64) *Batch {
	return &Batch{Seq: seq, byKey: map[string]int{}}
}

// Len returns the number of keys in the batch.
func (b *Batch) Len() int {
	return len(b.Items)
}

// Get returns the item for key.
func (b *Batch) Get(key string) (BatchItem, bool) {
	i, ok := b.byKey[key]
	if !ok {
		return BatchItem{}, false
	}
	return b.Items[i], true
}

func (b *Batch) set(item BatchItem) {
	if i, ok := b.byKey[item.Key]; ok {
		b.Items[i] = item
		return
	}
	b.byKey[item.Key] = len(b.Items)
	b.Items = append(b.Items, item)
}

// Events returns the items whose delta is not a no-op.
func (b *Batch) Events() []EventItem {
	out := make([]EventItem, 0, len(b.Items))
	for _, it := range b.Items {
		if !it.Delta.Noop() {
			out = append(out, it.EventItem)
		}
	}
	return out
}
