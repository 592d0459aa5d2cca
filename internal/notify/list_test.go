package notify

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestList_PublishOrder(t *testing.T) {
	var l List[int]
	var got []string
	l.Add(func(v int) { got = append(got, "a") })
	l.Add(func(v int) { got = append(got, "b") })
	l.Publish(1)
	assert.Equal(t, []string{"a", "b"}, got)
	assert.Equal(t, 2, l.Len())
}

func TestList_Remove(t *testing.T) {
	var l List[string]
	var got []string
	h := l.Add(func(v string) { got = append(got, "first:"+v) })
	l.Add(func(v string) { got = append(got, "second:"+v) })

	l.Remove(h)
	l.Remove(h)
	l.Remove(Handle(99))
	l.Publish("x")
	assert.Equal(t, []string{"second:x"}, got)
	assert.Equal(t, 1, l.Len())
}

func TestList_RemoveDuringPublish(t *testing.T) {
	var l List[int]
	calls := 0
	var h Handle
	h = l.Add(func(int) {
		calls++
		l.Remove(h)
	})
	later := 0
	l.Add(func(int) { later++ })

	l.Publish(1)
	l.Publish(2)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 2, later)
}

func TestList_AddDuringPublish(t *testing.T) {
	var l List[int]
	added := 0
	l.Add(func(int) {
		l.Add(func(int) { added++ })
	})
	l.Publish(1)
	assert.Equal(t, 0, added, "subscriptions made during a round start with the next one")
	l.Publish(2)
	assert.Equal(t, 1, added)
}
