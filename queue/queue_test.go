package queue

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQueue(t *testing.T) {
	q := New("a", "b")
	q.Enqueue("c")
	assert.Equal(t, 3, q.Len())

	for _, expected := range []string{"a", "b", "c"} {
		item, ok := q.Dequeue()
		assert.True(t, ok)
		assert.Equal(t, expected, item)
	}

	_, ok := q.Dequeue()
	assert.False(t, ok)
	assert.Equal(t, 0, q.Len())
}
