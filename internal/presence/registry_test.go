package presence_test

import (
	"fmt"
	"sync"
	"testing"

	"astrochat/backend/internal/presence"

	"github.com/stretchr/testify/assert"
)

type conn struct{ n int }

func TestRegister_ReplacesAndReturnsPrevious(t *testing.T) {
	r := presence.NewRegistry[*conn]()
	c1, c2 := &conn{1}, &conn{2}

	_, replaced := r.Register("u1", c1)
	assert.False(t, replaced)

	prev, replaced := r.Register("u1", c2)
	assert.True(t, replaced)
	assert.Same(t, c1, prev)

	got, ok := r.Lookup("u1")
	assert.True(t, ok)
	assert.Same(t, c2, got)
}

// A connection that was replaced must not take the newer one offline when it closes.
func TestUnregister_StaleHandleIsNoop(t *testing.T) {
	r := presence.NewRegistry[*conn]()
	c1, c2 := &conn{1}, &conn{2}

	r.Register("u1", c1)
	r.Register("u1", c2)

	assert.False(t, r.Unregister("u1", c1))
	assert.True(t, r.IsOnline("u1"))
	assert.Equal(t, []string{"u1"}, r.Snapshot())

	assert.True(t, r.Unregister("u1", c2))
	assert.False(t, r.IsOnline("u1"))
	assert.Empty(t, r.Snapshot())
}

func TestSnapshot_SortedCopy(t *testing.T) {
	r := presence.NewRegistry[*conn]()
	for _, id := range []string{"c", "a", "b"} {
		r.Register(id, &conn{})
	}
	snap := r.Snapshot()
	assert.Equal(t, []string{"a", "b", "c"}, snap)

	snap[0] = "mutated"
	assert.True(t, r.IsOnline("a"))
	assert.Len(t, r.Handles(), 3)
}

func TestRegistry_Concurrent(t *testing.T) {
	r := presence.NewRegistry[*conn]()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("u%d", i%10)
			c := &conn{i}
			r.Register(id, c)
			_ = r.Snapshot()
			r.Unregister(id, c)
		}(i)
	}
	wg.Wait()
	// Every surviving entry must be owned by some handle that registered last.
	for _, id := range r.Snapshot() {
		h, ok := r.Lookup(id)
		assert.True(t, ok)
		assert.NotNil(t, h)
	}
}
