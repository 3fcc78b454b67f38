package conversation

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragchat/internal/domain"
)

func TestAppendAssignsIDAndTimestamp(t *testing.T) {
	l := NewLog()
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	l.now = func() time.Time { return fixed }

	e := l.Append(domain.Entry{Kind: domain.KindQuestion, Content: "hi"})

	assert.NotEmpty(t, e.ID)
	assert.Equal(t, fixed, e.Timestamp)
	assert.Equal(t, []domain.Entry{e}, l.All())
}

func TestAppendKeepsOrder(t *testing.T) {
	l := NewLog()
	kinds := []domain.EntryKind{domain.KindQuestion, domain.KindEnhancedQuery, domain.KindAnswer, domain.KindError}
	for _, k := range kinds {
		l.Append(domain.Entry{Kind: k})
	}

	got := l.All()
	require.Len(t, got, 4)
	for i, k := range kinds {
		assert.Equal(t, k, got[i].Kind)
	}
}

func TestAllReturnsCopy(t *testing.T) {
	l := NewLog()
	l.Append(domain.Entry{Kind: domain.KindQuestion, Content: "a"})

	got := l.All()
	got[0].Content = "changed"

	assert.Equal(t, "a", l.All()[0].Content)
}

func TestClearThenAppend(t *testing.T) {
	l := NewLog()
	l.Append(domain.Entry{Kind: domain.KindQuestion, Content: "old"})
	l.Append(domain.Entry{Kind: domain.KindAnswer, Content: "old answer"})
	gen := l.Generation()

	l.Clear()
	assert.Zero(t, l.Len())
	assert.Equal(t, gen+1, l.Generation())

	l.Append(domain.Entry{Kind: domain.KindQuestion, Content: "new"})
	got := l.All()
	require.Len(t, got, 1)
	assert.Equal(t, "new", got[0].Content)
}

func TestAppendIfDropsAfterClear(t *testing.T) {
	l := NewLog()
	gen := l.Generation()

	_, ok := l.AppendIf(gen, domain.Entry{Kind: domain.KindQuestion})
	assert.True(t, ok)

	l.Clear()
	_, ok = l.AppendIf(gen, domain.Entry{Kind: domain.KindAnswer})
	assert.False(t, ok)
	assert.Zero(t, l.Len())
}

func TestConcurrentReaders(t *testing.T) {
	l := NewLog()
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = l.All()
			}
		}()
	}
	for j := 0; j < 100; j++ {
		l.Append(domain.Entry{Kind: domain.KindAnswer})
	}
	wg.Wait()
	assert.Equal(t, 100, l.Len())
}

func TestAppendTrackedGeneration(t *testing.T) {
	l := NewLog()
	l.Clear()

	e, gen := l.AppendTracked(domain.Entry{Kind: domain.KindQuestion, Content: "q"})

	assert.Equal(t, uint64(1), gen)
	assert.Equal(t, "q", e.Content)
	_, ok := l.AppendIf(gen, domain.Entry{Kind: domain.KindAnswer})
	assert.True(t, ok)
}
