package livemetrics

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDocumentList_TryAppend(t *testing.T) {
	var list documentList

	kept := list.tryAppend(Document{Kind: DocumentKindRequest, Name: "op"})
	assert.True(t, kept)
	assert.Len(t, list.peek(), 1)
}

func TestDocumentList_DropsBeyondBudget(t *testing.T) {
	var list documentList

	for i := 0; i < documentBudget; i++ {
		assert.True(t, list.tryAppend(Document{Kind: DocumentKindException}))
	}

	assert.False(t, list.tryAppend(Document{Kind: DocumentKindException}))
	assert.Len(t, list.peek(), documentBudget)
}

func TestDocumentList_PeekDoesNotClear(t *testing.T) {
	var list documentList
	list.tryAppend(Document{Kind: DocumentKindRequest})

	first := list.peek()
	second := list.peek()

	assert.Equal(t, first, second)
	assert.Len(t, list.snapshotAndReset(), 1)
}

func TestDocumentList_SnapshotAndResetClears(t *testing.T) {
	var list documentList
	list.tryAppend(Document{Kind: DocumentKindDependency})

	out := list.snapshotAndReset()
	assert.Len(t, out, 1)
	assert.Nil(t, list.snapshotAndReset())
}

func TestDocumentList_ConcurrentAppends(t *testing.T) {
	var list documentList
	var wg sync.WaitGroup

	const goroutines = 20
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			list.tryAppend(Document{Kind: DocumentKindRequest})
		}()
	}
	wg.Wait()

	assert.Len(t, list.peek(), goroutines)
}
