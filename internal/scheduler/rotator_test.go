package scheduler

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guygriffiths/wildfire/internal/tigge"
)

func TestRotatorCycles(t *testing.T) {
	creds := []tigge.Credential{
		{Key: "a", Email: "a@example.com"},
		{Key: "b", Email: "b@example.com"},
		{Key: "c", Email: "c@example.com"},
	}
	r := NewRotator(creds)

	want := []string{"a", "b", "c", "a", "b", "c", "a"}
	for i, k := range want {
		assert.Equal(t, k, r.Next().Key, "call %d", i)
	}
}

func TestRotatorSingleCredential(t *testing.T) {
	r := NewRotator([]tigge.Credential{{Key: "only", Email: "x@example.com"}})
	for i := 0; i < 5; i++ {
		assert.Equal(t, "only", r.Next().Key)
	}
}

func TestRotatorBalancedUnderConcurrency(t *testing.T) {
	creds := []tigge.Credential{{Key: "a"}, {Key: "b"}, {Key: "c"}, {Key: "d"}}
	r := NewRotator(creds)

	const perWorker = 100
	const workers = 8

	var mu sync.Mutex
	counts := make(map[string]int)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				cred := r.Next()
				mu.Lock()
				counts[cred.Key]++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	// 800 assignments over 4 keys divides evenly; the mutex guarantees
	// no assignment is lost or duplicated.
	require.Len(t, counts, 4)
	for key, n := range counts {
		assert.Equal(t, workers*perWorker/len(creds), n, "key %s", key)
	}
}
