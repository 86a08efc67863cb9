package dedup

import (
	"regexp"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shanehull/leakwatch/internal/types"
)

func TestHashID(t *testing.T) {
	a := HashID("https://t.me/breachdetector/1", "Database of 50000 user credentials leaked")
	b := HashID("https://t.me/breachdetector/1", "Database of 50000 user credentials leaked")
	c := HashID("https://t.me/breachdetector/2", "Database of 50000 user credentials leaked")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Regexp(t, regexp.MustCompile(`^[0-9a-f]{16}$`), a)
}

func TestHashIDSeparator(t *testing.T) {
	// without a separator "ab"+"c" and "a"+"bc" would collide
	assert.NotEqual(t, HashID("ab", "c"), HashID("a", "bc"))
}

func TestSetAdmit(t *testing.T) {
	s := NewSet()
	s.Seed([]types.BreachRecord{{HashID: "0000000000000001"}})

	assert.True(t, s.Contains("0000000000000001"))
	assert.False(t, s.Admit(types.BreachRecord{HashID: "0000000000000001"}))
	assert.True(t, s.Admit(types.BreachRecord{HashID: "0000000000000002"}))
	assert.False(t, s.Admit(types.BreachRecord{HashID: "0000000000000002"}))
	assert.Equal(t, 2, s.Len())
}

func TestSetConcurrentAdmitAdmitsOnce(t *testing.T) {
	s := NewSet()
	rec := types.BreachRecord{HashID: HashID("src", "content")}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		admitted int
	)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if s.Admit(rec) {
				mu.Lock()
				admitted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Equal(t, 1, admitted)
}
