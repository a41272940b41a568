package id

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateUnique(t *testing.T) {
	gen := NewGenerator()

	a := gen.Generate()
	b := gen.Generate()
	assert.NotEqual(t, a.String(), b.String())
	assert.Len(t, a.String(), 26)
}

func TestTypedIDs(t *testing.T) {
	inst := NewInstanceID()
	prm := NewPromptID()
	req := NewRequestID()

	assert.True(t, HasPrefix(inst.String(), InstancePrefix), inst)
	assert.True(t, HasPrefix(prm.String(), PromptPrefix), prm)
	assert.True(t, HasPrefix(req.String(), RequestPrefix), req)
	assert.False(t, HasPrefix(inst.String(), PromptPrefix))
	assert.False(t, HasPrefix("inst_not-a-ulid", InstancePrefix))
}

func TestWindowHandleIsUUID(t *testing.T) {
	h := NewWindowHandle()
	_, err := uuid.Parse(h.String())
	require.NoError(t, err)
	assert.NotEqual(t, h, NewWindowHandle())
}

func TestTimestamp(t *testing.T) {
	before := time.Now().Add(-time.Second)
	inst := NewInstanceID()

	ts, err := Timestamp(inst.String())
	require.NoError(t, err)
	assert.True(t, ts.After(before))

	_, err = Timestamp("inst_garbage")
	assert.Error(t, err)
}

func TestConcurrentGenerationIsUnique(t *testing.T) {
	const workers, per = 8, 500
	var (
		mu   sync.Mutex
		seen = make(map[InstanceID]struct{}, workers*per)
		wg   sync.WaitGroup
	)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < per; i++ {
				id := NewInstanceID()
				mu.Lock()
				seen[id] = struct{}{}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Len(t, seen, workers*per)
}

func TestMonotonicWithinMillisecond(t *testing.T) {
	gen := NewGenerator()
	fixed := time.Now()
	gen.now = func() time.Time { return fixed }

	prev := gen.GenerateWithPrefix(InstancePrefix)
	for i := 0; i < 100; i++ {
		next := gen.GenerateWithPrefix(InstancePrefix)
		assert.True(t, strings.Compare(prev, next) < 0)
		prev = next
	}
}
