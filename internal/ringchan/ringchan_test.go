package ringchan

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRingChannel_PreservesOrder(t *testing.T) {
	rc := New[int](8)
	for i := 0; i < 5; i++ {
		assert.True(t, rc.Send(i))
	}
	rc.Close()

	var got []int
	for v := range rc.C() {
		got = append(got, v)
	}
	assert.Equal(t, []int{0, 1, 2, 3, 4}, got)
}

func TestRingChannel_OverwritesOldest(t *testing.T) {
	rc := New[int](3)
	for i := 0; i < 10; i++ {
		rc.Send(i)
	}
	rc.Close()

	var got []int
	for v := range rc.C() {
		got = append(got, v)
	}
	assert.Equal(t, []int{7, 8, 9}, got, "only the last values MUST survive, in order")

	m := rc.Metrics()
	assert.Equal(t, int64(10), m.Written)
	assert.Equal(t, int64(7), m.Overwritten)
}

func TestRingChannel_TrySend(t *testing.T) {
	rc := New[string](1)
	assert.True(t, rc.TrySend("a"))
	assert.False(t, rc.TrySend("b"))
	assert.Equal(t, 1, rc.Len())
	assert.Equal(t, 1, rc.Cap())
}

func TestRingChannel_SendAfterCloseIsDropped(t *testing.T) {
	rc := New[int](2)
	rc.Close()
	rc.Close()

	assert.True(t, rc.Closed())
	assert.NotPanics(t, func() {
		assert.False(t, rc.Send(1))
		assert.False(t, rc.TrySend(2))
	})
	assert.Equal(t, int64(2), rc.Metrics().Rejected)
}

func TestRingChannel_ConcurrentProducersAndClose(t *testing.T) {
	rc := New[int](4)
	var wg sync.WaitGroup
	for p := 0; p < 8; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				rc.Send(p*1000 + i)
			}
		}(p)
	}

	done := make(chan struct{})
	go func() {
		for range rc.C() {
		}
		close(done)
	}()

	wg.Wait()
	rc.Close()
	<-done

	m := rc.Metrics()
	assert.Equal(t, int64(800), m.Written+m.Rejected)
}

func TestNew_PanicsOnZeroCapacity(t *testing.T) {
	assert.Panics(t, func() { New[int](0) })
}
