package pubsub

import (
	"sync"
	"testing"

	assert_ "github.com/stretchr/testify/assert"

	"github.com/alanbriolat/fig/generic"
)

var _ ReceiverCloser[int] = &Merger[int]{}

func TestMerger_Add_Close(t *testing.T) {
	assert := assert_.New(t)

	m := NewMerger[int]()
	raw := make(chan int, 1)
	ch := NewChannel[int](1)
	pub := NewPublisher[int]()
	sub, err := pub.Subscribe()
	assert.Nil(err)

	assert.True(m.Add(raw))
	assert.True(m.Add(ch))
	assert.True(m.Add(sub))
	assert.Panics(func() { m.Add(3) })

	m.Close()
	// Raw channels are not closed by the merger
	raw <- -1
	assert.Equal(-1, <-raw)
	assert.False(ch.Send(-2))
	// The subscriber is closed, so publishing no longer blocks on it
	for i := 0; i < 100; i++ {
		assert.True(pub.Send(i))
	}

	assert.False(m.Add(raw))
	assert.False(m.Add(ch))
	assert.Panics(func() { NewMerger[int]("nope") })
	pub.Close()
}

func TestMerger_MergePrimitiveChannels(t *testing.T) {
	assert := assert_.New(t)

	m := NewMerger[int]()
	var senders sync.WaitGroup
	for i := 0; i < 20; i++ {
		c := make(chan int)
		m.Add(c)
		senders.Add(1)
		go func(start int) {
			defer senders.Done()
			defer close(c)
			for j := start; j < start+50; j++ {
				c <- j
			}
		}(i * 50)
	}

	received := generic.NewSet[int]()
	for received.Count() < 1000 {
		received.Add(<-m.Receive())
	}
	senders.Wait()
	for i := 0; i < 1000; i++ {
		assert.True(received.Contains(i))
	}
	m.Close()
	_, ok := <-m.Receive()
	assert.False(ok)
	m.Close()
}

func TestMerger_MergeChannelsAndSubscribers(t *testing.T) {
	assert := assert_.New(t)

	c1 := NewChannel[int](0)
	c2 := NewChannel[int](0)
	p := NewPublisher[int]()
	s1, err := p.Subscribe()
	assert.Nil(err)
	s2, err := p.Subscribe()
	assert.Nil(err)
	m := NewMerger[int](c1, c2, s1, s2)

	assert.True(c1.Send(1))
	assert.Equal(1, <-m.Receive())
	c1.Close()
	assert.True(c2.Send(2))
	assert.Equal(2, <-m.Receive())

	assert.True(p.Send(3))
	assert.Equal(3, <-m.Receive())
	assert.Equal(3, <-m.Receive())
	select {
	case <-m.Receive():
		assert.Fail("expected merger to be empty")
	default:
	}

	m.Close()
	assert.False(c2.Send(4))
	p.Close()
}
