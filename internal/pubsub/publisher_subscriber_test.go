package pubsub

import (
	"testing"
	"time"

	assert_ "github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ Publisher[int] = &publisher[int]{}

func receiveN(t *testing.T, r Receiver[int], n int) []int {
	t.Helper()
	var res []int
	timeout := time.After(5 * time.Second)
	for len(res) < n {
		select {
		case v, ok := <-r.Receive():
			require.True(t, ok, "receiver closed after %v", res)
			res = append(res, v)
		case <-timeout:
			require.FailNow(t, "timed out", "received %v of %v", res, n)
		}
	}
	return res
}

func TestPublisher(t *testing.T) {
	assert := assert_.New(t)
	pub := NewPublisher[int]().(*publisher[int])

	// Nobody is listening yet, which is fine
	assert.True(pub.Send(1))
	pub.pending.Wait()

	s1, err := pub.Subscribe()
	require.NoError(t, err)
	s2, err := pub.SubscribeBufSize(4)
	require.NoError(t, err)
	for i := 2; i <= 4; i++ {
		assert.True(pub.Send(i))
	}
	assert.Equal([]int{2, 3, 4}, receiveN(t, s1, 3))
	assert.Equal([]int{2, 3, 4}, receiveN(t, s2, 3))

	// A subscriber that closes itself is dropped, the rest carry on
	s1.Close()
	assert.Eventually(func() bool { return len(pub.snapshot(false)) == 1 }, time.Second, time.Millisecond)
	assert.True(pub.Send(5))
	assert.Equal([]int{5}, receiveN(t, s2, 1))

	pub.Close()
	_, err = pub.Subscribe()
	assert.Equal(ErrPublisherClosed, err)
	assert.False(pub.Send(6))
	_, ok := <-s2.Receive()
	assert.False(ok, "expected subscriber to be closed by publisher")
	pub.Close()
}

func TestPublisher_AddSubscriber_Close(t *testing.T) {
	assert := assert_.New(t)

	pub := NewPublisher[int]()
	c1 := NewChannel[int](1)
	c2 := NewChannel[int](1)
	require.NoError(t, pub.AddSubscriber(c1, true))
	require.NoError(t, pub.AddSubscriber(c2, false))
	assert.True(pub.Send(7))
	pub.Close()

	// Both got the message before Close returned, but only c1 belongs to the publisher
	assert.Equal(7, <-c2.Receive())
	assert.True(c2.Send(1), "expected close=false subscriber to not be closed")
	assert.Equal(7, <-c1.Receive())
	_, ok := <-c1.Receive()
	assert.False(ok, "expected close=true subscriber to be closed")
	assert.Empty(pub.(*publisher[int]).snapshot(false))
}

func TestPublisher_CloseFlushesQueued(t *testing.T) {
	assert := assert_.New(t)

	pub := NewPublisher[int]()
	sub, err := pub.Subscribe()
	require.NoError(t, err)
	for i := 0; i < 50; i++ {
		require.True(t, pub.Send(i))
	}

	received := make(chan []int)
	go func() {
		var res []int
		for v := range sub.Receive() {
			res = append(res, v)
			time.Sleep(time.Millisecond)
		}
		received <- res
	}()
	pub.Close()

	res := <-received
	assert.Len(res, 50)
	for i, v := range res {
		assert.Equal(i, v)
	}
}

func TestPublisher_StalledSubscriber(t *testing.T) {
	assert := assert_.New(t)

	pub := NewPublisherOptions[int](PublisherOptions[int]{BufSize: 1, FlushTimeout: 20 * time.Millisecond}).(*publisher[int])
	stalled := NewChannel[int](1)
	require.NoError(t, pub.AddSubscriber(stalled, true))
	healthy, err := pub.Subscribe()
	require.NoError(t, err)

	// Sending never waits for a subscriber, however far behind it is
	sent := make(chan struct{})
	go func() {
		defer close(sent)
		for i := 0; i < 100; i++ {
			pub.Send(i)
		}
	}()
	res := receiveN(t, healthy, 100)
	assert.Equal(0, res[0])
	assert.Equal(99, res[99])
	select {
	case <-sent:
	case <-time.After(5 * time.Second):
		require.FailNow(t, "Send blocked by a subscriber that never receives")
	}

	var stalledSub *subscription[int]
	for _, s := range pub.snapshot(false) {
		if s.sender == stalled {
			stalledSub = s
		}
	}
	require.NotNil(t, stalledSub)
	assert.Eventually(func() bool {
		waiting, _ := stalledSub.queued()
		return waiting > 90
	}, time.Second, time.Millisecond)

	// Close gives up on it after the flush timeout, and closing it frees the stuck delivery
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		pub.Close()
	}()
	select {
	case <-closed:
	case <-time.After(5 * time.Second):
		require.FailNow(t, "Close blocked by a subscriber that never receives")
	}
	select {
	case <-stalledSub.done:
	case <-time.After(time.Second):
		assert.Fail("delivery to the stalled subscriber is still running")
	}
	<-stalled.Closed()
}

func TestSubscription_Droppable(t *testing.T) {
	assert := assert_.New(t)

	opts := PublisherOptions[int]{
		MaxQueued: 2,
		Droppable: func(v int) bool { return v%2 == 0 },
	}
	ch := NewChannel[int](10)
	sub := newSubscription[int](ch, true, &opts)
	for i := 1; i <= 10; i++ {
		sub.push(i)
	}
	// Once 2 are waiting, even numbers are discarded but odd ones still queue up
	waiting, dropped := sub.queued()
	assert.Equal(6, waiting)
	assert.Equal(4, dropped)

	sub.finish()
	sub.deliver(func() { assert.Fail("subscriber should not be closed") })
	ch.Close()
	var res []int
	for v := range ch.Receive() {
		res = append(res, v)
	}
	assert.Equal([]int{1, 2, 3, 5, 7, 9}, res)
}

func TestSubscription_NeverDropsByDefault(t *testing.T) {
	assert := assert_.New(t)

	opts := DefaultPublisherOptions[int]()
	sub := newSubscription[int](NewChannel[int](1), true, &opts)
	for i := 0; i < 1000; i++ {
		sub.push(i)
	}
	waiting, dropped := sub.queued()
	assert.Equal(1000, waiting)
	assert.Equal(0, dropped)
}
