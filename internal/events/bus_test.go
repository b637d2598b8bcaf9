package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBusDeliversInSubscriptionOrder(t *testing.T) {
	bus := NewBus[int]()
	var got []string

	bus.Subscribe(func(v int) { got = append(got, "a") })
	bus.Subscribe(func(v int) { got = append(got, "b") })

	bus.Fire(1)
	assert.Equal(t, []string{"a", "b"}, got)
	assert.Equal(t, 2, bus.Len())
}

func TestBusUnsubscribe(t *testing.T) {
	bus := NewBus[int]()
	var got []int

	sub := bus.Subscribe(func(v int) { got = append(got, v) })
	bus.Fire(1)
	sub.Unsubscribe()
	sub.Unsubscribe()
	bus.Fire(2)

	assert.Equal(t, []int{1}, got)
	assert.Equal(t, 0, bus.Len())
}

func TestBusUnsubscribeDuringDelivery(t *testing.T) {
	bus := NewBus[int]()
	var second Subscription
	var calls []string

	bus.Subscribe(func(int) {
		calls = append(calls, "first")
		second.Unsubscribe()
	})
	second = bus.Subscribe(func(int) { calls = append(calls, "second") })

	bus.Fire(1)
	assert.Equal(t, []string{"first"}, calls)
}

func TestBusClosedDropsEverything(t *testing.T) {
	bus := NewBus[int]()
	called := false
	bus.Subscribe(func(int) { called = true })

	bus.Unsubscribe()
	bus.Fire(1)
	bus.Subscribe(func(int) { called = true }).Unsubscribe()
	bus.Fire(2)

	assert.False(t, called)
	assert.Equal(t, 0, bus.Len())
}

func TestGroupReleasesTogether(t *testing.T) {
	var released []string
	var g Group
	g.Add(
		SubscriptionFunc(func() { released = append(released, "a") }),
		SubscriptionFunc(func() { released = append(released, "b") }),
	)
	require.Empty(t, released)

	g.Unsubscribe()
	assert.Equal(t, []string{"a", "b"}, released)

	g.Unsubscribe()
	assert.Equal(t, []string{"a", "b"}, released)

	// Adding after release releases immediately.
	g.Add(SubscriptionFunc(func() { released = append(released, "late") }))
	assert.Equal(t, []string{"a", "b", "late"}, released)
}
