package state

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/osa030/tome/internal/domain/track"
)

func TestCell_SubscribeCallsImmediately(t *testing.T) {
	c := NewCell(0.8)

	var got []float64
	c.Subscribe(func(v float64) { got = append(got, v) })

	assert.Equal(t, []float64{0.8}, got)
}

func TestCell_NotifiesInSubscriptionOrder(t *testing.T) {
	c := NewCell(0)

	var order []string
	c.Subscribe(func(int) { order = append(order, "first") })
	c.Subscribe(func(int) { order = append(order, "second") })
	c.Subscribe(func(int) { order = append(order, "third") })
	order = nil

	c.Set(1)

	assert.Equal(t, []string{"first", "second", "third"}, order)
}

func TestCell_NoDedup(t *testing.T) {
	c := NewCell(true)

	calls := 0
	c.Subscribe(func(bool) { calls++ })
	calls = 0

	c.Set(true)
	c.Set(true)

	assert.Equal(t, 2, calls)
}

func TestCell_Unsubscribe(t *testing.T) {
	c := NewCell("a")

	var a, b []string
	unsubA := c.Subscribe(func(v string) { a = append(a, v) })
	c.Subscribe(func(v string) { b = append(b, v) })

	unsubA()
	unsubA() // second call is a no-op
	c.Set("b")

	assert.Equal(t, []string{"a"}, a)
	assert.Equal(t, []string{"a", "b"}, b)
}

func TestCell_Update(t *testing.T) {
	c := NewCell(1)
	c.Update(func(v int) int { return v + 41 })
	assert.Equal(t, 42, c.Get())
}

func TestStore_CurrentTimeResetsOnTrackChange(t *testing.T) {
	s := New(Initial{Volume: 0.8, ArtExpanded: true})

	a := &track.Track{ID: "a"}
	b := &track.Track{ID: "b"}

	s.CurrentTrack.Set(a)
	s.CurrentTime.Set(42)

	// Same track again keeps the position.
	s.CurrentTrack.Set(a)
	assert.Equal(t, 42.0, s.CurrentTime.Get())

	s.CurrentTrack.Set(b)
	assert.Equal(t, 0.0, s.CurrentTime.Get())
}

func TestStore_Snapshot(t *testing.T) {
	s := New(Initial{Volume: 0.5, ArtExpanded: false})
	trk := &track.Track{ID: "x"}
	s.CurrentTrack.Set(trk)
	s.IsPlaying.Set(true)
	s.IsMuted.Set(true)
	s.CurrentTime.Set(12.5)

	snap := s.Snapshot()

	assert.Equal(t, trk, snap.Track)
	assert.True(t, snap.Playing)
	assert.False(t, snap.Loading)
	assert.True(t, snap.Muted)
	assert.Equal(t, 0.5, snap.Volume)
	assert.Equal(t, 12.5, snap.CurrentTime)
	assert.False(t, s.ArtExpanded.Get())
}
