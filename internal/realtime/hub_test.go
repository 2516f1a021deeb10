package realtime

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func drain(c *client) []Envelope {
	var out []Envelope
	for {
		select {
		case ev := <-c.send:
			out = append(out, ev)
		default:
			return out
		}
	}
}

func lastOnlineList(t *testing.T, evs []Envelope) []string {
	t.Helper()
	var users []string
	found := false
	for _, ev := range evs {
		if ev.Event == EventOnlineUsers {
			require.NoError(t, json.Unmarshal(ev.Data, &users))
			found = true
		}
	}
	require.True(t, found, "no online-users broadcast received")
	return users
}

func TestOnlineListTracksConnections(t *testing.T) {
	h := NewHub()

	a := h.Register("alice")
	assert.Equal(t, []string{"alice"}, lastOnlineList(t, drain(a)))

	b := h.Register("bob")
	assert.Equal(t, []string{"alice", "bob"}, lastOnlineList(t, drain(a)))
	assert.Equal(t, []string{"alice", "bob"}, lastOnlineList(t, drain(b)))

	h.Unregister(b)
	assert.Equal(t, []string{"alice"}, lastOnlineList(t, drain(a)))
	assert.Equal(t, []string{"alice"}, h.OnlineUsers())
}

func TestConcurrentConnectsConvergeOnFullList(t *testing.T) {
	h := NewHub()
	obs := h.Register("observer")
	drain(obs)

	// membership changes and their broadcasts share one lock acquisition,
	// so the last frame any client sees carries the final membership
	const n = 8
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			h.Register(fmt.Sprintf("user%d", i))
		}(i)
	}
	wg.Wait()

	want := []string{"observer"}
	for i := 0; i < n; i++ {
		want = append(want, fmt.Sprintf("user%d", i))
	}
	sort.Strings(want)
	assert.Equal(t, want, lastOnlineList(t, drain(obs)))
}

func TestReconnectReplacesChannel(t *testing.T) {
	h := NewHub()

	old := h.Register("alice")
	fresh := h.Register("alice")

	select {
	case <-old.done:
	default:
		t.Fatal("old session not evicted on reconnect")
	}
	assert.Equal(t, []string{"alice"}, h.OnlineUsers())

	// a late disconnect of the stale session must not remove the new mapping
	h.Unregister(old)
	assert.Equal(t, []string{"alice"}, h.OnlineUsers())

	h.Unregister(fresh)
	assert.Empty(t, h.OnlineUsers())
}

func TestRoomBroadcast(t *testing.T) {
	h := NewHub()
	a := h.Register("alice")
	b := h.Register("bob")
	c := h.Register("carol")
	drain(a)
	drain(b)
	drain(c)

	h.JoinGame(a, "g1")
	h.JoinGame(b, "g1")

	h.MoveMade("g1", "e2", "e4", "fen-after", false, false)

	for _, cl := range []*client{a, b} {
		evs := drain(cl)
		require.Len(t, evs, 1)
		assert.Equal(t, EventMoveMade, evs[0].Event)
		var p MoveMadePayload
		require.NoError(t, json.Unmarshal(evs[0].Data, &p))
		assert.Equal(t, "e2", p.From)
		assert.Equal(t, "fen-after", p.FEN)
	}
	assert.Empty(t, drain(c), "non-member must not receive room events")

	h.LeaveGame(b, "g1")
	h.GameResigned("g1", "bob", "alice")
	assert.Len(t, drain(a), 1)
	assert.Empty(t, drain(b))
}

func TestInviteEventsGoToUserChannel(t *testing.T) {
	h := NewHub()
	a := h.Register("alice")
	b := h.Register("bob")
	drain(a)
	drain(b)

	h.GameInvite("g1", "alice", "bob")
	evs := drain(b)
	require.Len(t, evs, 1)
	assert.Equal(t, EventGameInvite, evs[0].Event)
	assert.Empty(t, drain(a))

	h.GameInviteAccepted("g1", "bob", "alice")
	evs = drain(a)
	require.Len(t, evs, 1)
	assert.Equal(t, EventGameInviteAccepted, evs[0].Event)
}

func TestTypingRelayDropsWhenOffline(t *testing.T) {
	h := NewHub()
	a := h.Register("alice")
	drain(a)

	// no receiver registered: silently dropped
	h.RelayTyping("alice", "ghost", false)

	b := h.Register("bob")
	drain(a)
	drain(b)
	h.RelayTyping("alice", "bob", false)
	h.RelayTyping("alice", "bob", true)

	evs := drain(b)
	require.Len(t, evs, 2)
	assert.Equal(t, EventTyping, evs[0].Event)
	assert.Equal(t, EventStopTyping, evs[1].Event)
	var p TypingOut
	require.NoError(t, json.Unmarshal(evs[0].Data, &p))
	assert.Equal(t, "alice", p.SenderID)
}
