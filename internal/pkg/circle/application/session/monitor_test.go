package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMonitorEstablishAndClear(t *testing.T) {
	m := NewMonitor(nil)

	_, ok := m.Current()
	assert.False(t, ok)

	changes, cancel := m.Watch()
	defer cancel()

	m.Establish("alice")
	c := <-changes
	assert.Equal(t, Change{AccountID: "alice", Established: true}, c)

	id, ok := m.Current()
	require.True(t, ok)
	assert.Equal(t, "alice", id)

	m.Clear()
	c = <-changes
	assert.Equal(t, Change{AccountID: "alice", Established: false}, c)

	_, ok = m.Current()
	assert.False(t, ok)
}

func TestMonitorClearWithoutIdentityIsSilent(t *testing.T) {
	m := NewMonitor(nil)
	changes, cancel := m.Watch()
	defer cancel()

	m.Clear()
	select {
	case c := <-changes:
		t.Fatalf("unexpected change %+v", c)
	default:
	}
}

func TestMonitorIdentityReplacementClearsFirst(t *testing.T) {
	m := NewMonitor(nil)
	changes, cancel := m.Watch()
	defer cancel()

	m.Establish("alice")
	<-changes

	// A new identity must never inherit the previous one's state, so
	// watchers see the clear before the establish.
	m.Establish("bob")
	first := <-changes
	second := <-changes
	assert.Equal(t, Change{AccountID: "alice", Established: false}, first)
	assert.Equal(t, Change{AccountID: "bob", Established: true}, second)
}

func TestMonitorReestablishSameIdentity(t *testing.T) {
	m := NewMonitor(nil)
	changes, cancel := m.Watch()
	defer cancel()

	m.Establish("alice")
	<-changes

	// Same identity again: no spurious clear.
	m.Establish("alice")
	c := <-changes
	assert.Equal(t, Change{AccountID: "alice", Established: true}, c)
	select {
	case extra := <-changes:
		t.Fatalf("unexpected extra change %+v", extra)
	default:
	}
}

func TestMonitorWatchCancel(t *testing.T) {
	m := NewMonitor(nil)
	changes, cancel := m.Watch()

	cancel()
	cancel() // idempotent

	_, ok := <-changes
	assert.False(t, ok, "channel closes on cancel")

	// Notifying after cancel must not panic.
	m.Establish("alice")
}
