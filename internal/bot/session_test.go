package bot

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionStore(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 10, 14, 10, 0, 0, 0, time.UTC)}
	s := NewSessionStore(time.Minute, clock.Now)

	_, ok := s.Get(1)
	assert.False(t, ok)

	s.Put(Session{UserID: 1, Flow: flowRegistration, Step: stepDate})
	got, ok := s.Get(1)
	require.True(t, ok)
	assert.Equal(t, stepDate, got.Step)

	// input extends the lifetime
	clock.Advance(50 * time.Second)
	got.Step = stepTime
	s.Put(got)
	clock.Advance(50 * time.Second)
	got, ok = s.Get(1)
	require.True(t, ok)
	assert.Equal(t, stepTime, got.Step)

	clock.Advance(time.Minute)
	_, ok = s.Get(1)
	assert.False(t, ok)

	s.Put(Session{UserID: 2, Flow: flowAddAdmin})
	s.Delete(2)
	_, ok = s.Get(2)
	assert.False(t, ok)
}

func TestUserLocks(t *testing.T) {
	var l userLocks
	unlock := l.lock(1)

	// other users are not held up
	l.lock(2)()

	acquired := make(chan struct{})
	go func() {
		u := l.lock(1)
		close(acquired)
		u()
	}()

	select {
	case <-acquired:
		t.Fatal("lock of user 1 acquired twice")
	case <-time.After(20 * time.Millisecond):
	}

	unlock()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("lock of user 1 was not released")
	}

	assert.Eventually(t, func() bool {
		l.mu.Lock()
		defer l.mu.Unlock()
		return len(l.locks) == 0
	}, time.Second, time.Millisecond)
}

func TestParseUserID(t *testing.T) {
	tests := []struct {
		in   string
		want int64
		ok   bool
	}{
		{"42", 42, true},
		{" 42 ", 42, true},
		{"", 0, false},
		{"abc", 0, false},
		{"0", 0, false},
		{"-7", 0, false},
	}
	for _, tt := range tests {
		got, ok := parseUserID(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestSplitCallback(t *testing.T) {
	prefix, arg := splitCallback("list_all_users_by_group:07.11.2026_13.00")
	assert.Equal(t, cbUsersByGroup, prefix)
	assert.Equal(t, "07.11.2026_13.00", arg)

	prefix, arg = splitCallback("plain")
	assert.Equal(t, "plain", prefix)
	assert.Empty(t, arg)
}

func TestChoiceKeyboard(t *testing.T) {
	kb := choiceKeyboard([]string{"a", "b", "c"})
	require.Len(t, kb.Keyboard, 2)
	assert.Len(t, kb.Keyboard[0], 2)
	assert.Equal(t, "c", kb.Keyboard[1][0].Text)
	assert.True(t, kb.OneTimeKeyboard)
}
