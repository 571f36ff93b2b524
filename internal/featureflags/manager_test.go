package featureflags

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEnabled(t *testing.T) {
	m := NewManager("a=on,b=off,c=TRUE,d=false,e=1,f=0,all=100%,none=0%,over=150%,broken=abc%,odd=maybe")

	cases := []struct {
		flag string
		user string
		want bool
	}{
		{"a", "u1", true},
		{"b", "u1", false},
		{"c", "u1", true},
		{"d", "u1", false},
		{"e", "u1", true},
		{"f", "u1", false},
		{"all", "", true},
		{"none", "u1", false},
		{"over", "", true},
		{"broken", "u1", false},
		{"odd", "u1", false},
		{"missing", "u1", false},
		{" A ", "u1", true},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, m.Enabled(tc.flag, tc.user), "%s for %q", tc.flag, tc.user)
	}
}

func TestEnabled_PartialRollout(t *testing.T) {
	m := NewManager("canary=25%")

	assert.False(t, m.Enabled("canary", ""), "anonymous callers are outside a partial rollout")

	first := m.Enabled("canary", "user-42")
	for range 5 {
		assert.Equal(t, first, m.Enabled("canary", "user-42"))
	}

	on := 0
	for i := range 1000 {
		if m.Enabled("canary", fmt.Sprintf("user-%d", i)) {
			on++
		}
	}
	assert.InDelta(t, 250, on, 80)
}

func TestRawAndSnapshot(t *testing.T) {
	m := NewManager(" bad ,x=on, y = 20% ,z=off,=on,w= ")

	assert.Equal(t, map[string]string{"x": "on", "y": "20%", "z": "off"}, m.Raw())

	snap := m.Snapshot("u123")
	assert.Len(t, snap, 3)
	assert.True(t, snap["x"])
	assert.False(t, snap["z"])

	m.Raw()["x"] = "off"
	assert.True(t, m.Enabled("x", ""), "Raw returns a copy")
}

func TestNilManager(t *testing.T) {
	var m *Manager
	assert.False(t, m.Enabled(RealtimeNotifications, "u1"))
	assert.Empty(t, m.Raw())
	assert.Empty(t, m.Snapshot("u1"))
}
