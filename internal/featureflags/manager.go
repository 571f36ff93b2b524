// Package featureflags evaluates runtime toggles configured through FEATURE_FLAGS.
package featureflags

import (
	"hash/fnv"
	"maps"
	"strconv"
	"strings"
)

// RealtimeNotifications gates publishing recorded notifications to Redis and websockets.
const RealtimeNotifications = "realtime_notifications"

// Manager holds flags parsed from a comma-separated key=value list such as
// "realtime_notifications=on,new_feed=25%,legacy_ui=off".
// Values are on/true/1, off/false/0, or an N% rollout keyed on user id.
type Manager struct {
	raw     map[string]string
	percent map[string]int // -1 for values that never enable
}

// NewManager parses raw. Entries without '=' or with an empty side are skipped.
func NewManager(raw string) *Manager {
	m := &Manager{raw: map[string]string{}, percent: map[string]int{}}
	for _, entry := range strings.Split(raw, ",") {
		name, value, ok := strings.Cut(entry, "=")
		name, value = canon(name), canon(value)
		if !ok || name == "" || value == "" {
			continue
		}
		m.raw[name] = value
		m.percent[name] = rolloutPercent(value)
	}
	return m
}

func rolloutPercent(value string) int {
	switch value {
	case "on", "true", "1":
		return 100
	case "off", "false", "0":
		return 0
	}
	n, isPct := strings.CutSuffix(value, "%")
	if !isPct {
		return -1
	}
	pct, err := strconv.Atoi(n)
	if err != nil {
		return -1
	}
	return min(max(pct, 0), 100)
}

// Enabled reports whether name is on for userID. Unknown flags are off, and a
// partial rollout is off for an anonymous caller.
func (m *Manager) Enabled(name, userID string) bool {
	if m == nil {
		return false
	}
	name = canon(name)
	pct, ok := m.percent[name]
	switch {
	case !ok || pct <= 0:
		return false
	case pct >= 100:
		return true
	case userID == "":
		return false
	}
	return bucket(name, userID) < pct
}

// Raw returns a copy of the configured values.
func (m *Manager) Raw() map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return maps.Clone(m.raw)
}

// Snapshot evaluates every configured flag for userID.
func (m *Manager) Snapshot(userID string) map[string]bool {
	out := map[string]bool{}
	if m == nil {
		return out
	}
	for name := range m.raw {
		out[name] = m.Enabled(name, userID)
	}
	return out
}

func canon(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// bucket maps a user to [0,100) per flag so rollouts are stable across restarts.
func bucket(name, userID string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(name))
	_, _ = h.Write([]byte{':'})
	_, _ = h.Write([]byte(userID))
	return int(h.Sum32() % 100)
}
