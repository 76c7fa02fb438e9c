package limits

import (
	"time"
)

// SessionStats returns a snapshot of a session's record. The boolean is
// false for a session the Manager has never seen or has already expired.
func (m *Manager) SessionStats(sessionID string) (SessionInfo, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, ok := m.sessions[sessionID]
	if !ok {
		return SessionInfo{}, false
	}
	return session.info, true
}

// Sessions returns a snapshot of every tracked session.
func (m *Manager) Sessions() []SessionInfo {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]SessionInfo, 0, len(m.sessions))
	for _, session := range m.sessions {
		out = append(out, session.info)
	}
	return out
}

// CleanupExpiredSessions removes every session idle for at least maxAge,
// together with its session bucket and its tool and category windows. IP
// buckets whose address is not the current address of a surviving session
// are removed too. It returns the number of sessions removed.
func (m *Manager) CleanupExpiredSessions(maxAge time.Duration) int {
	m.mu.Lock()

	now := m.now()
	removed := 0
	for id, session := range m.sessions {
		if now.Sub(session.info.LastActivity) < maxAge {
			continue
		}

		delete(m.sessions, id)
		m.releaseIPLocked(session.info.IPAddress)
		delete(m.buckets, bucketKey{dim: DimensionSession, id: id})
		for key := range m.windows {
			if key.session == id {
				delete(m.windows, key)
			}
		}
		removed++
	}

	for key := range m.buckets {
		if key.dim == DimensionIP && m.ipRefs[key.id] == 0 {
			delete(m.buckets, key)
		}
	}

	sessions := len(m.sessions)
	m.metrics.UpdateState(sessions, len(m.buckets), len(m.windows))
	m.mu.Unlock()

	m.metrics.RecordCleanup(removed)

	if removed > 0 {
		m.logger.Info("expired sessions removed",
			"removed", removed,
			"remaining", sessions,
			"max_age", maxAge,
		)
	}

	return removed
}

// SystemStats returns aggregate counts over the Manager's state.
func (m *Manager) SystemStats() SystemStats {
	m.mu.Lock()
	defer m.mu.Unlock()

	stats := SystemStats{
		ActiveSessions:     len(m.sessions),
		TotalBuckets:       len(m.buckets),
		TotalWindows:       len(m.windows),
		BucketsByDimension: make(map[Dimension]int),
		WindowsByDimension: make(map[Dimension]int),
	}
	for key := range m.buckets {
		stats.BucketsByDimension[key.dim]++
	}
	for key, window := range m.windows {
		stats.WindowsByDimension[key.dim]++
		stats.TrackedTimestamps += window.Len()
	}
	return stats
}
