package cmap

// Range iterates over all key-value pairs until fn returns false.
//
// Shards are locked one at a time, so the view is not a point-in-time
// snapshot. fn must not call back into the map.
func (m *Map[K, V]) Range(fn func(key K, value V) bool) {
	for _, s := range m.shards {
		s.mu.RLock()
		for k, v := range s.items {
			if !fn(k, v) {
				s.mu.RUnlock()
				return
			}
		}
		s.mu.RUnlock()
	}
}

// Keys returns all keys.
func (m *Map[K, V]) Keys() []K {
	keys := make([]K, 0, m.Count())
	m.Range(func(k K, _ V) bool {
		keys = append(keys, k)
		return true
	})
	return keys
}

// Collect returns the keys whose values satisfy pred.
func (m *Map[K, V]) Collect(pred func(V) bool) []K {
	var keys []K
	m.Range(func(k K, v V) bool {
		if pred(v) {
			keys = append(keys, k)
		}
		return true
	})
	return keys
}
