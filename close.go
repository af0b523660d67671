package revsearch

import "errors"

// Close releases the file lock and closes both logs.
func (s *Store) Close() error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	s.closed = true
	return s.closeLogs()
}

func (s *Store) closeLogs() error {
	return errors.Join(
		translateError(s.vectors.Close()),
		translateError(s.meta.Close()),
	)
}
