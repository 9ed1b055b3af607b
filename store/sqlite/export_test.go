package sqlite

import "context"

// Exec runs a raw statement so tests can plant rows the store never writes.
func (s *Store) Exec(ctx context.Context, query string, args ...any) error {
	_, err := s.db.ExecContext(ctx, query, args...)
	return err
}
