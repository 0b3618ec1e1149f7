package store

import (
	"context"
	"fmt"
)

// Healthcheck pings the database. The readiness probe calls it.
func (s *GORMStore) Healthcheck(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("control plane store unavailable: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("control plane store unreachable: %w", err)
	}
	return nil
}

// Close closes the database. The store is unusable afterwards.
func (s *GORMStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("control plane store unavailable: %w", err)
	}
	return sqlDB.Close()
}
