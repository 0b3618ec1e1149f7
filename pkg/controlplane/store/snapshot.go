package store

import (
	"context"

	"gorm.io/gorm"

	"github.com/marmos91/nexusd/pkg/controlplane/models"
)

// ============================================
// NODE CONFIGURATION
// ============================================

func (s *GORMStore) SaveSnapshot(ctx context.Context, snap *models.Snapshot) error {
	if snap == nil {
		snap = &models.Snapshot{}
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Children reference replicas by URI only, so the delete order
		// does not matter. Where("1 = 1") opts in to a global delete.
		for _, m := range []any{&models.Nexus{}, &models.Replica{}, &models.Pool{}} {
			if err := tx.Where("1 = 1").Delete(m).Error; err != nil {
				return err
			}
		}

		if len(snap.Pools) > 0 {
			if err := tx.Create(snap.Pools).Error; err != nil {
				return err
			}
		}
		if len(snap.Replicas) > 0 {
			if err := tx.Create(snap.Replicas).Error; err != nil {
				return err
			}
		}
		for i, n := range snap.Nexuses {
			n.Position = i
		}
		if len(snap.Nexuses) > 0 {
			if err := tx.Create(snap.Nexuses).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *GORMStore) LoadSnapshot(ctx context.Context) (*models.Snapshot, error) {
	snap := &models.Snapshot{}
	db := s.db.WithContext(ctx)

	if err := db.Order("name").Find(&snap.Pools).Error; err != nil {
		return nil, err
	}
	if err := db.Order("pool, disk_offset").Find(&snap.Replicas).Error; err != nil {
		return nil, err
	}
	if err := db.Order("position").Find(&snap.Nexuses).Error; err != nil {
		return nil, err
	}
	return snap, nil
}
