// Package models defines the records the control plane persists: API users
// and the node configuration (pools, replicas and nexuses) that is exported
// after every successful mutation and imported again at startup.
package models

// AllModels returns all models for GORM AutoMigrate.
func AllModels() []any {
	return []any{
		&User{},
		&Pool{},
		&Replica{},
		&Nexus{},
	}
}

// Snapshot is the complete persisted node configuration.
type Snapshot struct {
	Pools    []*Pool    `json:"pools"`
	Replicas []*Replica `json:"replicas"`
	Nexuses  []*Nexus   `json:"nexuses"`
}

// Empty reports whether the snapshot holds no configuration.
func (s *Snapshot) Empty() bool {
	return s == nil || len(s.Pools)+len(s.Replicas)+len(s.Nexuses) == 0
}
