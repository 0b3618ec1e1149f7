package models

import (
	"encoding/json"
	"time"
)

// Pool is a persisted pool definition.
type Pool struct {
	Name      string    `gorm:"primaryKey;size:255" json:"name"`
	Disks     string    `gorm:"type:text;not null" json:"-"` // JSON array of disk URIs
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// TableName returns the table name for Pool.
func (Pool) TableName() string {
	return "pools"
}

// GetDisks decodes the disk URI list.
func (p *Pool) GetDisks() ([]string, error) {
	return decodeList(p.Disks)
}

// SetDisks encodes the disk URI list.
func (p *Pool) SetDisks(disks []string) error {
	s, err := encodeList(disks)
	if err != nil {
		return err
	}
	p.Disks = s
	return nil
}

// Replica is a persisted replica. Offset pins the replica to the disk range
// it was first allocated at, so data survives a restart on persistent disks.
type Replica struct {
	UUID      string    `gorm:"primaryKey;size:36" json:"uuid"`
	Pool      string    `gorm:"index;not null;size:255" json:"pool"`
	Size      uint64    `gorm:"not null" json:"size"`
	Offset    uint64    `gorm:"column:disk_offset;not null" json:"offset"`
	Thin      bool      `json:"thin"`
	Share     string    `gorm:"size:16" json:"share"` // "", "nvmf"
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// TableName returns the table name for Replica.
func (Replica) TableName() string {
	return "replicas"
}

// Nexus is a persisted nexus definition. Position keeps the creation order,
// which is also the import order.
type Nexus struct {
	UUID      string    `gorm:"primaryKey;size:36" json:"uuid"`
	Name      string    `gorm:"uniqueIndex;not null;size:255" json:"name"`
	Size      uint64    `gorm:"not null" json:"size"`
	Children  string    `gorm:"type:text;not null" json:"-"` // JSON array of child URIs
	Share     string    `gorm:"size:16" json:"share"`
	ANAState  string    `gorm:"size:32" json:"ana_state,omitempty"`
	Position  int       `json:"position"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// TableName returns the table name for Nexus.
func (Nexus) TableName() string {
	return "nexuses"
}

// GetChildren decodes the child URI list.
func (n *Nexus) GetChildren() ([]string, error) {
	return decodeList(n.Children)
}

// SetChildren encodes the child URI list.
func (n *Nexus) SetChildren(children []string) error {
	s, err := encodeList(children)
	if err != nil {
		return err
	}
	n.Children = s
	return nil
}

func encodeList(v []string) (string, error) {
	if v == nil {
		v = []string{}
	}
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func decodeList(s string) ([]string, error) {
	if s == "" {
		return []string{}, nil
	}
	var out []string
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil, err
	}
	return out, nil
}
