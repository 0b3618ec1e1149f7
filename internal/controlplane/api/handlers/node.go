package handlers

import (
	"context"

	"github.com/marmos91/nexusd/pkg/ana"
	"github.com/marmos91/nexusd/pkg/nexus"
	"github.com/marmos91/nexusd/pkg/pool"
)

// PoolService manages storage pools.
type PoolService interface {
	CreatePool(ctx context.Context, name string, disks []string) (pool.Info, error)
	DestroyPool(ctx context.Context, name string) error
	GetPool(name string) (pool.Info, error)
	ListPools() ([]pool.Info, error)
}

// ReplicaService manages replicas carved out of pools.
type ReplicaService interface {
	CreateReplica(ctx context.Context, spec pool.ReplicaSpec) (pool.ReplicaInfo, error)
	ShareReplica(ctx context.Context, id string, proto pool.ShareProtocol) (string, error)
	DestroyReplica(ctx context.Context, id string) error
	GetReplica(id string) (pool.ReplicaInfo, error)
	ListReplicas() ([]pool.ReplicaInfo, error)
}

// NexusService manages nexuses and their published paths.
type NexusService interface {
	CreateNexus(ctx context.Context, spec nexus.Spec) (nexus.Info, error)
	PublishNexus(ctx context.Context, id string, proto pool.ShareProtocol) (string, error)
	UnpublishNexus(ctx context.Context, id string) error
	DestroyNexus(ctx context.Context, id string) error
	RemoveChild(ctx context.Context, id, uri string) (nexus.Info, error)
	SetANAState(ctx context.Context, id string, state ana.State) error
	GetANAState(id string) (ana.State, error)
	GetNexus(id string) (nexus.Info, error)
	ListNexuses() ([]nexus.Info, error)
}

// Node is everything the admin API drives on a storage node.
type Node interface {
	PoolService
	ReplicaService
	NexusService
}

// CreatePoolRequest is the request body for POST /api/v1/pools.
type CreatePoolRequest struct {
	Name  string   `json:"name" validate:"required"`
	Disks []string `json:"disks" validate:"min=1,dive,required"`
}

// CreateReplicaRequest is the request body for POST /api/v1/replicas.
type CreateReplicaRequest struct {
	UUID  string             `json:"uuid"`
	Pool  string             `json:"pool"`
	Size  uint64             `json:"size"`
	Thin  bool               `json:"thin,omitempty"`
	Share pool.ShareProtocol `json:"share,omitempty"`
}

// ShareRequest is the request body for sharing a replica or publishing a
// nexus. An empty protocol means nvmf when publishing.
type ShareRequest struct {
	Protocol string `json:"protocol"`
}

// ShareResponse carries the URI an object is reachable at.
type ShareResponse struct {
	URI string `json:"uri"`
}

// CreateNexusRequest is the request body for POST /api/v1/nexuses.
type CreateNexusRequest struct {
	UUID     string   `json:"uuid,omitempty"`
	Name     string   `json:"name,omitempty"`
	Size     uint64   `json:"size"`
	Children []string `json:"children"`
}

// ANAStateBody is the request and response body of /nexuses/{id}/ana.
type ANAStateBody struct {
	State ana.State `json:"state"`
}
