package apiclient

import "net/url"

// Pool is a storage pool on a node.
type Pool struct {
	Name     string   `json:"name"`
	Disks    []string `json:"disks"`
	Capacity uint64   `json:"capacity"`
	Used     uint64   `json:"used"`
	Replicas int      `json:"replicas"`
}

// CreatePoolRequest is the request to create a pool.
type CreatePoolRequest struct {
	Name  string   `json:"name"`
	Disks []string `json:"disks"`
}

// ListPools returns every pool on the node.
func (c *Client) ListPools() ([]Pool, error) {
	return listResources[Pool](c, "/api/v1/pools")
}

// GetPool returns a pool by name.
func (c *Client) GetPool(name string) (*Pool, error) {
	return getResource[Pool](c, resourcePath("/api/v1/pools/%s", url.PathEscape(name)))
}

// CreatePool creates a pool on a single disk.
func (c *Client) CreatePool(req *CreatePoolRequest) (*Pool, error) {
	return createResource[Pool](c, "/api/v1/pools", req)
}

// DeletePool destroys a pool. The pool must not hold replicas.
func (c *Client) DeletePool(name string) error {
	return deleteResource(c, resourcePath("/api/v1/pools/%s", url.PathEscape(name)))
}
