package apiclient

import "net/url"

// Replica is a logical volume carved out of a pool.
type Replica struct {
	UUID   string `json:"uuid"`
	Pool   string `json:"pool"`
	Size   uint64 `json:"size"`
	Thin   bool   `json:"thin"`
	Offset uint64 `json:"offset"`
	Share  string `json:"share"`
	URI    string `json:"uri"`
}

// CreateReplicaRequest is the request to create a replica.
type CreateReplicaRequest struct {
	UUID  string `json:"uuid"`
	Pool  string `json:"pool"`
	Size  uint64 `json:"size"`
	Thin  bool   `json:"thin,omitempty"`
	Share string `json:"share,omitempty"`
}

// ShareRequest selects the protocol an object is shared over. "none"
// unshares.
type ShareRequest struct {
	Protocol string `json:"protocol"`
}

// ShareResponse carries the URI an object is reachable at.
type ShareResponse struct {
	URI string `json:"uri"`
}

// ListReplicas returns every replica on the node.
func (c *Client) ListReplicas() ([]Replica, error) {
	return listResources[Replica](c, "/api/v1/replicas")
}

// GetReplica returns a replica by UUID.
func (c *Client) GetReplica(uuid string) (*Replica, error) {
	return getResource[Replica](c, resourcePath("/api/v1/replicas/%s", url.PathEscape(uuid)))
}

// CreateReplica creates a replica.
func (c *Client) CreateReplica(req *CreateReplicaRequest) (*Replica, error) {
	return createResource[Replica](c, "/api/v1/replicas", req)
}

// ShareReplica changes how a replica is shared and returns its URI.
func (c *Client) ShareReplica(uuid, protocol string) (string, error) {
	resp, err := updateResource[ShareResponse](c, resourcePath("/api/v1/replicas/%s/share", url.PathEscape(uuid)),
		ShareRequest{Protocol: protocol})
	if err != nil {
		return "", err
	}
	return resp.URI, nil
}

// DeleteReplica destroys a replica.
func (c *Client) DeleteReplica(uuid string) error {
	return deleteResource(c, resourcePath("/api/v1/replicas/%s", url.PathEscape(uuid)))
}
