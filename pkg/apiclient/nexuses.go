package apiclient

import "net/url"

// Nexus is a replicated volume aggregating one or more children.
type Nexus struct {
	UUID     string       `json:"uuid"`
	Name     string       `json:"name"`
	Size     uint64       `json:"size"`
	State    string       `json:"state"`
	Children []NexusChild `json:"children"`
	ShareURI string       `json:"share_uri,omitempty"`
	ANAState string       `json:"ana_state,omitempty"`
}

// NexusChild is one child of a nexus.
type NexusChild struct {
	URI    string `json:"uri"`
	State  string `json:"state"`
	Reason string `json:"reason,omitempty"`
	Size   uint64 `json:"size"`
}

// CreateNexusRequest is the request to create a nexus. Either UUID or Name
// must be set.
type CreateNexusRequest struct {
	UUID     string   `json:"uuid,omitempty"`
	Name     string   `json:"name,omitempty"`
	Size     uint64   `json:"size"`
	Children []string `json:"children"`
}

type anaStateBody struct {
	State string `json:"state"`
}

func nexusPath(id string, suffix string) string {
	return resourcePath("/api/v1/nexuses/%s%s", url.PathEscape(id), suffix)
}

// ListNexuses returns every nexus on the node.
func (c *Client) ListNexuses() ([]Nexus, error) {
	return listResources[Nexus](c, "/api/v1/nexuses")
}

// GetNexus returns a nexus by UUID or name.
func (c *Client) GetNexus(id string) (*Nexus, error) {
	return getResource[Nexus](c, nexusPath(id, ""))
}

// CreateNexus creates a nexus and opens its children.
func (c *Client) CreateNexus(req *CreateNexusRequest) (*Nexus, error) {
	return createResource[Nexus](c, "/api/v1/nexuses", req)
}

// DeleteNexus destroys a nexus. Deleting a missing nexus succeeds.
func (c *Client) DeleteNexus(id string) error {
	return deleteResource(c, nexusPath(id, ""))
}

// PublishNexus shares a nexus over nvmf and returns its URI.
func (c *Client) PublishNexus(id string) (string, error) {
	resp, err := createResource[ShareResponse](c, nexusPath(id, "/publish"), ShareRequest{Protocol: "nvmf"})
	if err != nil {
		return "", err
	}
	return resp.URI, nil
}

// UnpublishNexus stops sharing a nexus.
func (c *Client) UnpublishNexus(id string) error {
	return deleteResource(c, nexusPath(id, "/publish"))
}

// RemoveChild removes a child from a nexus and returns the updated nexus.
func (c *Client) RemoveChild(id, childURI string) (*Nexus, error) {
	var n Nexus
	if err := c.delete(nexusPath(id, "/children?uri="+url.QueryEscape(childURI)), &n); err != nil {
		return nil, err
	}
	return &n, nil
}

// GetANAState returns the path state of a published nexus.
func (c *Client) GetANAState(id string) (string, error) {
	resp, err := getResource[anaStateBody](c, nexusPath(id, "/ana"))
	if err != nil {
		return "", err
	}
	return resp.State, nil
}

// SetANAState changes the path state of a published nexus.
func (c *Client) SetANAState(id, state string) error {
	return c.put(nexusPath(id, "/ana"), anaStateBody{State: state}, nil)
}
