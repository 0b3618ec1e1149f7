package apiclient

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testReplicaUUID = "cdc2a7db-3ac3-403a-af80-7fadc1581c47"

func TestPools(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/api/v1/pools":
			var req CreatePoolRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			w.WriteHeader(http.StatusCreated)
			_ = json.NewEncoder(w).Encode(Pool{Name: req.Name, Disks: req.Disks, Capacity: 64 << 20})
		case r.Method == http.MethodGet && r.URL.Path == "/api/v1/pools":
			_ = json.NewEncoder(w).Encode([]Pool{{Name: "tpool"}})
		case r.Method == http.MethodDelete && r.URL.Path == "/api/v1/pools/tpool":
			w.WriteHeader(http.StatusNoContent)
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
	}))
	defer server.Close()

	client := New(server.URL)
	p, err := client.CreatePool(&CreatePoolRequest{Name: "tpool", Disks: []string{"malloc:///disk0?size_mb=64"}})
	require.NoError(t, err)
	assert.Equal(t, uint64(64<<20), p.Capacity)

	pools, err := client.ListPools()
	require.NoError(t, err)
	assert.Len(t, pools, 1)

	require.NoError(t, client.DeletePool("tpool"))
}

func TestShareReplica(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/api/v1/replicas/"+testReplicaUUID+"/share", r.URL.Path)
		var req ShareRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "nvmf", req.Protocol)
		_ = json.NewEncoder(w).Encode(ShareResponse{URI: "nvmf://10.1.0.2:8420/nqn.2019-05.io.openebs:" + testReplicaUUID})
	}))
	defer server.Close()

	uri, err := New(server.URL).ShareReplica(testReplicaUUID, "nvmf")
	require.NoError(t, err)
	assert.Contains(t, uri, testReplicaUUID)
}

func TestNexusOperations(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/api/v1/nexuses/vol/publish":
			_ = json.NewEncoder(w).Encode(ShareResponse{URI: "nvmf://10.1.0.2:8420/nqn.2019-05.io.openebs:nexus-vol"})
		case r.Method == http.MethodDelete && r.URL.Path == "/api/v1/nexuses/vol/children":
			assert.Equal(t, "loopback:///"+testReplicaUUID, r.URL.Query().Get("uri"))
			_ = json.NewEncoder(w).Encode(Nexus{Name: "vol", State: "degraded"})
		case r.Method == http.MethodPut && r.URL.Path == "/api/v1/nexuses/vol/ana":
			var body anaStateBody
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "inaccessible", body.State)
			_ = json.NewEncoder(w).Encode(body)
		case r.Method == http.MethodGet && r.URL.Path == "/api/v1/nexuses/vol/ana":
			_ = json.NewEncoder(w).Encode(anaStateBody{State: "optimized"})
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
	}))
	defer server.Close()

	client := New(server.URL)

	uri, err := client.PublishNexus("vol")
	require.NoError(t, err)
	assert.Contains(t, uri, "nexus-vol")

	n, err := client.RemoveChild("vol", "loopback:///"+testReplicaUUID)
	require.NoError(t, err)
	assert.Equal(t, "degraded", n.State)

	require.NoError(t, client.SetANAState("vol", "inaccessible"))
	state, err := client.GetANAState("vol")
	require.NoError(t, err)
	assert.Equal(t, "optimized", state)
}
