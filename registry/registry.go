// Package registry keeps the set of hosts this agent maintains metrics for:
// the agent's own host plus any children streaming into it.
package registry

import (
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Host identifies one monitored machine.
type Host struct {
	Hostname string
	// GUID is the machine identity, stable across renames. Stored in the
	// canonical lowercase text form.
	GUID string
	// NodeID is the cloud-assigned node identity, empty for unclaimed hosts.
	NodeID string
}

// Registry is a concurrent lookup table over hosts. The root host is the
// machine the agent itself runs on; URL host switching is only allowed to
// start from it.
type Registry struct {
	mu     sync.RWMutex
	root   *Host
	byName map[string]*Host
	byGUID map[string]*Host
	byNode map[string]*Host
}

func New(root *Host) *Registry {
	r := &Registry{
		root:   root,
		byName: make(map[string]*Host),
		byGUID: make(map[string]*Host),
		byNode: make(map[string]*Host),
	}
	r.Add(root)

	return r
}

func (r *Registry) Root() *Host {
	return r.root
}

func (r *Registry) Add(h *Host) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.byName[h.Hostname] = h
	if h.GUID != "" {
		r.byGUID[strings.ToLower(h.GUID)] = h
	}
	if h.NodeID != "" {
		r.byNode[h.NodeID] = h
	}
}

func (r *Registry) FindByHostname(name string) *Host {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.byName[name]
}

func (r *Registry) FindByGUID(guid string) *Host {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.byGUID[guid]
}

func (r *Registry) FindByNodeID(id string) *Host {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.byNode[id]
}

// Lookup resolves a URL host token. When the request came through the /node
// prefix the node id is tried first, otherwise last. A failed GUID match is
// retried in canonical lowercase, since machine GUIDs compare
// case-insensitively but are stored lowercased.
func (r *Registry) Lookup(token string, nodeID bool) *Host {
	var host *Host

	if nodeID {
		host = r.FindByNodeID(token)
		if host == nil {
			host = r.FindByHostname(token)
		}
		if host == nil {
			host = r.FindByGUID(token)
		}
	} else {
		host = r.FindByHostname(token)
		if host == nil {
			host = r.FindByGUID(token)
		}
		if host == nil {
			host = r.FindByNodeID(token)
		}
	}

	if host == nil {
		if id, err := uuid.Parse(token); err == nil {
			host = r.FindByGUID(id.String())
		}
	}

	return host
}
