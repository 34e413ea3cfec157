package chain

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Registry holds one RPC client per chain identifier.
type Registry struct {
	mu      sync.RWMutex
	clients map[string]*Client
}

func NewRegistry() *Registry {
	return &Registry{clients: make(map[string]*Client)}
}

// Dial connects every chain in rpcURLs and registers the clients.
func Dial(ctx context.Context, rpcURLs map[string]string) (*Registry, error) {
	reg := NewRegistry()
	for name, url := range rpcURLs {
		if strings.TrimSpace(url) == "" {
			continue
		}
		client, err := NewClient(ctx, name, url)
		if err != nil {
			reg.Close()
			return nil, fmt.Errorf("dial %s rpc: %w", name, err)
		}
		reg.Add(client)
	}
	return reg, nil
}

// Add registers a client under its chain name, replacing any previous one.
func (r *Registry) Add(client *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if prev, ok := r.clients[key(client.Name())]; ok && prev != client {
		prev.Close()
	}
	r.clients[key(client.Name())] = client
}

// Get returns the client for chainName.
func (r *Registry) Get(chainName string) (*Client, bool) {
	if r == nil {
		return nil, false
	}
	r.mu.RLock()
	client, ok := r.clients[key(chainName)]
	r.mu.RUnlock()
	return client, ok
}

// Chains lists registered chain names in sorted order.
func (r *Registry) Chains() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.clients))
	for name := range r.clients {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Close closes every registered client.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for name, client := range r.clients {
		client.Close()
		delete(r.clients, name)
	}
}

func key(chainName string) string {
	return strings.ToLower(strings.TrimSpace(chainName))
}
