package consul

import (
	"context"
	"fmt"
	"math/rand/v2"
	"net/url"

	consulapi "github.com/hashicorp/consul/api"
)

// ServiceInstance represents a discovered service instance
type ServiceInstance struct {
	ID      string
	Name    string
	Address string
	Port    int
	Tags    []string
}

// URL returns the http base URL of the instance
func (i *ServiceInstance) URL() *url.URL {
	return &url.URL{
		Scheme: "http",
		Host:   fmt.Sprintf("%s:%d", i.Address, i.Port),
	}
}

// ServiceDiscovery defines the interface for service discovery
type ServiceDiscovery interface {
	Discover(ctx context.Context, serviceName string) ([]*ServiceInstance, error)
	DiscoverOne(ctx context.Context, serviceName string) (*ServiceInstance, error)
}

// Discover retrieves all healthy instances of a service
func (c *Client) Discover(ctx context.Context, serviceName string) ([]*ServiceInstance, error) {
	opts := (&consulapi.QueryOptions{}).WithContext(ctx)
	services, _, err := c.api.Health().Service(serviceName, "", true, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to discover service %s: %w", serviceName, err)
	}

	if len(services) == 0 {
		return nil, fmt.Errorf("no healthy instances found for service: %s", serviceName)
	}

	instances := make([]*ServiceInstance, 0, len(services))
	for _, entry := range services {
		instance := &ServiceInstance{
			ID:      entry.Service.ID,
			Name:    entry.Service.Service,
			Address: entry.Service.Address,
			Port:    entry.Service.Port,
			Tags:    entry.Service.Tags,
		}

		// Use node address if service address is empty
		if instance.Address == "" {
			instance.Address = entry.Node.Address
		}

		instances = append(instances, instance)
	}

	return instances, nil
}

// DiscoverOne retrieves a single healthy instance using random load balancing
func (c *Client) DiscoverOne(ctx context.Context, serviceName string) (*ServiceInstance, error) {
	instances, err := c.Discover(ctx, serviceName)
	if err != nil {
		return nil, err
	}
	return instances[rand.IntN(len(instances))], nil
}

// Resolver resolves the base URL of one named service on every call, so a
// restarted API instance is picked up without restarting the front-end.
type Resolver struct {
	discovery   ServiceDiscovery
	serviceName string
}

// NewResolver creates a resolver for serviceName
func NewResolver(discovery ServiceDiscovery, serviceName string) *Resolver {
	return &Resolver{discovery: discovery, serviceName: serviceName}
}

// BaseURL returns the URL of a healthy instance
func (r *Resolver) BaseURL(ctx context.Context) (*url.URL, error) {
	instance, err := r.discovery.DiscoverOne(ctx, r.serviceName)
	if err != nil {
		return nil, err
	}
	return instance.URL(), nil
}
