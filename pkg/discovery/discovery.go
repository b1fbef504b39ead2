package discovery

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"sync"

	"github.com/example/shopfront/pkg/config"
	clientv3 "go.etcd.io/etcd/client/v3"
	"go.uber.org/zap"
)

type ServiceDiscovery struct {
	client *clientv3.Client
	config *config.EtcdConfig
	logger *zap.Logger

	mu     sync.Mutex
	leases map[string]clientv3.LeaseID
	cancel map[string]context.CancelFunc
}

type ServiceInstance struct {
	Name string
	Host string
	Port int
}

func (i *ServiceInstance) Addr() string {
	return net.JoinHostPort(i.Host, strconv.Itoa(i.Port))
}

func NewServiceDiscovery(cfg *config.EtcdConfig, logger *zap.Logger) (*ServiceDiscovery, error) {
	cli, err := clientv3.New(clientv3.Config{
		Endpoints:   cfg.Endpoints,
		DialTimeout: cfg.DialTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to etcd: %w", err)
	}

	return &ServiceDiscovery{
		client: cli,
		config: cfg,
		logger: logger,
		leases: make(map[string]clientv3.LeaseID),
		cancel: make(map[string]context.CancelFunc),
	}, nil
}

func instanceKey(prefix string, instance *ServiceInstance) string {
	return fmt.Sprintf("%s%s/%s", prefix, instance.Name, instance.Addr())
}

// Register publishes instance under a lease and keeps the lease alive until
// Deregister or Close.
func (sd *ServiceDiscovery) Register(ctx context.Context, instance *ServiceInstance) error {
	key := instanceKey(sd.config.Prefix, instance)

	lease, err := sd.client.Grant(ctx, sd.config.LeaseTTL)
	if err != nil {
		return fmt.Errorf("failed to create lease: %w", err)
	}

	_, err = sd.client.Put(ctx, key, instance.Addr(), clientv3.WithLease(lease.ID))
	if err != nil {
		return fmt.Errorf("failed to register service: %w", err)
	}

	kaCtx, cancel := context.WithCancel(context.Background())
	ch, kaerr := sd.client.KeepAlive(kaCtx, lease.ID)
	if kaerr != nil {
		cancel()
		return fmt.Errorf("failed to keep alive: %w", kaerr)
	}

	sd.mu.Lock()
	sd.leases[key] = lease.ID
	sd.cancel[key] = cancel
	sd.mu.Unlock()

	go func() {
		for range ch {
		}
		sd.logger.Info("Lease keep-alive stopped", zap.String("key", key))
	}()

	sd.logger.Info("Service registered", zap.String("key", key))
	return nil
}

func (sd *ServiceDiscovery) Discover(ctx context.Context, serviceName string) ([]*ServiceInstance, error) {
	key := fmt.Sprintf("%s%s/", sd.config.Prefix, serviceName)

	resp, err := sd.client.Get(ctx, key, clientv3.WithPrefix())
	if err != nil {
		return nil, fmt.Errorf("failed to discover service: %w", err)
	}

	var instances []*ServiceInstance
	for _, kv := range resp.Kvs {
		instance, err := parseInstance(serviceName, string(kv.Value))
		if err != nil {
			sd.logger.Warn("Skipping malformed instance", zap.String("key", string(kv.Key)), zap.Error(err))
			continue
		}
		instances = append(instances, instance)
	}

	return instances, nil
}

func parseInstance(name, addr string) (*ServiceInstance, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, err
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("invalid port %q: %w", portStr, err)
	}
	return &ServiceInstance{Name: name, Host: host, Port: port}, nil
}

func (sd *ServiceDiscovery) Deregister(ctx context.Context, instance *ServiceInstance) error {
	key := instanceKey(sd.config.Prefix, instance)

	sd.mu.Lock()
	lease, ok := sd.leases[key]
	if cancel := sd.cancel[key]; cancel != nil {
		cancel()
	}
	delete(sd.leases, key)
	delete(sd.cancel, key)
	sd.mu.Unlock()

	if ok {
		if _, err := sd.client.Revoke(ctx, lease); err != nil {
			return fmt.Errorf("failed to revoke lease: %w", err)
		}
		return nil
	}

	_, err := sd.client.Delete(ctx, key)
	if err != nil {
		return fmt.Errorf("failed to deregister service: %w", err)
	}
	return nil
}

func (sd *ServiceDiscovery) Close() error {
	sd.mu.Lock()
	for _, cancel := range sd.cancel {
		cancel()
	}
	sd.mu.Unlock()
	return sd.client.Close()
}
