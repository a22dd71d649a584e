package service

import (
	"context"
	"os"
	"sort"

	"go.uber.org/zap"

	lfserrors "github.com/GSI-HPC/lfs-utils/internal/errors"
	"github.com/GSI-HPC/lfs-utils/internal/metrics"
	"github.com/GSI-HPC/lfs-utils/internal/model"
	"github.com/GSI-HPC/lfs-utils/internal/parser"
)

// TopologyClient is the subset of the tool client the topology service
// needs.
type TopologyClient interface {
	CheckComponents(ctx context.Context) (string, error)
	DiskFree(ctx context.Context, fsPath string) (string, error)
	GetConnUUID(ctx context.Context, fsName string, idx int) (string, error)
	GetConnUUIDMap(ctx context.Context, fsName string) (string, error)
	GetDirStripeIndex(ctx context.Context, path string) (int, error)
}

// HostResolver resolves between IP addresses and hostnames.
type HostResolver interface {
	HostnameByAddr(ctx context.Context, addr string) (string, error)
	AddrByHostname(ctx context.Context, hostname string) (string, error)
}

// TopologyService maps between OST indexes and the object storage
// servers owning them. Connection maps are fetched per call and never
// cached, so every query reflects the current filesystem state.
type TopologyService struct {
	client   TopologyClient
	resolver HostResolver
	parser   *parser.Parser
	logger   *zap.Logger
	metrics  *metrics.Metrics
}

// NewTopologyService creates a new topology service. The metrics
// argument may be nil to disable instrumentation.
func NewTopologyService(c TopologyClient, r HostResolver, p *parser.Parser, logger *zap.Logger, m *metrics.Metrics) *TopologyService {
	return &TopologyService{
		client:   c,
		resolver: r,
		parser:   p,
		logger:   logger,
		metrics:  m,
	}
}

// ComponentStates queries `lfs check osts` and parses the result into
// one component collection per filesystem.
func (s *TopologyService) ComponentStates(ctx context.Context) (map[string]*model.ComponentCollection, error) {
	s.count("component_states")

	output, err := s.client.CheckComponents(ctx)
	if err != nil {
		return nil, err
	}

	return s.parser.ComponentStates(output)
}

// ComponentStatesFromOutput parses already captured `lfs check osts`
// output instead of invoking the tool.
func (s *TopologyService) ComponentStatesFromOutput(output string) (map[string]*model.ComponentCollection, error) {
	return s.parser.ComponentStates(output)
}

// IsActive reports whether the OST with the given index on the given
// filesystem is active. An absent filesystem or index is a lookup
// error, not an inactive OST.
func (s *TopologyService) IsActive(ctx context.Context, fsName string, idx int) (bool, error) {
	if fsName == "" {
		return false, lfserrors.Validation("filesystem name is not set")
	}

	collections, err := s.ComponentStates(ctx)
	if err != nil {
		return false, err
	}

	collection, ok := collections[fsName]
	if !ok {
		return false, lfserrors.Lookup("filesystem %s not found in component states", fsName)
	}

	component, ok := collection.OSTs[idx]
	if !ok {
		return false, lfserrors.Lookup("OST index %d not found on filesystem %s", idx, fsName)
	}

	return component.Active, nil
}

// FillLevels queries `lfs df` for the given filesystem path and returns
// the fill percentage per OST index.
func (s *TopologyService) FillLevels(ctx context.Context, fsPath string) (map[int]int, error) {
	if fsPath == "" {
		return nil, lfserrors.Validation("filesystem path is not set")
	}

	s.count("fill_levels")

	output, err := s.client.DiskFree(ctx, fsPath)
	if err != nil {
		return nil, err
	}

	return s.parser.FillLevels(output)
}

// ConnUUID queries the connection identifier of a single OST and
// returns its address.
func (s *TopologyService) ConnUUID(ctx context.Context, fsName string, idx int) (string, error) {
	if fsName == "" {
		return "", lfserrors.Validation("filesystem name is not set")
	}

	s.count("conn_uuid")

	output, err := s.client.GetConnUUID(ctx, fsName, idx)
	if err != nil {
		return "", err
	}

	addr, err := s.parser.ConnUUID(output)
	if err != nil {
		return "", lfserrors.Parse("no connection identifier for OST %d on filesystem %s", idx, fsName)
	}

	return addr, nil
}

// ConnUUIDMap queries the connection identifiers of all OSTs of the
// filesystem in one invocation and returns the address per OST index.
func (s *TopologyService) ConnUUIDMap(ctx context.Context, fsName string) (map[int]string, error) {
	if fsName == "" {
		return nil, lfserrors.Validation("filesystem name is not set")
	}

	s.count("conn_uuid_map")

	output, err := s.client.GetConnUUIDMap(ctx, fsName)
	if err != nil {
		return nil, err
	}

	return s.parser.ConnUUIDMap(output)
}

// HostnameForIndex resolves the hostname of the object storage server
// owning the OST with the given index.
func (s *TopologyService) HostnameForIndex(ctx context.Context, fsName string, idx int) (string, error) {
	addr, err := s.ConnUUID(ctx, fsName, idx)
	if err != nil {
		return "", err
	}

	return s.resolver.HostnameByAddr(ctx, addr)
}

// OSSByOSTIndexes groups the given OST indexes by the hostname of the
// object storage server owning them. The connection map is fetched
// exactly once and reused across the whole batch.
func (s *TopologyService) OSSByOSTIndexes(ctx context.Context, fsName string, indexes []int) (map[string][]int, error) {
	connUUIDs, err := s.ConnUUIDMap(ctx, fsName)
	if err != nil {
		return nil, err
	}

	ostsPerOSS := make(map[string][]int)

	for _, idx := range indexes {
		addr, ok := connUUIDs[idx]
		if !ok {
			return nil, lfserrors.Lookup("OST index %d not found on filesystem %s", idx, fsName)
		}

		hostname, err := s.resolver.HostnameByAddr(ctx, addr)
		if err != nil {
			return nil, err
		}

		ostsPerOSS[hostname] = append(ostsPerOSS[hostname], idx)
	}

	return ostsPerOSS, nil
}

// OSTByOSSHosts reports, per given hostname, which OST indexes of the
// filesystem are owned by that host. The connection map is fetched
// exactly once and reused across the whole batch.
func (s *TopologyService) OSTByOSSHosts(ctx context.Context, fsName string, hostnames []string) (map[string][]int, error) {
	connUUIDs, err := s.ConnUUIDMap(ctx, fsName)
	if err != nil {
		return nil, err
	}

	ostsPerOSS := make(map[string][]int)

	for _, hostname := range hostnames {
		addr, err := s.resolver.AddrByHostname(ctx, hostname)
		if err != nil {
			return nil, err
		}

		indexes := make([]int, 0)
		for idx, connUUID := range connUUIDs {
			if connUUID == addr {
				indexes = append(indexes, idx)
			}
		}
		sort.Ints(indexes)

		ostsPerOSS[hostname] = indexes
	}

	return ostsPerOSS, nil
}

// MDTIndex returns the MDT index of a directory, or model.IndexUnset
// when the path is a plain file or the tool reports nothing.
func (s *TopologyService) MDTIndex(ctx context.Context, path string) (int, error) {
	if path == "" {
		return model.IndexUnset, lfserrors.Validation("path is not set")
	}

	if info, err := os.Stat(path); err == nil && !info.IsDir() {
		s.logger.Warn("Skipping MDT index lookup for non-directory path", zap.String("path", path))
		return model.IndexUnset, nil
	}

	s.count("mdt_index")

	return s.client.GetDirStripeIndex(ctx, path)
}

func (s *TopologyService) count(operation string) {
	if s.metrics == nil {
		return
	}
	s.metrics.TopologyLookups.WithLabelValues(operation).Inc()
}
