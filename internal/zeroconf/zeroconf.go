// Package zeroconf advertises the gl846d control API over mDNS/DNS-SD.
package zeroconf

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/grandcat/zeroconf"
)

// ServiceType is the DNS-SD type the control API is registered under.
const ServiceType = "_gl846d._tcp"

// Service manages the mDNS registration.
type Service struct {
	name string
	port int

	mu     sync.Mutex
	txt    []string
	server *zeroconf.Server
}

// New creates a service advertising name on port with the given TXT
// records.
func New(name string, port int, txt []string) *Service {
	return &Service{
		name: name,
		port: port,
		txt:  txt,
	}
}

// Start registers the service and blocks until ctx is cancelled.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	server, err := zeroconf.Register(s.name, ServiceType, "local.", s.port, s.txt, nil)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("zeroconf register: %w", err)
	}
	s.server = server
	s.mu.Unlock()
	slog.Info("zeroconf: registered mDNS service", "name", s.name, "type", ServiceType, "port", s.port)

	<-ctx.Done()

	s.mu.Lock()
	s.server.Shutdown()
	s.server = nil
	s.mu.Unlock()
	slog.Info("zeroconf: mDNS service unregistered")
	return nil
}

// UpdateTXT replaces the TXT records by registering the service again.
func (s *Service) UpdateTXT(records []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.server == nil {
		return fmt.Errorf("zeroconf: server not started")
	}
	server, err := zeroconf.Register(s.name, ServiceType, "local.", s.port, records, nil)
	if err != nil {
		return fmt.Errorf("zeroconf re-register: %w", err)
	}
	s.server.Shutdown()
	s.server = server
	s.txt = records
	slog.Debug("zeroconf: TXT records updated", "records", records)
	return nil
}
