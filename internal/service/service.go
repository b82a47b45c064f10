// Package service is a thin health/readiness facade over the daemon
// coordinator, grounded on the teacher's internal/daemon/server.go
// readiness-gate pattern (an HTTP server refusing traffic before its
// backing store is reachable). It backs the control surface's /healthz
// and /stats endpoints.
package service

import "github.com/lms-scan/lms-scan/internal/database"

// Coordinator is the subset of *daemon.Coordinator this package depends
// on, kept narrow so service has no import-time dependency on daemon's
// full request/event machinery.
type Coordinator interface {
	Stats() (*database.Stats, error)
}

// Service reports whether the daemon is alive and whether its database
// is currently reachable.
type Service struct {
	coord Coordinator
}

func New(coord Coordinator) *Service {
	return &Service{coord: coord}
}

// Healthy is true once the process has a Service at all: liveness, not
// readiness. A caller whose process can run this code can always serve
// /healthz's liveness half.
func (s *Service) Healthy() bool {
	return s.coord != nil
}

// Ready reports whether the database is currently reachable — false
// during startup before the schema migration has run, or if the
// underlying file has become unreadable (a corrupted mount, a disk
// error mid-scan).
func (s *Service) Ready() (bool, error) {
	_, err := s.coord.Stats()
	return err == nil, err
}

// Stats returns the same per-category row counts the coordinator's
// caller-facing API surfaces, for the /stats endpoint.
func (s *Service) Stats() (*database.Stats, error) {
	return s.coord.Stats()
}
