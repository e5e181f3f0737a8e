// SPDX-License-Identifier: Apache-2.0

package serverref

import (
	"context"
	"net/http"
	"time"
)

// Server wraps an http.Server around a Handler's router, grounded on
// go-pass-keeper's internal/server/http.go (RunServer/Shutdown pair).
type Server struct {
	http *http.Server
}

// ServerConfig addresses and times out the listening HTTP server.
type ServerConfig struct {
	Address        string
	RequestTimeout time.Duration
}

func NewServer(handler *Handler, cfg ServerConfig) *Server {
	if cfg.Address == "" {
		cfg.Address = ":8080"
	}
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = 15 * time.Second
	}

	return &Server{
		http: &http.Server{
			Addr:         cfg.Address,
			Handler:      handler.Routes(),
			ReadTimeout:  cfg.RequestTimeout,
			WriteTimeout: cfg.RequestTimeout,
		},
	}
}

// Run blocks serving until Shutdown is called or ListenAndServe fails for
// a reason other than http.ErrServerClosed.
func (s *Server) Run() error {
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
