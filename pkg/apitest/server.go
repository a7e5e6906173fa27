// Package apitest runs the fake backend on a loopback port for tests
package apitest

import (
	"net/http/httptest"
	"testing"

	"github.com/xinguang/stock-console/pkg/fakeapi"
)

type (
	Reply  = fakeapi.Reply
	Script = fakeapi.Script
)

// Server is a fake backend listening on a loopback port
type Server struct {
	*fakeapi.Backend
	srv *httptest.Server
}

// Start starts a backend for the duration of a test
func Start(t testing.TB) *Server {
	t.Helper()
	b := fakeapi.NewBackend()
	s := &Server{Backend: b, srv: httptest.NewServer(b.Handler())}
	t.Cleanup(s.Close)
	return s
}

// BaseURL is the API root to hand to api.New
func (s *Server) BaseURL() string {
	return s.srv.URL + "/api"
}

// Close shuts the server down, cutting open streams
func (s *Server) Close() {
	s.srv.CloseClientConnections()
	s.srv.Close()
}
