// Package service exposes internal/compiler.State as a long-lived gRPC
// daemon, without ever generating `_pb.go` stubs: the single Compiler
// service is described from an in-memory .proto source at startup with
// protoparse, and requests/responses are read and written through
// dynamic.Message. Grounded on funvibe/funxy's
// internal/evaluator/builtins_grpc.go, which drives arbitrary
// user-loaded proto services the same dynamic way.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"

	"github.com/google/uuid"
	"github.com/jhump/protoreflect/desc"
	"github.com/jhump/protoreflect/desc/protoparse"
	"github.com/jhump/protoreflect/dynamic"
	"google.golang.org/grpc"

	"github.com/polysubml/polysubml/internal/compiler"
)

const protoSource = `
syntax = "proto3";
package polysubml;

message CompileRequest {
  string session_id = 1;
  string name = 2;
  string source = 3;
}

message Diagnostic {
  string code = 1;
  string message = 2;
}

message CompileResponse {
  string session_id = 1;
  string target = 2;
  repeated Diagnostic errors = 3;
  int64 node_count = 4;
  uint64 flow_count = 5;
}

service Compiler {
  rpc Compile(CompileRequest) returns (CompileResponse);
}
`

// descriptors parses the in-memory proto source and returns the
// request/response message descriptors plus the Compile method
// descriptor. It parses afresh on every call; NewServer calls it once per
// server.
func descriptors() (reqMd, respMd *desc.MessageDescriptor, method *desc.MethodDescriptor, err error) {
	parser := protoparse.Parser{
		Accessor: protoparse.FileContentsFromMap(map[string]string{"polysubml.proto": protoSource}),
	}
	fds, err := parser.ParseFiles("polysubml.proto")
	if err != nil {
		return nil, nil, nil, fmt.Errorf("parse service descriptor: %w", err)
	}
	fd := fds[0]
	sd := fd.FindService("polysubml.Compiler")
	if sd == nil {
		return nil, nil, nil, fmt.Errorf("service polysubml.Compiler not found in descriptor")
	}
	md := sd.FindMethodByName("Compile")
	if md == nil {
		return nil, nil, nil, fmt.Errorf("method Compile not found in descriptor")
	}
	return md.GetInputType(), md.GetOutputType(), md, nil
}

// Manager hands out one compiler.State per session id, so independent
// sessions run concurrently relative to each other while any single
// session's Process calls are serialized — spec.md §5's "not safe for
// concurrent access" applies to one State, not to the Manager.
type Manager struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*sessionEntry
	log      *slog.Logger
}

type sessionEntry struct {
	mu    sync.Mutex
	state *compiler.State
}

func NewManager(log *slog.Logger) *Manager {
	return &Manager{sessions: map[uuid.UUID]*sessionEntry{}, log: log}
}

func (m *Manager) entry(id uuid.UUID) *sessionEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.sessions[id]
	if !ok {
		e = &sessionEntry{state: compiler.New(m.log)}
		m.sessions[id] = e
	}
	return e
}

// Server wraps a grpc.Server exposing the dynamically-described Compile
// RPC over a Manager.
type Server struct {
	grpcServer *grpc.Server
	manager    *Manager
	reqMd      *desc.MessageDescriptor
	respMd     *desc.MessageDescriptor
}

func NewServer(log *slog.Logger) (*Server, error) {
	reqMd, respMd, method, err := descriptors()
	if err != nil {
		return nil, err
	}

	s := &Server{
		grpcServer: grpc.NewServer(),
		manager:    NewManager(log),
		reqMd:      reqMd,
		respMd:     respMd,
	}

	svcDesc := &grpc.ServiceDesc{
		ServiceName: "polysubml.Compiler",
		HandlerType: (*any)(nil),
		Metadata:    "polysubml.proto",
		Methods: []grpc.MethodDesc{
			{
				MethodName: method.GetName(),
				Handler: func(_ any, ctx context.Context, dec func(any) error, _ grpc.UnaryServerInterceptor) (any, error) {
					return s.handleCompile(ctx, dec)
				},
			},
		},
	}
	s.grpcServer.RegisterService(svcDesc, s)
	return s, nil
}

func (s *Server) handleCompile(_ context.Context, dec func(any) error) (any, error) {
	req := dynamic.NewMessage(s.reqMd)
	if err := dec(req); err != nil {
		return nil, err
	}

	sessionID, _ := req.TryGetFieldByName("session_id")
	name, _ := req.TryGetFieldByName("name")
	source, _ := req.TryGetFieldByName("source")

	id, err := uuid.Parse(fmt.Sprint(sessionID))
	if err != nil || id == uuid.Nil {
		id = uuid.New()
	}

	entry := s.manager.entry(id)
	entry.mu.Lock()
	result := entry.state.Process(fmt.Sprint(name), fmt.Sprint(source))
	stats := entry.state.Stats()
	entry.mu.Unlock()

	resp := dynamic.NewMessage(s.respMd)
	resp.SetFieldByName("session_id", id.String())
	resp.SetFieldByName("target", result.Target)
	resp.SetFieldByName("node_count", int64(stats.NodeCount))
	resp.SetFieldByName("flow_count", stats.FlowCount)

	diagMd := s.respMd.FindFieldByName("errors").GetMessageType()
	for _, e := range result.Errors {
		d := dynamic.NewMessage(diagMd)
		d.SetFieldByName("code", string(e.Code))
		d.SetFieldByName("message", e.Message)
		resp.AddRepeatedFieldByName("errors", d)
	}
	return resp, nil
}

// Serve blocks accepting connections on lis until it fails or Stop is
// called.
func (s *Server) Serve(lis net.Listener) error { return s.grpcServer.Serve(lis) }

func (s *Server) GRPCServer() *grpc.Server { return s.grpcServer }

func (s *Server) Stop() { s.grpcServer.GracefulStop() }
