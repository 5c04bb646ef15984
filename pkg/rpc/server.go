package rpc

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"

	"github.com/fbksd/fbksd-server/pkg/log"
	"github.com/fbksd/fbksd-server/pkg/metrics"
	"github.com/fbksd/fbksd-server/pkg/types"
)

// Service is the application logic the server dispatches requests to.
// Each method corresponds to one request variant; the string return
// value is the wire Ok payload. Implementations (see pkg/rpcservice)
// serialize all mutations behind the data-root flock.
type Service interface {
	Register(project types.Project, info types.Info) error
	SaveResults(project types.Project, info types.Info) (uuid string, err error)
	PublishPrivate(project types.Project, uuid string) error
	InitMissingScenesWP(project types.Project, uuid string) (status string, err error)
	UpdateResults(project types.Project, uuid string) error
	PublishPublic(project types.Project, uuid string) error
	CanRun(project types.Project) (bool, error)
	DeleteWorkspace(project types.Project, uuid string) error
}

// Server accepts concurrent TCP connections; each connection is served
// sequentially by one goroutine. The server holds no authority of its
// own — every request is handled by reloading state through Service,
// which is itself backed by the database, so a server restart resumes
// cleanly at the next request.
type Server struct {
	svc      Service
	listener net.Listener
}

// NewServer constructs a Server over svc.
func NewServer(svc Service) *Server {
	return &Server{svc: svc}
}

// ListenAndServe binds addr (host:port, default 0.0.0.0:8096) and
// serves until the listener is closed.
func (s *Server) ListenAndServe(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("rpc: listen %s: %w", addr, err)
	}
	s.listener = lis
	log.Logger.Info().Str("addr", addr).Msg("rpc server listening")
	for {
		conn, err := lis.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			log.Logger.Warn().Err(err).Msg("rpc accept failed")
			continue
		}
		go s.handleConn(conn)
	}
}

// Stop closes the listener, causing ListenAndServe to return.
func (s *Server) Stop() error {
	if s.listener == nil {
		return nil
	}
	return s.listener.Close()
}

func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()
	dec := json.NewDecoder(conn)
	enc := json.NewEncoder(conn)

	for {
		var req Request
		if err := dec.Decode(&req); err != nil {
			return // transport failure: drop the connection silently
		}
		if req.Tag == VariantEnd {
			return
		}

		resp := s.instrumentedDispatch(req)
		if err := enc.Encode(resp); err != nil {
			return
		}
		if resp.Err != nil {
			return // close the connection after replying to an error
		}
	}
}

// instrumentedDispatch wraps dispatch with per-operation request
// counts and latency, keyed by the wire variant tag.
func (s *Server) instrumentedDispatch(req Request) Response {
	timer := metrics.NewTimer()
	resp := s.dispatch(req)
	outcome := "ok"
	if resp.Err != nil {
		outcome = string(resp.Err.Kind)
	}
	metrics.RPCRequestsTotal.WithLabelValues(string(req.Tag), outcome).Inc()
	timer.ObserveDurationVec(metrics.RPCRequestDuration, string(req.Tag))
	return resp
}

func (s *Server) dispatch(req Request) Response {
	switch req.Tag {
	case VariantRegister:
		if req.Project == nil || req.Info == nil {
			return errResponse(ErrInvalidMessage, "Register requires project and info")
		}
		if err := s.svc.Register(*req.Project, *req.Info); err != nil {
			return toResponse(err)
		}
		return ok("")

	case VariantSaveResults:
		if req.Project == nil || req.Info == nil {
			return errResponse(ErrInvalidMessage, "SaveResults requires project and info")
		}
		uuid, err := s.svc.SaveResults(*req.Project, *req.Info)
		if err != nil {
			return toResponse(err)
		}
		return ok(uuid)

	case VariantPublishPrivate:
		if req.Project == nil || req.UUID == "" {
			return errResponse(ErrInvalidMessage, "PublishPrivate requires project and uuid")
		}
		if err := s.svc.PublishPrivate(*req.Project, req.UUID); err != nil {
			return toResponse(err)
		}
		return ok("")

	case VariantInitMissingScenesWP:
		if req.Project == nil || req.UUID == "" {
			return errResponse(ErrInvalidMessage, "InitMissingScenesWP requires project and uuid")
		}
		status, err := s.svc.InitMissingScenesWP(*req.Project, req.UUID)
		if err != nil {
			return toResponse(err)
		}
		return ok(status)

	case VariantUpdateResults:
		if req.Project == nil || req.UUID == "" {
			return errResponse(ErrInvalidMessage, "UpdateResults requires project and uuid")
		}
		if err := s.svc.UpdateResults(*req.Project, req.UUID); err != nil {
			return toResponse(err)
		}
		return ok("")

	case VariantPublishPublic:
		if req.Project == nil || req.UUID == "" {
			return errResponse(ErrInvalidMessage, "PublishPublic requires project and uuid")
		}
		if err := s.svc.PublishPublic(*req.Project, req.UUID); err != nil {
			return toResponse(err)
		}
		return ok("")

	case VariantCanRun:
		if req.Project == nil {
			return errResponse(ErrInvalidMessage, "CanRun requires project")
		}
		can, err := s.svc.CanRun(*req.Project)
		if err != nil {
			return toResponse(err)
		}
		if can {
			return ok("true")
		}
		return ok("false")

	case VariantDeleteWorkspace:
		if req.Project == nil || req.UUID == "" {
			return errResponse(ErrInvalidMessage, "DeleteWorkspace requires project and uuid")
		}
		if err := s.svc.DeleteWorkspace(*req.Project, req.UUID); err != nil {
			return toResponse(err)
		}
		return ok("")

	default:
		return errResponse(ErrInvalidMessage, fmt.Sprintf("unknown request tag %q", req.Tag))
	}
}

// toResponse maps a Service error to the wire taxonomy: known domain
// sentinels become Logic(message), everything else becomes Internal.
func toResponse(err error) Response {
	if msg, ok := logicMessage(err); ok {
		return errResponse(ErrLogic, msg)
	}
	log.Logger.Error().Err(err).Msg("rpc: internal error")
	return errResponse(ErrInternal, "internal error")
}
