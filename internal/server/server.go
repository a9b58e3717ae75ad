// Package server hosts the IPC surface of the agent core: a Unix
// domain socket speaking length-prefixed CBOR frames. Every inbound
// envelope passes three gates in order (envelope shape, rate quota,
// policy-aware dispatch) and the failure classes stay distinguishable
// in the response so callers can tell a throttled message from a
// policy denial.
package server

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/perimetra/agentcore/internal/audit"
	"github.com/perimetra/agentcore/internal/dispatch"
	"github.com/perimetra/agentcore/internal/envelope"
	"github.com/perimetra/agentcore/internal/metrics"
	"github.com/perimetra/agentcore/internal/policy"
	"github.com/perimetra/agentcore/internal/ratelimit"
	"github.com/perimetra/agentcore/internal/router"
)

// Gate-level rejection reasons. These precede policy consultation and
// are distinct from router reasons by design.
const (
	ReasonMalformedFrame   = "malformed frame"
	ReasonEnvelopeRejected = "envelope rejected"
	ReasonRateLimited      = "rate limited"
)

// frameHeaderLen is the size of the big-endian length prefix.
const frameHeaderLen = 4

// Config holds everything the IPC server needs, assembled at startup.
type Config struct {
	SocketPath        string
	SchemaVersion     uint32
	MaxPayloadBytes   int
	RateLimitCapacity int
	Telemetry         router.TelemetryConfig
	Identity          router.Identity
	PolicyPath        string
	PolicyVerify      policy.VerifyOptions
	PolicyStrict      bool
	AuditLogPath      string
}

// Response is the admission outcome frame returned for each request.
type Response struct {
	Admitted   bool   `cbor:"admitted"`
	Kind       string `cbor:"kind"`
	Reason     string `cbor:"reason,omitempty"`
	DecisionID string `cbor:"decision_id,omitempty"`
}

// activePolicy pairs a validated bundle with the hash of the document
// it was loaded from, swapped as a unit so readers always see a
// consistent pair.
type activePolicy struct {
	bundle *policy.Bundle
	hash   string
}

// Server is the IPC admission server.
type Server struct {
	cfg     Config
	active  atomic.Pointer[activePolicy]
	limiter *ratelimit.Limiter
	mets    metrics.Metrics
	auditor *audit.Log
	logger  *slog.Logger

	lis    net.Listener
	connWG sync.WaitGroup
}

// New creates a server, loading and validating the initial policy
// bundle per the configured deployment policy (strict halts on any
// failure, lax falls back to the placeholder).
func New(cfg Config, mets metrics.Metrics, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if mets == nil {
		mets = metrics.Noop{}
	}

	bundle, hash, err := policy.LoadOrPlaceholder(cfg.PolicyPath, cfg.PolicyStrict, cfg.PolicyVerify, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to load policy: %w", err)
	}

	var auditor *audit.Log
	if cfg.AuditLogPath != "" {
		auditor, err = audit.Open(cfg.AuditLogPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open audit log: %w", err)
		}
	}

	s := &Server{
		cfg:     cfg,
		limiter: ratelimit.New(cfg.RateLimitCapacity),
		mets:    mets,
		auditor: auditor,
		logger:  logger,
	}
	s.active.Store(&activePolicy{bundle: bundle, hash: hash})
	return s, nil
}

// Policy returns the active bundle. The pointer is swapped whole on
// reload; callers hold a consistent snapshot for the duration of one
// admission decision.
func (s *Server) Policy() *policy.Bundle {
	return s.active.Load().bundle
}

// PolicyHash returns the hash of the active policy document.
func (s *Server) PolicyHash() string {
	return s.active.Load().hash
}

// ReloadPolicy loads and validates a fresh bundle from the configured
// path and installs it atomically. The active bundle is untouched when
// anything fails.
func (s *Server) ReloadPolicy() error {
	if s.cfg.PolicyPath == "" {
		return fmt.Errorf("no policy path configured")
	}
	bundle, hash, err := policy.LoadWithHash(s.cfg.PolicyPath)
	if err != nil {
		return fmt.Errorf("failed to reload policy: %w", err)
	}
	if !bundle.Validate(uint64(time.Now().UnixMilli()), s.cfg.PolicyVerify) {
		return fmt.Errorf("reloaded policy did not validate")
	}
	s.active.Store(&activePolicy{bundle: bundle, hash: hash})
	s.logger.Info("policy reloaded", "version", bundle.Version, "hash", hash)
	return nil
}

// HandleFrame runs one raw frame through the full admission pipeline
// and returns the response to write back. This is the transport-free
// core of the server.
func (s *Server) HandleFrame(data []byte) Response {
	env, err := envelope.Unmarshal(data)
	if err != nil {
		s.mets.IncEnvelopeRejected()
		return Response{Kind: envelope.KindNone.String(), Reason: ReasonMalformedFrame}
	}

	if !envelope.Validate(env, s.cfg.SchemaVersion, s.cfg.MaxPayloadBytes) {
		s.mets.IncEnvelopeRejected()
		return Response{Kind: env.Kind().String(), Reason: ReasonEnvelopeRejected}
	}

	if !s.limiter.Allow() {
		s.mets.IncRateLimited()
		return Response{Kind: env.Kind().String(), Reason: ReasonRateLimited}
	}

	res := dispatch.Route(env, s.Policy(), uint64(time.Now().UnixMilli()), dispatch.Options{
		Telemetry: s.cfg.Telemetry,
		Identity:  s.cfg.Identity,
	})

	kind := res.Kind.String()
	if res.Admitted {
		s.mets.IncAdmitted(kind)
	} else {
		s.mets.IncRejected(kind, res.Reason)
	}
	s.recordAudit(env, kind, res)

	resp := Response{Admitted: res.Admitted, Kind: kind, Reason: res.Reason}
	if res.Decision != nil {
		resp.DecisionID = res.Decision.DecisionID
	}
	return resp
}

// Serve listens on the configured Unix socket and blocks until the
// context is cancelled or the listener fails. A stale socket file from
// a previous run is removed first.
func (s *Server) Serve(ctx context.Context) error {
	if err := os.MkdirAll(filepath.Dir(s.cfg.SocketPath), 0750); err != nil {
		return fmt.Errorf("failed to create socket directory: %w", err)
	}
	if err := os.Remove(s.cfg.SocketPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove stale socket: %w", err)
	}

	lis, err := net.Listen("unix", s.cfg.SocketPath)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.SocketPath, err)
	}
	s.lis = lis

	go func() {
		<-ctx.Done()
		lis.Close()
	}()

	s.logger.Info("ipc server listening", "socket", s.cfg.SocketPath)
	err = s.acceptLoop(ctx, lis)
	s.connWG.Wait()
	if ctx.Err() != nil {
		return nil
	}
	return err
}

// ServeOn runs the accept loop on the given listener. For testing.
func (s *Server) ServeOn(ctx context.Context, lis net.Listener) error {
	s.lis = lis
	go func() {
		<-ctx.Done()
		lis.Close()
	}()
	err := s.acceptLoop(ctx, lis)
	s.connWG.Wait()
	if ctx.Err() != nil {
		return nil
	}
	return err
}

// Close releases resources held by the server.
func (s *Server) Close() error {
	if s.auditor != nil {
		return s.auditor.Close()
	}
	return nil
}

func (s *Server) acceptLoop(ctx context.Context, lis net.Listener) error {
	for {
		conn, err := lis.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("accept: %w", err)
		}
		s.connWG.Add(1)
		go func() {
			defer s.connWG.Done()
			s.handleConn(conn)
		}()
	}
}

// handleConn serves one helper connection: read a frame, admit it,
// write the response, repeat until the peer hangs up or misbehaves.
func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()

	for {
		frame, err := s.readFrame(conn)
		if err != nil {
			if !errors.Is(err, io.EOF) {
				s.logger.Warn("dropping connection", "error", err)
			}
			return
		}

		resp := s.HandleFrame(frame)
		if err := writeFrame(conn, resp); err != nil {
			s.logger.Warn("failed to write response", "error", err)
			return
		}
	}
}

// readFrame reads one length-prefixed frame, bounding the body by the
// configured payload limit so a misbehaving helper cannot force an
// unbounded allocation.
func (s *Server) readFrame(r io.Reader) ([]byte, error) {
	header := make([]byte, frameHeaderLen)
	if _, err := io.ReadFull(r, header); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, io.EOF
		}
		return nil, err
	}

	length := binary.BigEndian.Uint32(header)
	if length == 0 || int(length) > s.cfg.MaxPayloadBytes+frameHeaderLen {
		return nil, fmt.Errorf("frame length %d out of bounds", length)
	}

	body := make([]byte, length)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, fmt.Errorf("short frame: %w", err)
	}
	return body, nil
}

// writeFrame writes one length-prefixed CBOR response.
func writeFrame(w io.Writer, resp Response) error {
	body, err := cbor.Marshal(resp)
	if err != nil {
		return fmt.Errorf("marshal response: %w", err)
	}
	header := make([]byte, frameHeaderLen)
	binary.BigEndian.PutUint32(header, uint32(len(body)))
	if _, err := w.Write(header); err != nil {
		return err
	}
	_, err = w.Write(body)
	return err
}

func (s *Server) recordAudit(env *envelope.Envelope, kind string, res dispatch.Result) {
	if s.auditor == nil {
		return
	}
	err := s.auditor.Record(audit.Entry{
		AssetID:    env.AssetID,
		AgentID:    env.AgentID,
		Kind:       kind,
		Admitted:   res.Admitted,
		Reason:     res.Reason,
		PolicyHash: s.PolicyHash(),
	})
	if err != nil {
		s.logger.Warn("failed to record audit entry", "error", err)
	}
}
