// Package localsock implements the Unix-domain-socket JSON transport for
// the RPC service: one connection per request/response round trip, a
// typed envelope in place of a free-form args map, a bearer-token check,
// and a decoded-message-size ceiling.
package localsock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/clipcatd/clipcat/internal/rpc"
)

// Request is the envelope every client call sends: Op names the operation,
// Payload carries its operation-specific arguments, and Token carries the
// bearer token when the server requires one.
type Request struct {
	Op      string          `json:"op"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Token   string          `json:"token,omitempty"`
}

// Response is the envelope every server reply carries.
type Response struct {
	OK      bool            `json:"ok"`
	Error   string          `json:"error,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Server listens on a Unix socket and dispatches decoded requests to a
// rpc.Service, matching each Op to its typed handler.
type Server struct {
	logger                *zap.Logger
	service                *rpc.Service
	socketPath             string
	accessToken            string
	maxDecodedMessageSize  int
}

// NewServer builds a Server bound to service. An empty accessToken disables
// authentication. maxDecodedMessageSize bounds the request payload read
// from the wire; zero selects a 16 MiB default.
func NewServer(logger *zap.Logger, service *rpc.Service, socketPath, accessToken string, maxDecodedMessageSize int) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxDecodedMessageSize <= 0 {
		maxDecodedMessageSize = 16 * 1024 * 1024
	}
	return &Server{
		logger:                logger,
		service:               service,
		socketPath:            socketPath,
		accessToken:           accessToken,
		maxDecodedMessageSize: maxDecodedMessageSize,
	}
}

// Run listens on the configured socket path and serves requests until ctx is
// cancelled.
func (s *Server) Run(ctx context.Context) error {
	_ = os.Remove(s.socketPath)
	ln, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("localsock: listen on %s: %w", s.socketPath, err)
	}
	defer ln.Close()
	defer os.Remove(s.socketPath)

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			s.logger.Warn("localsock: accept failed", zap.Error(err))
			continue
		}
		go s.handleConn(conn)
	}
}

func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(30 * time.Second))

	counting := &countingReader{r: io.LimitReader(conn, int64(s.maxDecodedMessageSize)+1)}
	dec := json.NewDecoder(counting)

	var req Request
	if err := dec.Decode(&req); err != nil {
		if counting.n > int64(s.maxDecodedMessageSize) {
			writeResponse(conn, errorResponse(rpc.ErrResourceExhausted))
			return
		}
		writeResponse(conn, errorResponse(fmt.Errorf("%w: %v", rpc.ErrInvalidArgument, err)))
		return
	}

	if s.accessToken != "" && req.Token != s.accessToken {
		writeResponse(conn, errorResponse(rpc.ErrUnauthenticated))
		return
	}

	resp := dispatch(s.service, req)
	writeResponse(conn, resp)
}

// countingReader tracks bytes consumed so handleConn can tell a genuinely
// malformed request apart from one truncated by the size ceiling.
type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

func writeResponse(conn net.Conn, resp Response) {
	_ = json.NewEncoder(conn).Encode(resp)
}

func errorResponse(err error) Response {
	return Response{OK: false, Error: err.Error()}
}

// Client issues requests against a clipcatd instance over its Unix socket.
type Client struct {
	socketPath string
	token      string
	timeout    time.Duration
}

// NewClient builds a Client targeting socketPath, authenticating with token
// (empty disables auth on the client side, matching an unconfigured
// server).
func NewClient(socketPath, token string) *Client {
	return &Client{socketPath: socketPath, token: token, timeout: 10 * time.Second}
}

// Call sends op with payload and decodes the response payload into out
// (which may be nil for operations with no return value).
func (c *Client) Call(ctx context.Context, op string, payload, out interface{}) error {
	var encodedPayload json.RawMessage
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("localsock: marshal payload: %w", err)
		}
		encodedPayload = data
	}

	dialer := net.Dialer{}
	conn, err := dialer.DialContext(ctx, "unix", c.socketPath)
	if err != nil {
		return fmt.Errorf("localsock: dial %s: %w", c.socketPath, err)
	}
	defer conn.Close()
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	} else {
		_ = conn.SetDeadline(time.Now().Add(c.timeout))
	}

	req := Request{Op: op, Payload: encodedPayload, Token: c.token}
	if err := json.NewEncoder(conn).Encode(req); err != nil {
		return fmt.Errorf("localsock: send request: %w", err)
	}

	var resp Response
	if err := json.NewDecoder(conn).Decode(&resp); err != nil {
		return fmt.Errorf("localsock: decode response: %w", err)
	}
	if !resp.OK {
		return errors.New(resp.Error)
	}
	if out != nil && len(resp.Payload) > 0 {
		if err := json.Unmarshal(resp.Payload, out); err != nil {
			return fmt.Errorf("localsock: decode payload: %w", err)
		}
	}
	return nil
}
