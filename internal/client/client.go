// Package client talks to the agent core's IPC socket. Helper
// processes use it to submit envelopes and read admission responses.
package client

import (
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/perimetra/agentcore/internal/envelope"
	"github.com/perimetra/agentcore/internal/server"
)

const frameHeaderLen = 4

// maxResponseLen bounds the response frame a client will read.
const maxResponseLen = 64 * 1024

// Client is a connection to the agent core IPC socket.
type Client struct {
	conn    net.Conn
	timeout time.Duration
}

// Dial connects to the agent core socket.
func Dial(socketPath string) (*Client, error) {
	conn, err := net.DialTimeout("unix", socketPath, 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to agent core: %w", err)
	}
	return &Client{conn: conn, timeout: 5 * time.Second}, nil
}

// Submit sends one envelope and reads the admission response.
// Fail-closed: callers must treat any error as a rejection.
func (c *Client) Submit(env *envelope.Envelope) (server.Response, error) {
	var resp server.Response

	body, err := envelope.Marshal(env)
	if err != nil {
		return resp, fmt.Errorf("failed to encode envelope: %w", err)
	}

	deadline := time.Now().Add(c.timeout)
	if err := c.conn.SetDeadline(deadline); err != nil {
		return resp, err
	}

	header := make([]byte, frameHeaderLen)
	binary.BigEndian.PutUint32(header, uint32(len(body)))
	if _, err := c.conn.Write(append(header, body...)); err != nil {
		return resp, fmt.Errorf("failed to write frame: %w", err)
	}

	if _, err := io.ReadFull(c.conn, header); err != nil {
		return resp, fmt.Errorf("failed to read response header: %w", err)
	}
	length := binary.BigEndian.Uint32(header)
	if length == 0 || length > maxResponseLen {
		return resp, fmt.Errorf("response length %d out of bounds", length)
	}

	respBody := make([]byte, length)
	if _, err := io.ReadFull(c.conn, respBody); err != nil {
		return resp, fmt.Errorf("failed to read response body: %w", err)
	}
	if err := cbor.Unmarshal(respBody, &resp); err != nil {
		return resp, fmt.Errorf("failed to decode response: %w", err)
	}
	return resp, nil
}

// Close closes the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}
