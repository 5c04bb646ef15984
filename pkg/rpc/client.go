package rpc

import (
	"encoding/json"
	"fmt"
	"net"
	"time"

	"github.com/fbksd/fbksd-server/pkg/types"
)

// Client is a single TCP connection to the RPC server. It is not safe
// for concurrent use by multiple goroutines; the CLI and CI-runner
// processes that use it issue requests sequentially within one session.
type Client struct {
	conn net.Conn
	dec  *json.Decoder
	enc  *json.Encoder
}

// Dial connects to addr (FBKSD_SERVER_ADDR, host:port).
func Dial(addr string) (*Client, error) {
	conn, err := net.DialTimeout("tcp", addr, 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("rpc client: dial %s: %w", addr, err)
	}
	return &Client{
		conn: conn,
		dec:  json.NewDecoder(conn),
		enc:  json.NewEncoder(conn),
	}, nil
}

// Close sends End and closes the connection.
func (c *Client) Close() error {
	_ = c.enc.Encode(Request{Tag: VariantEnd})
	return c.conn.Close()
}

// LogicError is returned when the server answers with a Logic(message)
// wire error — a domain rejection such as NameAlreadyExists.
type LogicError struct {
	Message string
}

func (e *LogicError) Error() string { return e.Message }

func (c *Client) call(req Request) (string, error) {
	if err := c.enc.Encode(req); err != nil {
		return "", fmt.Errorf("rpc client: send %s: %w", req.Tag, err)
	}
	var resp Response
	if err := c.dec.Decode(&resp); err != nil {
		return "", fmt.Errorf("rpc client: receive reply to %s: %w", req.Tag, err)
	}
	if resp.Err != nil {
		if resp.Err.Kind == ErrLogic {
			return "", &LogicError{Message: resp.Err.Message}
		}
		return "", fmt.Errorf("rpc client: %s: %s", resp.Err.Kind, resp.Err.Message)
	}
	if resp.Ok == nil {
		return "", fmt.Errorf("rpc client: malformed response to %s", req.Tag)
	}
	return *resp.Ok, nil
}

func (c *Client) Register(project types.Project, info types.Info) error {
	_, err := c.call(Request{Tag: VariantRegister, Project: &project, Info: &info})
	return err
}

func (c *Client) SaveResults(project types.Project, info types.Info) (string, error) {
	return c.call(Request{Tag: VariantSaveResults, Project: &project, Info: &info})
}

func (c *Client) PublishPrivate(project types.Project, uuid string) error {
	_, err := c.call(Request{Tag: VariantPublishPrivate, Project: &project, UUID: uuid})
	return err
}

func (c *Client) InitMissingScenesWP(project types.Project, uuid string) (string, error) {
	return c.call(Request{Tag: VariantInitMissingScenesWP, Project: &project, UUID: uuid})
}

func (c *Client) UpdateResults(project types.Project, uuid string) error {
	_, err := c.call(Request{Tag: VariantUpdateResults, Project: &project, UUID: uuid})
	return err
}

func (c *Client) PublishPublic(project types.Project, uuid string) error {
	_, err := c.call(Request{Tag: VariantPublishPublic, Project: &project, UUID: uuid})
	return err
}

func (c *Client) CanRun(project types.Project) (bool, error) {
	result, err := c.call(Request{Tag: VariantCanRun, Project: &project})
	if err != nil {
		return false, err
	}
	return result == "true", nil
}

func (c *Client) DeleteWorkspace(project types.Project, uuid string) error {
	_, err := c.call(Request{Tag: VariantDeleteWorkspace, Project: &project, UUID: uuid})
	return err
}
