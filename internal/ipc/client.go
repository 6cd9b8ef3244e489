package ipc

import (
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"time"
)

// Client provides RPC access to the daemon.
type Client struct {
	conn   net.Conn
	client *rpc.Client
}

// Dial connects to the IPC server at the given socket path.
func Dial(path string) (*Client, error) {
	conn, err := net.DialTimeout("unix", path, 2*time.Second)
	if err != nil {
		return nil, err
	}
	rpcClient := rpc.NewClientWithCodec(jsonrpc.NewClientCodec(conn))
	return &Client{conn: conn, client: rpcClient}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	if c.client != nil {
		_ = c.client.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// Start requests the daemon to resume its background services.
func (c *Client) Start() (*StartResponse, error) {
	var resp StartResponse
	if err := c.client.Call("Winnow.Start", StartRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Stop requests the daemon to stop its background services.
func (c *Client) Stop() (*StopResponse, error) {
	var resp StopResponse
	if err := c.client.Call("Winnow.Stop", StopRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Status retrieves the daemon status.
func (c *Client) Status() (*StatusResponse, error) {
	var resp StatusResponse
	if err := c.client.Call("Winnow.Status", StatusRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Scan runs a full library scan via the daemon.
func (c *Client) Scan() (*ScanResponse, error) {
	var resp ScanResponse
	if err := c.client.Call("Winnow.Scan", ScanRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Reconcile runs one maintenance cycle via the daemon.
func (c *Client) Reconcile() (*ReconcileResponse, error) {
	var resp ReconcileResponse
	if err := c.client.Call("Winnow.Reconcile", ReconcileRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Stats retrieves aggregate catalog statistics.
func (c *Client) Stats() (*StatsResponse, error) {
	var resp StatsResponse
	if err := c.client.Call("Winnow.Stats", StatsRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// List returns catalog items for the given scope, optionally narrowed
// to one user's view.
func (c *Client) List(scope, user string) (*ListResponse, error) {
	var resp ListResponse
	req := ListRequest{Scope: scope, User: user}
	if err := c.client.Call("Winnow.List", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Describe returns details for a single catalog item.
func (c *Client) Describe(id int64) (*DescribeResponse, error) {
	var resp DescribeResponse
	req := DescribeRequest{ID: id}
	if err := c.client.Call("Winnow.Describe", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// LogTail returns log lines from the daemon.
func (c *Client) LogTail(req LogTailRequest) (*LogTailResponse, error) {
	var resp LogTailResponse
	if err := c.client.Call("Winnow.LogTail", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// DatabaseHealth retrieves detailed database diagnostics.
func (c *Client) DatabaseHealth() (*DatabaseHealthResponse, error) {
	var resp DatabaseHealthResponse
	if err := c.client.Call("Winnow.DatabaseHealth", DatabaseHealthRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// TestNotification triggers a notification test via the daemon.
func (c *Client) TestNotification() (*TestNotificationResponse, error) {
	var resp TestNotificationResponse
	if err := c.client.Call("Winnow.TestNotification", TestNotificationRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
