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

// Start requests the daemon to start processing.
func (c *Client) Start() (*StartResponse, error) {
	var resp StartResponse
	if err := c.client.Call("Stamper.Start", StartRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Stop requests the daemon to stop processing.
func (c *Client) Stop() (*StopResponse, error) {
	var resp StopResponse
	if err := c.client.Call("Stamper.Stop", StopRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Status retrieves the daemon status.
func (c *Client) Status() (*StatusResponse, error) {
	var resp StatusResponse
	if err := c.client.Call("Stamper.Status", StatusRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Enqueue submits a new watermark task.
func (c *Client) Enqueue(req EnqueueRequest) (*EnqueueResponse, error) {
	var resp EnqueueResponse
	if err := c.client.Call("Stamper.Enqueue", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Sample renders a watermark preview frame.
func (c *Client) Sample(req SampleRequest) (*SampleResponse, error) {
	var resp SampleResponse
	if err := c.client.Call("Stamper.Sample", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// TaskList returns tasks optionally filtered by statuses.
func (c *Client) TaskList(statuses []string) (*TaskListResponse, error) {
	var resp TaskListResponse
	req := TaskListRequest{Statuses: statuses}
	if err := c.client.Call("Stamper.TaskList", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// TaskDescribe returns details for a single task.
func (c *Client) TaskDescribe(id string) (*TaskDescribeResponse, error) {
	var resp TaskDescribeResponse
	req := TaskDescribeRequest{ID: id}
	if err := c.client.Call("Stamper.TaskDescribe", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// TaskClear removes all tasks.
func (c *Client) TaskClear() (*TaskClearResponse, error) {
	var resp TaskClearResponse
	if err := c.client.Call("Stamper.TaskClear", TaskClearRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// TaskClearCompleted removes only completed tasks.
func (c *Client) TaskClearCompleted() (*TaskClearCompletedResponse, error) {
	var resp TaskClearCompletedResponse
	if err := c.client.Call("Stamper.TaskClearCompleted", TaskClearCompletedRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// TaskClearFailed removes failed tasks.
func (c *Client) TaskClearFailed() (*TaskClearFailedResponse, error) {
	var resp TaskClearFailedResponse
	if err := c.client.Call("Stamper.TaskClearFailed", TaskClearFailedRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// TaskReset resets tasks stuck in processing.
func (c *Client) TaskReset() (*TaskResetResponse, error) {
	var resp TaskResetResponse
	if err := c.client.Call("Stamper.TaskReset", TaskResetRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// TaskRetry requeues all failed tasks.
func (c *Client) TaskRetry() (*TaskRetryResponse, error) {
	var resp TaskRetryResponse
	if err := c.client.Call("Stamper.TaskRetry", TaskRetryRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// TaskSweep removes terminal tasks older than the retention window.
func (c *Client) TaskSweep() (*TaskSweepResponse, error) {
	var resp TaskSweepResponse
	if err := c.client.Call("Stamper.TaskSweep", TaskSweepRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// TaskHealth returns task database diagnostics.
func (c *Client) TaskHealth() (*TaskHealthResponse, error) {
	var resp TaskHealthResponse
	if err := c.client.Call("Stamper.TaskHealth", TaskHealthRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// TestHooks triggers a hook delivery test via the daemon.
func (c *Client) TestHooks() (*TestHooksResponse, error) {
	var resp TestHooksResponse
	if err := c.client.Call("Stamper.TestHooks", TestHooksRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// LogTail returns log lines from the daemon.
func (c *Client) LogTail(req LogTailRequest) (*LogTailResponse, error) {
	var resp LogTailResponse
	if err := c.client.Call("Stamper.LogTail", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
