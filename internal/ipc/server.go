package ipc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"os"
	"sync"
	"time"

	"stamper/internal/api"
	"stamper/internal/daemon"
	"stamper/internal/logging"
	"stamper/internal/logs"
	"stamper/internal/queue"
)

// Server exposes daemon control via JSON-RPC over a Unix domain socket.
type Server struct {
	path      string
	daemon    *daemon.Daemon
	logger    *slog.Logger
	listener  net.Listener
	rpcServer *rpc.Server

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer configures the IPC server at the given socket path.
func NewServer(ctx context.Context, path string, d *daemon.Daemon, logger *slog.Logger) (*Server, error) {
	if d == nil {
		return nil, errors.New("ipc server requires daemon")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("remove existing socket: %w", err)
	}

	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on socket: %w", err)
	}

	rpcServer := rpc.NewServer()
	srv := &service{daemon: d, logger: logger, ctx: ctx}
	if err := rpcServer.RegisterName("Stamper", srv); err != nil {
		listener.Close()
		return nil, fmt.Errorf("register rpc service: %w", err)
	}

	serverCtx, cancel := context.WithCancel(ctx)
	return &Server{
		path:      path,
		daemon:    d,
		logger:    logger,
		listener:  listener,
		rpcServer: rpcServer,
		ctx:       serverCtx,
		cancel:    cancel,
	}, nil
}

// Serve starts accepting RPC connections until the context is canceled.
func (s *Server) Serve() {
	s.logger.Debug("ipc server listening", logging.String("socket", s.path))
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			conn, err := s.listener.Accept()
			if err != nil {
				select {
				case <-s.ctx.Done():
					return
				default:
				}
				s.logger.Warn("accept failed",
					logging.Error(err),
					logging.String(logging.FieldEventType, "ipc_accept_failed"),
					logging.String(logging.FieldErrorHint, "check socket permissions and restart the daemon if needed"))
				continue
			}
			s.wg.Add(1)
			go func(c net.Conn) {
				defer s.wg.Done()
				s.rpcServer.ServeCodec(jsonrpc.NewServerCodec(c))
			}(conn)
		}
	}()
}

// Close stops the server and removes the socket file.
func (s *Server) Close() {
	s.cancel()
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.wg.Wait()
	if err := os.RemoveAll(s.path); err != nil {
		s.logger.Warn("failed to remove socket",
			logging.String("socket", s.path),
			logging.Error(err),
			logging.String(logging.FieldEventType, "ipc_socket_cleanup_failed"),
			logging.String(logging.FieldErrorHint, "remove the socket file manually or rerun stamper stop"))
	}
}

type service struct {
	daemon *daemon.Daemon
	logger *slog.Logger
	ctx    context.Context
}

func (s *service) log() *slog.Logger {
	if s.logger == nil {
		return logging.NewNop()
	}
	return s.logger.With(logging.String(logging.FieldComponent, "ipc"))
}

func (s *service) Start(_ StartRequest, resp *StartResponse) error {
	s.log().Debug("daemon start requested")
	if err := s.daemon.Start(s.ctx); err != nil {
		resp.Started = false
		resp.Message = err.Error()
		return nil
	}
	resp.Started = true
	resp.Message = "daemon started"
	s.log().Info("daemon started via ipc",
		logging.String(logging.FieldEventType, "daemon_start"))
	return nil
}

func (s *service) Stop(_ StopRequest, resp *StopResponse) error {
	s.log().Debug("daemon stop requested")
	s.daemon.Stop()
	resp.Stopped = true
	s.log().Info("daemon stopped via ipc",
		logging.String(logging.FieldEventType, "daemon_stop"))
	return nil
}

func (s *service) Status(_ StatusRequest, resp *StatusResponse) error {
	status := s.daemon.Status(s.ctx)
	resp.Running = status.Running
	resp.TaskDBPath = status.TaskDBPath
	resp.LockPath = status.LockFilePath
	resp.PID = status.PID
	resp.TaskStats = make(map[string]int, len(status.Workflow.TaskStats))
	for k, v := range status.Workflow.TaskStats {
		resp.TaskStats[string(k)] = v
	}
	resp.LastError = status.Workflow.LastError
	if status.Workflow.LastTask != nil {
		task := api.FromTask(status.Workflow.LastTask)
		resp.LastTask = &task
	}
	resp.Dependencies = api.FromDependencies(status.Dependencies)
	return nil
}

func (s *service) Enqueue(req EnqueueRequest, resp *EnqueueResponse) error {
	kind, ok := queue.ParseKind(req.Kind)
	if !ok {
		return fmt.Errorf("unknown task kind %q", req.Kind)
	}
	s.log().Debug("enqueue requested",
		logging.String("kind", string(kind)),
		logging.Int("path_count", len(req.Paths)))
	task, err := s.daemon.Enqueue(s.ctx, daemon.EnqueueParams{
		Kind:     kind,
		Paths:    req.Paths,
		Text:     req.Text,
		Position: req.Position,
		Style:    req.Style,
	})
	if err != nil {
		return err
	}
	resp.Task = api.FromTask(task)
	s.log().Info("task enqueued via ipc",
		logging.String(logging.FieldEventType, "task_enqueue"),
		logging.String(logging.FieldTaskID, task.ID))
	return nil
}

func (s *service) Sample(req SampleRequest, resp *SampleResponse) error {
	if req.Path == "" {
		return errors.New("sample requires a path")
	}
	output, err := s.daemon.Sample(s.ctx, req.Path, req.Text, req.Position, req.Style)
	if err != nil {
		return err
	}
	resp.OutputPath = output
	return nil
}

func (s *service) TaskList(req TaskListRequest, resp *TaskListResponse) error {
	statuses := make([]queue.Status, 0, len(req.Statuses))
	for _, status := range req.Statuses {
		parsed, ok := queue.ParseStatus(status)
		if !ok {
			continue
		}
		statuses = append(statuses, parsed)
	}
	tasks, err := s.daemon.ListTasks(s.ctx, statuses)
	if err != nil {
		return err
	}
	resp.Tasks = api.FromTasks(tasks)
	return nil
}

func (s *service) TaskDescribe(req TaskDescribeRequest, resp *TaskDescribeResponse) error {
	if req.ID == "" {
		return errors.New("task describe requires an id")
	}
	task, err := s.daemon.GetTask(s.ctx, req.ID)
	if err != nil {
		return err
	}
	if task == nil {
		return fmt.Errorf("task %s not found", req.ID)
	}
	resp.Task = api.FromTask(task)
	return nil
}

func (s *service) TaskClear(_ TaskClearRequest, resp *TaskClearResponse) error {
	s.log().Debug("task clear requested")
	removed, err := s.daemon.ClearTasks(s.ctx)
	if err != nil {
		return err
	}
	resp.Removed = removed
	s.log().Info("tasks cleared",
		logging.String(logging.FieldEventType, "task_clear"),
		logging.Int64("removed_count", removed))
	return nil
}

func (s *service) TaskClearCompleted(_ TaskClearCompletedRequest, resp *TaskClearCompletedResponse) error {
	removed, err := s.daemon.ClearCompleted(s.ctx)
	if err != nil {
		return err
	}
	resp.Removed = removed
	s.log().Info("completed tasks cleared",
		logging.String(logging.FieldEventType, "task_clear_completed"),
		logging.Int64("removed_count", removed))
	return nil
}

func (s *service) TaskClearFailed(_ TaskClearFailedRequest, resp *TaskClearFailedResponse) error {
	removed, err := s.daemon.ClearFailed(s.ctx)
	if err != nil {
		return err
	}
	resp.Removed = removed
	s.log().Info("failed tasks cleared",
		logging.String(logging.FieldEventType, "task_clear_failed"),
		logging.Int64("removed_count", removed))
	return nil
}

func (s *service) TaskReset(_ TaskResetRequest, resp *TaskResetResponse) error {
	updated, err := s.daemon.ResetStuck(s.ctx)
	if err != nil {
		return err
	}
	resp.Updated = updated
	s.log().Info("stuck tasks reset",
		logging.String(logging.FieldEventType, "task_reset_stuck"),
		logging.Int64("updated_count", updated))
	return nil
}

func (s *service) TaskRetry(_ TaskRetryRequest, resp *TaskRetryResponse) error {
	updated, err := s.daemon.RetryFailed(s.ctx)
	if err != nil {
		return err
	}
	resp.Updated = updated
	s.log().Info("failed tasks requeued",
		logging.String(logging.FieldEventType, "task_retry"),
		logging.Int64("updated_count", updated))
	return nil
}

func (s *service) TaskSweep(_ TaskSweepRequest, resp *TaskSweepResponse) error {
	removed, err := s.daemon.Sweep(s.ctx)
	if err != nil {
		return err
	}
	resp.Removed = removed
	s.log().Info("old tasks swept",
		logging.String(logging.FieldEventType, "task_sweep"),
		logging.Int64("removed_count", removed))
	return nil
}

func (s *service) TaskHealth(_ TaskHealthRequest, resp *TaskHealthResponse) error {
	health, err := s.daemon.TaskHealth(s.ctx)
	if err != nil {
		return err
	}
	resp.Total = health.Total
	resp.Pending = health.Pending
	resp.Processing = health.Processing
	resp.Retrying = health.Retrying
	resp.Failed = health.Failed
	resp.Completed = health.Completed
	return nil
}

func (s *service) TestHooks(_ TestHooksRequest, resp *TestHooksResponse) error {
	sent, message, err := s.daemon.TestHooks(s.ctx)
	resp.Sent = sent
	resp.Message = message
	return err
}

func (s *service) LogTail(req LogTailRequest, resp *LogTailResponse) error {
	logPath := s.daemon.LogPath()
	if logPath == "" {
		resp.Offset = 0
		return nil
	}
	wait := time.Duration(req.WaitMillis) * time.Millisecond
	if wait <= 0 && req.Follow {
		wait = time.Second
	}
	options := logs.TailOptions{
		Offset: req.Offset,
		Limit:  req.Limit,
		Follow: req.Follow,
		Wait:   wait,
	}
	ctx := s.ctx
	if req.Follow && wait > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(s.ctx, wait+500*time.Millisecond)
		defer cancel()
	}
	result, err := logs.Tail(ctx, logPath, options)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			resp.Offset = result.Offset
			return nil
		}
		return err
	}
	resp.Lines = result.Lines
	resp.Offset = result.Offset
	return nil
}
