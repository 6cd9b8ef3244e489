package ipc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"os"
	"sync"
	"time"

	"log/slog"

	"winnow/internal/api"
	"winnow/internal/daemon"
	"winnow/internal/logging"
	"winnow/internal/logs"
	"winnow/internal/reconciler"
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
	if err := rpcServer.RegisterName("Winnow", srv); err != nil {
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
	s.logger.Debug("IPC server listening", logging.String("socket", s.path))
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
					logging.String("impact", "IPC clients may fail to connect"),
					logging.String(logging.FieldErrorHint, "Check socket permissions and restart the daemon if needed"))
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
			logging.String("impact", "stale IPC socket may block future starts"),
			logging.String(logging.FieldErrorHint, "Remove the socket file manually or rerun winnow stop"))
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
	return s.logger.With(logging.String("component", "ipc"))
}

func convertCycle(summary *reconciler.CycleSummary) *CycleSummary {
	if summary == nil {
		return nil
	}
	return &CycleSummary{
		CycleID:         summary.CycleID,
		StartedAt:       summary.StartedAt.UTC().Format(time.RFC3339),
		DurationMillis:  summary.Duration.Milliseconds(),
		RootsScanned:    summary.RootsScanned,
		RootsFailed:     summary.RootsFailed,
		ItemsSeen:       summary.ItemsSeen,
		NewItems:        summary.NewItems,
		SweptGone:       summary.SweptGone,
		MarksDeleted:    summary.MarksDeleted,
		TrashSwept:      summary.TrashSwept,
		Purged:          summary.Purged,
		PurgeFailed:     summary.PurgeFailed,
		SessionsExpired: summary.SessionsExpired,
		Errors:          summary.Errors,
	}
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
	s.log().Info("daemon started via IPC",
		logging.String(logging.FieldEventType, "daemon_start"))
	return nil
}

func (s *service) Stop(_ StopRequest, resp *StopResponse) error {
	s.log().Debug("daemon stop requested")
	s.daemon.Stop()
	resp.Stopped = true
	s.log().Info("daemon stopped via IPC",
		logging.String(logging.FieldEventType, "daemon_stop"))
	return nil
}

func (s *service) Status(_ StatusRequest, resp *StatusResponse) error {
	status, err := s.daemon.Status(s.ctx)
	if err != nil {
		return err
	}
	resp.Running = status.Running
	resp.PID = status.PID
	resp.DatabasePath = status.DatabasePath
	resp.LockPath = status.LockFilePath
	resp.Stats = api.FromStats(status.Stats)
	resp.LastCycle = convertCycle(status.LastCycle)
	resp.WatchedRoots = append(resp.WatchedRoots, status.WatchedRoots...)
	if len(status.StepHealth) > 0 {
		resp.StepHealth = make([]StepHealth, 0, len(status.StepHealth))
		for _, health := range status.StepHealth {
			resp.StepHealth = append(resp.StepHealth, StepHealth{
				Name:   health.Name,
				Ready:  health.Ready,
				Detail: health.Detail,
			})
		}
	}
	return nil
}

func (s *service) Scan(_ ScanRequest, resp *ScanResponse) error {
	s.log().Debug("library scan requested")
	report, err := s.daemon.Scan(s.ctx)
	if err != nil {
		return err
	}
	resp.RootsScanned = report.RootsScanned
	resp.RootsFailed = report.RootsFailed
	resp.ItemsSeen = report.ItemsSeen
	resp.NewItems = report.NewItems
	resp.SweptGone = report.SweptGone
	s.log().Info("library scan complete",
		logging.String(logging.FieldEventType, "scan"),
		logging.Int("new_items", report.NewItems),
		logging.Int64("swept_gone", report.SweptGone))
	return nil
}

func (s *service) Reconcile(_ ReconcileRequest, resp *ReconcileResponse) error {
	s.log().Debug("reconcile cycle requested")
	summary, err := s.daemon.Reconcile(s.ctx)
	if err != nil {
		return err
	}
	if wire := convertCycle(summary); wire != nil {
		resp.Summary = *wire
	}
	s.log().Info("reconcile cycle complete",
		logging.String(logging.FieldEventType, "reconcile"),
		logging.Int("purged", summary.Purged),
		logging.Int("errors", summary.Errors))
	return nil
}

func (s *service) Stats(_ StatsRequest, resp *StatsResponse) error {
	stats, err := s.daemon.Stats(s.ctx)
	if err != nil {
		return err
	}
	resp.Stats = api.FromStats(stats)
	return nil
}

func (s *service) List(req ListRequest, resp *ListResponse) error {
	scope, err := api.ParseListScope(req.Scope)
	if err != nil {
		return err
	}
	items, err := s.daemon.List(s.ctx, scope, req.User)
	if err != nil {
		return err
	}
	resp.Items = append(resp.Items, items...)
	return nil
}

func (s *service) Describe(req DescribeRequest, resp *DescribeResponse) error {
	if req.ID <= 0 {
		return fmt.Errorf("invalid item id %d", req.ID)
	}
	detail, err := s.daemon.Describe(s.ctx, req.ID)
	if err != nil {
		return err
	}
	resp.Item = detail
	return nil
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

func (s *service) DatabaseHealth(_ DatabaseHealthRequest, resp *DatabaseHealthResponse) error {
	health, err := s.daemon.DatabaseHealth(s.ctx)
	if err != nil && health.Error == "" {
		return err
	}
	resp.DBPath = health.DBPath
	resp.DatabaseExists = health.DatabaseExists
	resp.DatabaseReadable = health.DatabaseReadable
	resp.SchemaVersion = health.SchemaVersion
	resp.TableExists = health.TableExists
	resp.ColumnsPresent = append(resp.ColumnsPresent, health.ColumnsPresent...)
	resp.MissingColumns = append(resp.MissingColumns, health.MissingColumns...)
	resp.IntegrityCheck = health.IntegrityCheck
	resp.TotalItems = health.TotalItems
	resp.Error = health.Error
	if err != nil {
		return err
	}
	return nil
}

func (s *service) TestNotification(_ TestNotificationRequest, resp *TestNotificationResponse) error {
	sent, message, err := s.daemon.TestNotification(s.ctx)
	resp.Sent = sent
	resp.Message = message
	return err
}
