package catalogaccess

import (
	"context"
	"time"

	"winnow/internal/api"
	"winnow/internal/catalog"
	"winnow/internal/config"
	"winnow/internal/ipc"
	"winnow/internal/library"
	"winnow/internal/logging"
	"winnow/internal/notifications"
	"winnow/internal/reconciler"
	"winnow/internal/scanner"
	"winnow/internal/trash"

	"log/slog"
)

// Access provides catalog operations regardless of IPC or direct store backing.
type Access interface {
	Stats(ctx context.Context) (api.StatsSummary, error)
	List(ctx context.Context, scope api.ListScope, forUser string) ([]api.Item, error)
	Describe(ctx context.Context, id int64) (api.ItemDetail, error)
	Health(ctx context.Context) (catalog.DatabaseHealth, error)
	Scan(ctx context.Context) (scanner.Report, error)
	Reconcile(ctx context.Context) (reconciler.CycleSummary, error)
}

// NewIPCAccess returns an Access backed by daemon IPC.
func NewIPCAccess(client *ipc.Client) Access {
	return &ipcAccess{client: client}
}

// NewStoreAccess returns an Access backed by direct DB and filesystem
// access. Used when the daemon is not running.
func NewStoreAccess(cfg *config.Config, store *catalog.Store, logger *slog.Logger) Access {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &storeAccess{cfg: cfg, store: store, logger: logger}
}

type ipcAccess struct {
	client *ipc.Client
}

func (a *ipcAccess) Stats(_ context.Context) (api.StatsSummary, error) {
	resp, err := a.client.Stats()
	if err != nil {
		return api.StatsSummary{}, err
	}
	return resp.Stats, nil
}

func (a *ipcAccess) List(_ context.Context, scope api.ListScope, forUser string) ([]api.Item, error) {
	resp, err := a.client.List(string(scope), forUser)
	if err != nil {
		return nil, err
	}
	return resp.Items, nil
}

func (a *ipcAccess) Describe(_ context.Context, id int64) (api.ItemDetail, error) {
	resp, err := a.client.Describe(id)
	if err != nil {
		return api.ItemDetail{}, err
	}
	return resp.Item, nil
}

func (a *ipcAccess) Health(_ context.Context) (catalog.DatabaseHealth, error) {
	resp, err := a.client.DatabaseHealth()
	if err != nil {
		return catalog.DatabaseHealth{}, err
	}
	return catalog.DatabaseHealth{
		DBPath:           resp.DBPath,
		DatabaseExists:   resp.DatabaseExists,
		DatabaseReadable: resp.DatabaseReadable,
		SchemaVersion:    resp.SchemaVersion,
		TableExists:      resp.TableExists,
		ColumnsPresent:   resp.ColumnsPresent,
		MissingColumns:   resp.MissingColumns,
		IntegrityCheck:   resp.IntegrityCheck,
		TotalItems:       resp.TotalItems,
		Error:            resp.Error,
	}, nil
}

func (a *ipcAccess) Scan(_ context.Context) (scanner.Report, error) {
	resp, err := a.client.Scan()
	if err != nil {
		return scanner.Report{}, err
	}
	return scanner.Report{
		RootsScanned: resp.RootsScanned,
		RootsFailed:  resp.RootsFailed,
		ItemsSeen:    resp.ItemsSeen,
		NewItems:     resp.NewItems,
		SweptGone:    resp.SweptGone,
	}, nil
}

func (a *ipcAccess) Reconcile(_ context.Context) (reconciler.CycleSummary, error) {
	resp, err := a.client.Reconcile()
	if err != nil {
		return reconciler.CycleSummary{}, err
	}
	summary := reconciler.CycleSummary{
		CycleID:         resp.Summary.CycleID,
		Duration:        time.Duration(resp.Summary.DurationMillis) * time.Millisecond,
		RootsScanned:    resp.Summary.RootsScanned,
		RootsFailed:     resp.Summary.RootsFailed,
		ItemsSeen:       resp.Summary.ItemsSeen,
		NewItems:        resp.Summary.NewItems,
		SweptGone:       resp.Summary.SweptGone,
		MarksDeleted:    resp.Summary.MarksDeleted,
		TrashSwept:      resp.Summary.TrashSwept,
		Purged:          resp.Summary.Purged,
		PurgeFailed:     resp.Summary.PurgeFailed,
		SessionsExpired: resp.Summary.SessionsExpired,
		Errors:          resp.Summary.Errors,
	}
	if started, parseErr := time.Parse(time.RFC3339, resp.Summary.StartedAt); parseErr == nil {
		summary.StartedAt = started
	}
	return summary, nil
}

type storeAccess struct {
	cfg    *config.Config
	store  *catalog.Store
	logger *slog.Logger
}

func (a *storeAccess) Stats(ctx context.Context) (api.StatsSummary, error) {
	result, err := api.Stats(ctx, api.StatsRequest{Store: a.store})
	if err != nil {
		return api.StatsSummary{}, err
	}
	return result.Stats, nil
}

func (a *storeAccess) List(ctx context.Context, scope api.ListScope, forUser string) ([]api.Item, error) {
	result, err := api.List(ctx, api.ListRequest{Store: a.store, Scope: scope, ForUser: forUser})
	if err != nil {
		return nil, err
	}
	return result.Items, nil
}

func (a *storeAccess) Describe(ctx context.Context, id int64) (api.ItemDetail, error) {
	result, err := api.Describe(ctx, api.DescribeRequest{Store: a.store, ItemID: id})
	if err != nil {
		return api.ItemDetail{}, err
	}
	return result.Detail, nil
}

func (a *storeAccess) Health(ctx context.Context) (catalog.DatabaseHealth, error) {
	return a.store.CheckHealth(ctx)
}

func (a *storeAccess) Scan(ctx context.Context) (scanner.Report, error) {
	sc, err := a.buildScanner()
	if err != nil {
		return scanner.Report{}, err
	}
	report, err := sc.FullScan(ctx)
	if err != nil {
		return scanner.Report{}, err
	}
	return *report, nil
}

func (a *storeAccess) Reconcile(ctx context.Context) (reconciler.CycleSummary, error) {
	resolver, err := library.NewResolver(a.cfg.Library.Roots)
	if err != nil {
		return reconciler.CycleSummary{}, err
	}
	sc := scanner.New(a.store, resolver, a.logger)
	notifier := notifications.NewService(a.cfg)
	engine := trash.NewEngine(a.store, resolver, notifier, a.logger, a.cfg.Lifecycle.DryRun)
	manager := reconciler.NewManager(a.cfg, a.store, sc, engine, nil, notifier, a.logger)
	summary, err := manager.RunCycle(ctx)
	if err != nil {
		return reconciler.CycleSummary{}, err
	}
	return *summary, nil
}

func (a *storeAccess) buildScanner() (*scanner.Scanner, error) {
	resolver, err := library.NewResolver(a.cfg.Library.Roots)
	if err != nil {
		return nil, err
	}
	return scanner.New(a.store, resolver, a.logger), nil
}
