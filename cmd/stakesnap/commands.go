package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/screwyprof/stakesnap/cmd/stakesnap/config"
	"github.com/screwyprof/stakesnap/migrator"
	"github.com/screwyprof/stakesnap/pkg/addrconv"
	"github.com/screwyprof/stakesnap/pkg/grpcconn"
	"github.com/screwyprof/stakesnap/pkg/lcd"
	"github.com/screwyprof/stakesnap/pkg/pgxdb"
	"github.com/screwyprof/stakesnap/snapshot"
	"github.com/screwyprof/stakesnap/snapshot/querier"
	"github.com/screwyprof/stakesnap/snapshot/querier/grpcquerier"
	"github.com/screwyprof/stakesnap/snapshot/querier/lcdquerier"
	"github.com/screwyprof/stakesnap/snapshot/sink/csvsink"
	"github.com/screwyprof/stakesnap/snapshot/sink/pgxsink"
)

// Command line errors
var (
	ErrNoEndpoint           = errors.New("one of --grpc or --lcd is required")
	ErrConflictingEndpoints = errors.New("only one of --grpc (STAKESNAP_GRPC) or --lcd (STAKESNAP_LCD) may be set")
	ErrNoDatabase           = errors.New("--database-url is required")
	ErrInvalidPageLimit     = errors.New("--page-limit must be positive")
	ErrInvalidWorkerCount   = errors.New("--workers must be positive")
	ErrInvalidRequestBurst  = errors.New("request burst must be at least 1 when --rate-limit is set")
	ErrNodeConnectionCheck  = errors.New("node connection check failed")
	ErrWithdrawFailed       = errors.New("stored snapshot could not be withdrawn")
)

// newRootCommand builds the command tree; flag defaults come from cfg
func newRootCommand(cfg config.Config, log *slog.Logger) *cobra.Command {
	root := &cobra.Command{
		Use:           "stakesnap",
		Short:         "Snapshot native stakers of a Cosmos SDK chain",
		Version:       version + " (" + date + ")",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&cfg.GRPCEndpoint, "grpc", cfg.GRPCEndpoint, "node gRPC endpoint, e.g. http://localhost:9090")
	flags.StringVar(&cfg.LCDEndpoint, "lcd", cfg.LCDEndpoint, "node REST gateway URL, e.g. http://localhost:1317")
	flags.DurationVar(&cfg.ConnectTimeout, "connect-timeout", cfg.ConnectTimeout, "how long to wait for the node")
	root.MarkFlagsMutuallyExclusive("grpc", "lcd")

	root.AddCommand(
		newNativeStakersCommand(&cfg, log),
		newMigrateCommand(&cfg, log),
	)
	return root
}

func newNativeStakersCommand(cfg *config.Config, log *slog.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "native-stakers",
		Short: "Write every delegator's total bonded stake as delegator,amount lines",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runNativeStakers(cmd.Context(), *cfg, log)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&cfg.Output, "output", "o", cfg.Output, "output file")
	flags.StringVar(&cfg.ValidatorStatus, "status", cfg.ValidatorStatus, "only validators with this bond status, e.g. BOND_STATUS_BONDED")
	flags.Uint64Var(&cfg.PageLimit, "page-limit", cfg.PageLimit, "records requested per page")
	flags.IntVar(&cfg.Workers, "workers", cfg.Workers, "validators crawled at the same time")
	flags.Float64Var(&cfg.RequestsPerSecond, "rate-limit", cfg.RequestsPerSecond, "maximum page requests per second, 0 for no limit")
	flags.StringVar(&cfg.Bech32Prefix, "bech32-prefix", cfg.Bech32Prefix, "rewrite delegator addresses to this prefix")
	flags.StringVar(&cfg.DatabaseURL, "database-url", cfg.DatabaseURL, "also store the snapshot in this PostgreSQL database")
	return cmd
}

func newMigrateCommand(cfg *config.Config, log *slog.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply the snapshot store schema to a PostgreSQL database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMigrate(cmd.Context(), *cfg, log)
		},
	}
	cmd.Flags().StringVar(&cfg.DatabaseURL, "database-url", cfg.DatabaseURL, "PostgreSQL connection string")
	return cmd
}

func runMigrate(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	if cfg.DatabaseURL == "" {
		return ErrNoDatabase
	}

	db, err := pgxdb.NewConnection(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	log.InfoContext(ctx, "Applying database migrations")
	n, err := migrator.ApplyMigrations(db)
	if err != nil {
		return err
	}
	log.InfoContext(ctx, "Database migrations applied successfully", slog.Int("applied", n))
	return nil
}

func runNativeStakers(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	if err := validate(cfg); err != nil {
		return err
	}

	// Outputs are opened first so a doomed run fails before the crawl
	out, closeOutputs, err := openOutputs(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeOutputs()

	api, closeAPI, err := connect(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeAPI()

	service := snapshot.NewService(
		querier.NewThrottled(api, cfg.RequestsPerSecond, cfg.RequestBurst),
		snapshot.WithPageLimit(cfg.PageLimit),
		snapshot.WithWorkers(cfg.Workers),
		snapshot.WithValidatorStatus(cfg.ValidatorStatus),
	)

	ledger, err := service.Run(ctx, eventLogging(ctx, log)...)
	if err != nil {
		return err
	}

	stakes := ledger.Export()
	if cfg.Bech32Prefix != "" {
		stakes, err = snapshot.RewriteDelegators(stakes, addrconv.Rewriter(cfg.Bech32Prefix))
		if err != nil {
			return err
		}
	}

	if err := out.publish(ctx, stakes); err != nil {
		return err
	}

	log.InfoContext(ctx, "Snapshot written",
		slog.String("output", cfg.Output),
		slog.Int("delegators", len(stakes)),
	)
	return nil
}

func validate(cfg config.Config) error {
	switch {
	case cfg.GRPCEndpoint == "" && cfg.LCDEndpoint == "":
		return ErrNoEndpoint
	case cfg.GRPCEndpoint != "" && cfg.LCDEndpoint != "":
		return ErrConflictingEndpoints
	case cfg.PageLimit == 0:
		return ErrInvalidPageLimit
	case cfg.Workers <= 0:
		return ErrInvalidWorkerCount
	case cfg.RequestsPerSecond > 0 && cfg.RequestBurst < 1:
		return ErrInvalidRequestBurst
	}
	return nil
}

// snapshotStore keeps snapshots in a database and can take one back
type snapshotStore interface {
	WriteSnapshot(ctx context.Context, stakes []snapshot.Stake) (int64, error)
	DeleteSnapshot(ctx context.Context, id int64) error
}

// outputs are where a finished snapshot goes; store is nil without --database-url
type outputs struct {
	store snapshotStore
	file  snapshot.Sink
}

// publish writes the database before the file. When the file cannot be
// written the stored snapshot is deleted again so neither output keeps it.
func (o outputs) publish(ctx context.Context, stakes []snapshot.Stake) error {
	if o.store == nil {
		return o.file.Write(ctx, stakes)
	}

	id, err := o.store.WriteSnapshot(ctx, stakes)
	if err != nil {
		return err
	}

	if err := o.file.Write(ctx, stakes); err != nil {
		if delErr := o.store.DeleteSnapshot(context.WithoutCancel(ctx), id); delErr != nil {
			return errors.Join(err, fmt.Errorf("%w: snapshot %d: %w", ErrWithdrawFailed, id, delErr))
		}
		return err
	}
	return nil
}

func openOutputs(ctx context.Context, cfg config.Config) (outputs, func(), error) {
	var (
		out     outputs
		closers []func()
	)
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	if cfg.DatabaseURL != "" {
		db, err := pgxdb.NewConnection(ctx, cfg.DatabaseURL)
		if err != nil {
			return outputs{}, nil, err
		}
		store, storeCloser := pgxsink.New(db)
		if err := store.Check(ctx); err != nil {
			storeCloser()
			return outputs{}, nil, err
		}
		out.store = store
		closers = append(closers, storeCloser)
	}

	file, err := csvsink.Open(cfg.Output)
	if err != nil {
		closeAll()
		return outputs{}, nil, err
	}
	out.file = file
	closers = append(closers, func() { _ = file.Close() })

	return out, closeAll, nil
}

// connect opens the configured transport and checks the node answers
func connect(ctx context.Context, cfg config.Config, log *slog.Logger) (snapshot.Querier, func(), error) {
	if cfg.GRPCEndpoint != "" {
		conn, err := grpcconn.Dial(ctx, cfg.GRPCEndpoint, cfg.ConnectTimeout)
		if err != nil {
			return nil, nil, err
		}
		log.InfoContext(ctx, "Connected to node", slog.String("grpc", cfg.GRPCEndpoint))
		return grpcquerier.New(conn), func() { _ = conn.Close() }, nil
	}

	httpClient := &http.Client{Timeout: cfg.HTTPClientTimeout}
	q := lcdquerier.New(lcd.NewClient(httpClient, cfg.LCDEndpoint))

	pingCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()
	network, err := q.Ping(pingCtx)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrNodeConnectionCheck, err)
	}
	log.InfoContext(ctx, "Connected to node",
		slog.String("lcd", cfg.LCDEndpoint),
		slog.String("network", network),
	)
	return q, func() { httpClient.CloseIdleConnections() }, nil
}
