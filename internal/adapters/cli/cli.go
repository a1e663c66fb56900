// Package cli is the operator and supervisor command line. Every command
// opens the configured runtime, runs one service call and prints the result.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"warehouse-ops/internal/app"
	"warehouse-ops/internal/config"
	"warehouse-ops/internal/core"
	"warehouse-ops/internal/logging"
	"warehouse-ops/internal/seed"
)

// rootFlags are the persistent flags shared by every subcommand.
type rootFlags struct {
	configPath string
	warehouse  string
	operator   string
	role       string
	verbose    bool
	noSeed     bool
}

// env is what PersistentPreRunE hands to the subcommands.
type env struct {
	flags rootFlags
	log   *zap.Logger
	cfg   *config.Config
	rt    *app.Runtime
	// ownLog is set when the logger was built here and must be synced.
	ownLog bool
}

// NewRootCommand builds the command tree. A nil log builds one from the
// loaded configuration.
func NewRootCommand(log *zap.Logger) *cobra.Command {
	e := &env{log: log}

	root := &cobra.Command{
		Use:   "app",
		Short: "Warehouse operations: scan, assign and reconcile shipments",
		Long: `app drives the warehouse ledger from the command line.

Scan operations (putaway, pickup, dispatch) take the scanned codes as
arguments. Run "app scan" for an interactive session fed by a handheld
scanner. With the in-memory store the default fixture is loaded on start.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.RunE == nil {
				return nil // help and completion need no runtime
			}
			return e.open(cmd.Context())
		},
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&e.flags.configPath, "config", "c", "config.yaml", "path to the YAML config file")
	pf.StringVarP(&e.flags.warehouse, "warehouse", "w", "WH1", "warehouse the actor works in")
	pf.StringVarP(&e.flags.operator, "operator", "o", "", "operator ID recorded as the actor")
	pf.StringVar(&e.flags.role, "role", string(core.RoleOperator), "actor role")
	pf.BoolVarP(&e.flags.verbose, "verbose", "v", false, "enable debug logging")
	pf.BoolVar(&e.flags.noSeed, "no-seed", false, "do not load the default fixture into an in-memory store")

	root.AddCommand(
		e.putawayCmd(),
		e.pickupCmd(),
		e.dispatchCmd(),
		e.dispatchSingleCmd(),
		e.assignCmd(),
		e.reconcileCmd(),
		e.reportsCmd(),
		e.picklistCmd(),
		e.binCmd(),
		e.searchCmd(),
		e.statsCmd(),
		e.operatorsCmd(),
		e.scanCmd(),
		e.tokenCmd(),
		e.seedCmd(),
	)

	// Post-run hooks are skipped when RunE fails, so the runtime is closed here.
	for _, c := range root.Commands() {
		if run := c.RunE; run != nil {
			c.RunE = func(cmd *cobra.Command, args []string) error {
				return errors.Join(run(cmd, args), e.close())
			}
		}
	}
	return root
}

// Execute runs the command tree against os.Args.
func Execute(ctx context.Context) error {
	return NewRootCommand(nil).ExecuteContext(ctx)
}

func (e *env) open(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := config.Load(e.flags.configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	e.cfg = cfg

	if e.log == nil {
		log, err := logging.New(logging.Verbose(cfg.Logging.Level, e.flags.verbose), cfg.Logging.Format)
		if err != nil {
			return err
		}
		e.log, e.ownLog = log, true
	}

	rt, err := app.Build(ctx, cfg, e.log)
	if err != nil {
		return err
	}
	e.rt = rt

	if cfg.Store.Driver == config.DriverMemory && !e.flags.noSeed {
		counts, err := seed.Apply(ctx, rt.Store, seed.Default())
		if err != nil {
			return errors.Join(fmt.Errorf("seed in-memory store: %w", err), e.close())
		}
		e.log.Debug("seeded in-memory store",
			zap.Int("warehouses", counts.Warehouses),
			zap.Int("bins", counts.Bins),
			zap.Int("operators", counts.Operators),
		)
	}
	return nil
}

func (e *env) close() error {
	var err error
	if e.rt != nil {
		err = e.rt.Close()
		e.rt = nil
	}
	if e.ownLog {
		_ = e.log.Sync()
	}
	return err
}

func (e *env) actor() (core.Actor, error) {
	role, err := core.ParseRole(e.flags.role)
	if err != nil {
		return core.Actor{}, err
	}
	return core.Actor{
		OperatorID:  e.flags.operator,
		WarehouseID: e.flags.warehouse,
		Role:        role,
	}, nil
}

// run resolves the actor and hands the service to fn.
func (e *env) run(cmd *cobra.Command, fn func(ctx context.Context, svc app.ApplicationService, actor core.Actor) (any, error)) error {
	actor, err := e.actor()
	if err != nil {
		return err
	}
	out, err := fn(cmd.Context(), e.rt.Service, actor)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), out)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// readUpload loads a tracking-ID file; its extension selects the parser.
func readUpload(path string) (*app.Upload, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return &app.Upload{Filename: filepath.Base(path), Data: data}, nil
}
