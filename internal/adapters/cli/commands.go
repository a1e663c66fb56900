package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"warehouse-ops/internal/adapters/repl"
	"warehouse-ops/internal/adapters/web"
	"warehouse-ops/internal/app"
	"warehouse-ops/internal/core"
	"warehouse-ops/internal/seed"
)

// ── Scan operations ─────────────────────────────────────────────────────────

func (e *env) putawayCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "putaway <bin> <tracking-id>",
		Short: "Store a shipment in a bin",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return e.run(cmd, func(ctx context.Context, svc app.ApplicationService, actor core.Actor) (any, error) {
				return svc.Putaway(ctx, actor, app.PutawayRequest{BinCode: args[0], TrackingID: args[1]})
			})
		},
	}
}

func (e *env) pickupCmd() *cobra.Command {
	var expect string
	cmd := &cobra.Command{
		Use:   "pickup <tracking-id>",
		Short: "Pick a stored shipment",
		Long:  "Pick a stored shipment. --expect is the tracking ID the operator declared; it defaults to the scanned one.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return e.run(cmd, func(ctx context.Context, svc app.ApplicationService, actor core.Actor) (any, error) {
				return svc.Pickup(ctx, actor, app.ScanRequest{TrackingID: args[0], ExpectedTrackingID: orArg(expect, args[0])})
			})
		},
	}
	cmd.Flags().StringVar(&expect, "expect", "", "declared tracking ID")
	return cmd
}

func (e *env) dispatchCmd() *cobra.Command {
	var expect string
	cmd := &cobra.Command{
		Use:   "dispatch <bin>",
		Short: "Dispatch every picked shipment of a bin",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return e.run(cmd, func(ctx context.Context, svc app.ApplicationService, actor core.Actor) (any, error) {
				return svc.Dispatch(ctx, actor, app.DispatchRequest{BinCode: args[0], ExpectedBinCode: orArg(expect, args[0])})
			})
		},
	}
	cmd.Flags().StringVar(&expect, "expect", "", "declared bin code")
	return cmd
}

func (e *env) dispatchSingleCmd() *cobra.Command {
	var expect string
	cmd := &cobra.Command{
		Use:   "dispatch-single <tracking-id>",
		Short: "Dispatch one stored or picked shipment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return e.run(cmd, func(ctx context.Context, svc app.ApplicationService, actor core.Actor) (any, error) {
				return svc.DispatchSingle(ctx, actor, app.ScanRequest{TrackingID: args[0], ExpectedTrackingID: orArg(expect, args[0])})
			})
		},
	}
	cmd.Flags().StringVar(&expect, "expect", "", "declared tracking ID")
	return cmd
}

// ── Supervisor operations ───────────────────────────────────────────────────

func (e *env) assignCmd() *cobra.Command {
	var target, file string
	cmd := &cobra.Command{
		Use:   "assign [tracking-id...]",
		Short: "Assign shipments to an operator, or round-robin with --target AUTO",
		RunE: func(cmd *cobra.Command, args []string) error {
			req := app.AssignRequest{TrackingIDs: args, Target: target}
			if file != "" {
				up, err := readUpload(file)
				if err != nil {
					return err
				}
				req.File = up
			}
			return e.run(cmd, func(ctx context.Context, svc app.ApplicationService, actor core.Actor) (any, error) {
				return svc.Assign(ctx, actor, req)
			})
		},
	}
	cmd.Flags().StringVarP(&target, "target", "t", core.AutoAssign, "operator ID or AUTO")
	cmd.Flags().StringVarP(&file, "file", "f", "", "picklist file (.csv, .json or .txt)")
	return cmd
}

func (e *env) reconcileCmd() *cobra.Command {
	var mode, intent string
	cmd := &cobra.Command{
		Use:   "reconcile <file>",
		Short: "Reconcile a manifest or status file against the ledger",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			up, err := readUpload(args[0])
			if err != nil {
				return err
			}
			return e.run(cmd, func(ctx context.Context, svc app.ApplicationService, actor core.Actor) (any, error) {
				return svc.Reconcile(ctx, actor, app.ReconcileRequest{Mode: mode, Intent: intent, File: up})
			})
		},
	}
	cmd.Flags().StringVar(&mode, "mode", string(core.ModeManifest), "manifest or status")
	cmd.Flags().StringVar(&intent, "intent", "", "registered or delivered (status mode)")
	return cmd
}

func (e *env) reportsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reports",
		Short: "List archived upload logs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return e.run(cmd, func(ctx context.Context, svc app.ApplicationService, actor core.Actor) (any, error) {
				return svc.ListManifestReports(ctx, actor)
			})
		},
	}
}

func (e *env) picklistCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "picklist [tracking-id...]",
		Short: "Split a picklist into known and unknown shipments",
		RunE: func(cmd *cobra.Command, args []string) error {
			req := app.PicklistRequest{TrackingIDs: args}
			if file != "" {
				up, err := readUpload(file)
				if err != nil {
					return err
				}
				req.File = up
			}
			return e.run(cmd, func(ctx context.Context, svc app.ApplicationService, actor core.Actor) (any, error) {
				return svc.LookupPicklist(ctx, actor, req)
			})
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "picklist file (.csv, .json or .txt)")
	return cmd
}

// ── Queries ─────────────────────────────────────────────────────────────────

func (e *env) binCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "bin [code]",
		Short: "Show a bin with its shipments, or list every bin",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return e.run(cmd, func(ctx context.Context, svc app.ApplicationService, actor core.Actor) (any, error) {
				if len(args) == 0 {
					return svc.ListBins(ctx, actor)
				}
				return svc.BinContents(ctx, actor, args[0])
			})
		},
	}
}

func (e *env) searchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "search <tracking-id>",
		Short: "Look up one shipment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return e.run(cmd, func(ctx context.Context, svc app.ApplicationService, actor core.Actor) (any, error) {
				return svc.SearchShipment(ctx, actor, args[0])
			})
		},
	}
}

func (e *env) statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Summarize bin utilization and shipment statuses",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return e.run(cmd, func(ctx context.Context, svc app.ApplicationService, actor core.Actor) (any, error) {
				return svc.WarehouseStats(ctx, actor)
			})
		},
	}
}

func (e *env) operatorsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "operators",
		Short: "List eligible operators with their open assignments",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return e.run(cmd, func(ctx context.Context, svc app.ApplicationService, actor core.Actor) (any, error) {
				return svc.ListOperators(ctx, actor)
			})
		},
	}
}

// ── Sessions and administration ─────────────────────────────────────────────

func (e *env) scanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scan",
		Short: "Start an interactive scan session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			actor, err := e.actor()
			if err != nil {
				return err
			}
			return repl.Run(cmd.Context(), e.rt.Service, actor, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
}

func (e *env) tokenCmd() *cobra.Command {
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an API token for --operator in --warehouse",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			actor, err := e.actor()
			if err != nil {
				return err
			}
			if actor.OperatorID == "" {
				return fmt.Errorf("--operator is required to mint a token")
			}
			if ttl <= 0 {
				ttl = e.cfg.Server.TokenTTL
			}
			token, err := web.IssueToken(e.cfg.Server.JWTSecret, actor, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (defaults to server.token_ttl)")
	return cmd
}

func (e *env) seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed [fixture.yaml]",
		Short: "Load warehouses, bins and operators into the configured store",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := seed.Default()
			if len(args) == 1 {
				var err error
				if f, err = seed.Load(args[0]); err != nil {
					return err
				}
			}
			counts, err := seed.Apply(cmd.Context(), e.rt.Store, f)
			if err != nil {
				return err
			}
			e.log.Info("fixture loaded", zap.String("store", e.cfg.Store.Driver))
			return printJSON(cmd.OutOrStdout(), counts)
		},
	}
}

func orArg(flag, arg string) string {
	if flag != "" {
		return flag
	}
	return arg
}
