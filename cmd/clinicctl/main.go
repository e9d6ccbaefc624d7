// Command clinicctl runs back-office chores against the clinic database:
// migrations, catalog imports, admin accounts and spreadsheet exports.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"clinicdesk/internal/changefeed"
	"clinicdesk/internal/config"
	"clinicdesk/internal/db"
	"clinicdesk/internal/domain"
	"clinicdesk/internal/excel"
	"clinicdesk/internal/logging"
	"clinicdesk/internal/reporting"
	"clinicdesk/internal/repository"
	"clinicdesk/internal/service"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const appName = "clinicctl"

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type env struct {
	cfg    config.Config
	logger *zap.Logger
	pool   *pgxpool.Pool
	feed   changefeed.Feed
	svc    *service.Service
}

func (e *env) Close() {
	if e.feed != nil {
		_ = e.feed.Close()
	}
	if e.pool != nil {
		e.pool.Close()
	}
	_ = e.logger.Sync()
}

// setup loads config, connects to PostgreSQL and applies pending migrations.
// Writes are announced on NATS when configured so a running server refreshes.
func setup(ctx context.Context) (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	logger, err := logging.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	e := &env{cfg: cfg, logger: logger.Named(appName)}

	e.pool, err = db.NewPool(ctx, cfg.DatabaseURL, db.PoolOptions{MaxConns: 4, MinConns: 1, Logger: e.logger})
	if err != nil {
		e.Close()
		return nil, fmt.Errorf("database: %w", err)
	}
	if err := db.RunMigrations(ctx, e.pool, e.logger); err != nil {
		e.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}

	e.feed = changefeed.NewLocal()
	if cfg.NATSURL != "" {
		natsFeed, err := changefeed.NewNATS(cfg.NATSURL, e.logger)
		if err != nil {
			e.Close()
			return nil, err
		}
		_ = e.feed.Close()
		e.feed = natsFeed
	}
	e.svc = service.New(repository.New(e.pool), e.feed, e.logger)
	return e, nil
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           appName,
		Short:         "Clinic back-office maintenance",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.AddCommand(migrateCmd(), importCmd(), createAdminCmd(), exportCmd())
	return cmd
}

func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := commandContext(cmd)
			defer cancel()
			e, err := setup(ctx)
			if err != nil {
				return err
			}
			defer e.Close()
			versions, err := db.MigrationVersions()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema is at %s\n", versions[len(versions)-1])
			return nil
		},
	}
}

func importCmd() *cobra.Command {
	var vendorID, file string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import a vendor's products from an .xlsx or .csv sheet",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := commandContext(cmd)
			defer cancel()
			e, err := setup(ctx)
			if err != nil {
				return err
			}
			defer e.Close()

			f, err := os.Open(file)
			if err != nil {
				return err
			}
			defer f.Close()
			rows, err := excel.ParseProductRows(file, f)
			if err != nil {
				return err
			}
			result, err := e.svc.ImportProducts(ctx, vendorID, rows)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "rows: %d created: %d updated: %d restocked: %d skipped: %d\n",
				len(rows), result.Created, result.Updated, result.Restocked, len(result.Skipped))
			for _, reason := range result.Skipped {
				fmt.Fprintf(out, "  %s\n", reason)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&vendorID, "vendor", "", "Vendor id the products belong to")
	cmd.Flags().StringVarP(&file, "file", "f", "", "Path to the .xlsx or .csv sheet")
	_ = cmd.MarkFlagRequired("vendor")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func createAdminCmd() *cobra.Command {
	var username, password string
	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create an admin account",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := commandContext(cmd)
			defer cancel()
			e, err := setup(ctx)
			if err != nil {
				return err
			}
			defer e.Close()
			if password == "" {
				password = os.Getenv("ADMIN_PASSWORD")
			}
			admin, err := e.svc.CreateAdmin(ctx, username, password)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created admin %s (%s)\n", admin.Username, admin.ID)
			return nil
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "Admin username")
	cmd.Flags().StringVarP(&password, "password", "p", "", "Admin password (defaults to $ADMIN_PASSWORD)")
	_ = cmd.MarkFlagRequired("username")
	return cmd
}

func exportCmd() *cobra.Command {
	var kind, out string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write sales, products or appointments to an .xlsx file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := commandContext(cmd)
			defer cancel()
			e, err := setup(ctx)
			if err != nil {
				return err
			}
			defer e.Close()

			f, err := os.Create(out)
			if err != nil {
				return err
			}
			defer f.Close()
			if err := writeExport(ctx, e.svc, kind, f); err != nil {
				return err
			}
			e.logger.Info("export written", zap.String("kind", kind), zap.String("path", out))
			return f.Close()
		},
	}
	cmd.Flags().StringVar(&kind, "kind", "sales", "What to export: sales, products or appointments")
	cmd.Flags().StringVarP(&out, "out", "o", "export.xlsx", "Output path")
	return cmd
}

func writeExport(ctx context.Context, svc *service.Service, kind string, f *os.File) error {
	switch kind {
	case "sales":
		sales, err := reporting.AllSales(ctx, svc.Store(), domain.SaleFilter{})
		if err != nil {
			return err
		}
		return excel.WriteSales(f, sales)
	case "products":
		products, err := svc.ListProducts(ctx, domain.ProductFilter{})
		if err != nil {
			return err
		}
		vendors, err := svc.ListVendors(ctx)
		if err != nil {
			return err
		}
		names := make(map[string]string, len(vendors))
		for _, v := range vendors {
			names[v.ID] = v.Name
		}
		return excel.WriteProducts(f, products, names)
	case "appointments":
		appts, err := svc.ListAppointments(ctx, domain.AppointmentFilter{})
		if err != nil {
			return err
		}
		return excel.WriteAppointments(f, appts)
	}
	return fmt.Errorf("unknown export kind %q", kind)
}
