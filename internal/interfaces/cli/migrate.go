package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/turtacn/RigorAudit/internal/infrastructure/database/postgres"
	"github.com/turtacn/RigorAudit/pkg/errors"
)

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the PostgreSQL schema",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply every pending migration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd, func(mg *postgres.Migrator) error {
				if err := mg.Up(); err != nil {
					return err
				}
				return printMigrationStatus(cmd, mg)
			})
		},
	}

	var steps int
	downCmd := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if steps < 1 {
				return errors.New(errors.ErrCodeBadRequest, "--steps must be at least 1")
			}
			return withMigrator(cmd, func(mg *postgres.Migrator) error {
				if err := mg.Down(steps); err != nil {
					return err
				}
				return printMigrationStatus(cmd, mg)
			})
		},
	}
	downCmd.Flags().IntVar(&steps, "steps", 1, "number of migrations to roll back")

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show the current schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd, func(mg *postgres.Migrator) error {
				return printMigrationStatus(cmd, mg)
			})
		},
	}

	forceCmd := &cobra.Command{
		Use:   "force VERSION",
		Short: "Set the schema version without running migrations, clearing the dirty flag",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			version, err := strconv.Atoi(args[0])
			if err != nil {
				return errors.Newf(errors.ErrCodeBadRequest, "invalid version %q", args[0])
			}
			return withMigrator(cmd, func(mg *postgres.Migrator) error {
				if err := mg.Force(version); err != nil {
					return err
				}
				return printMigrationStatus(cmd, mg)
			})
		},
	}

	cmd.AddCommand(upCmd, downCmd, statusCmd, forceCmd)
	return cmd
}

// withMigrator opens the configured database and runs fn with a migrator
// bound to it.
func withMigrator(cmd *cobra.Command, fn func(mg *postgres.Migrator) error) error {
	cliCtx, err := GetCLIContext(cmd)
	if err != nil {
		return err
	}

	conn, err := postgres.NewConnection(postgresConfig(cliCtx.Config.Database), cliCtx.Logger)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	mg, err := postgres.NewMigrator(conn.DB(), cliCtx.Logger)
	if err != nil {
		_ = conn.Close()
		return err
	}
	// The migrator owns the connection from here on.
	defer mg.Close()
	return fn(mg)
}

func printMigrationStatus(cmd *cobra.Command, mg *postgres.Migrator) error {
	version, dirty, err := mg.Status()
	if err != nil {
		return err
	}
	return PrintResult(cmd, &migrationView{Version: version, Dirty: dirty})
}
