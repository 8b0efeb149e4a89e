package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/spf13/cobra"

	"github.com/abdshekho/msa-sub001/internal/auth"
	"github.com/abdshekho/msa-sub001/internal/config"
	"github.com/abdshekho/msa-sub001/internal/domain"
	"github.com/abdshekho/msa-sub001/internal/store"
)

const defaultAppName = "Storefront"

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("INFO: No .env file found or failed to load, relying on system environment")
	}
	log.SetOutput(os.Stdout)
	log.SetPrefix(fmt.Sprintf("[%s] ", defaultAppName))
	log.SetFlags(log.LstdFlags | log.Lshortfile | log.Lmicroseconds)

	if err := newRootCommand().ExecuteContext(context.Background()); err != nil {
		log.Fatalf("FATAL: %v", err)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "storefront",
		Short:         "Bilingual storefront API",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
	root.AddCommand(newServeCommand(), newMigrateCommand(), newCreateAdminCommand())
	return root
}

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and gRPC servers",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
}

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("error loading configuration: %w", err)
			}
			dbStore, err := openStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer dbStore.Close()

			if err := dbStore.Migrate(cmd.Context()); err != nil {
				return err
			}
			log.Println("INFO: Database schema is up to date.")
			return nil
		},
	}
}

func newCreateAdminCommand() *cobra.Command {
	var email, password, name string
	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create an admin account, or promote an existing one",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("error loading configuration: %w", err)
			}
			dbStore, err := openStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer dbStore.Close()

			return createAdmin(cmd.Context(), dbStore, email, password, name)
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "admin email address")
	cmd.Flags().StringVar(&password, "password", "", "admin password (min 8 characters)")
	cmd.Flags().StringVar(&name, "name", "Administrator", "display name")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

// createAdmin promotes the account with email when it exists, otherwise
// creates a credentials account with the admin role.
func createAdmin(ctx context.Context, users store.UserStorer, email, password, name string) error {
	if len(password) < auth.MinPasswordLength {
		return fmt.Errorf("password must be at least %d characters", auth.MinPasswordLength)
	}

	existing, err := users.GetUserByEmail(ctx, email)
	switch {
	case err == nil:
		if _, err := users.UpdateRole(ctx, existing.ID, domain.RoleAdmin); err != nil {
			return err
		}
		log.Printf("INFO: Promoted existing user %s to admin", existing.ID)
		return nil
	case !errors.Is(err, store.ErrUserNotFound):
		return err
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	created, err := users.CreateUser(ctx, &domain.User{
		Email:        email,
		PasswordHash: hash,
		Name:         strings.TrimSpace(name),
		Role:         domain.RoleAdmin,
		Provider:     domain.ProviderCredentials,
	})
	if err != nil {
		return err
	}
	log.Printf("INFO: Created admin user %s <%s>", created.ID, created.Email)
	return nil
}

// openStore connects to Postgres with the configured pool limits.
func openStore(ctx context.Context, cfg *config.Config) (*store.PostgresStore, error) {
	db, err := sql.Open("postgres", cfg.Postgres.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database connection: %w", err)
	}
	db.SetMaxOpenConns(cfg.Postgres.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Postgres.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Postgres.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	log.Println("INFO: Database connection established and configured successfully.")
	return store.NewPostgresStore(db), nil
}
