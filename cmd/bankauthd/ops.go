package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/MrEthical07/bankauth"
	"github.com/MrEthical07/bankauth/password"
	"github.com/MrEthical07/bankauth/storage/postgres"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"
)

func newMigrateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the Postgres schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			pool, err := a.openPool(cmd.Context())
			if err != nil {
				return err
			}
			defer pool.Close()
			if err := postgres.Migrate(cmd.Context(), pool); err != nil {
				return err
			}
			a.log.Info("schema applied")
			return nil
		},
	}
}

func newSweepCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Purge expired refresh tokens once",
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := a.openDeps(cmd.Context())
			if err != nil {
				return err
			}
			defer d.Close()
			n, err := d.engine.SweepRefreshTokens(cmd.Context())
			if err != nil {
				return err
			}
			a.log.Info("refresh tokens purged", zap.Int64("count", n))
			return nil
		},
	}
}

func newHashPasswordCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "hash-password",
		Short: "Print a bcrypt hash of the password read from stdin",
		RunE: func(cmd *cobra.Command, args []string) error {
			plain, err := readSecret(cmd)
			if err != nil {
				return err
			}
			hash, err := a.hash(plain)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
}

func newCreateAdminCmd(a *app) *cobra.Command {
	var email, name string
	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Insert an admin user; the password is read from stdin",
		RunE: func(cmd *cobra.Command, args []string) error {
			email = strings.ToLower(strings.TrimSpace(email))
			if email == "" || strings.TrimSpace(name) == "" {
				return errors.New("--email and --name are required")
			}
			plain, err := readSecret(cmd)
			if err != nil {
				return err
			}
			if err := bankauth.CheckPasswordPolicy(plain); err != nil {
				return err
			}
			hash, err := a.hash(plain)
			if err != nil {
				return err
			}

			pool, err := a.openPool(cmd.Context())
			if err != nil {
				return err
			}
			defer pool.Close()

			u := &bankauth.User{
				ID:           uuid.NewString(),
				Email:        email,
				PasswordHash: hash,
				Name:         strings.TrimSpace(name),
				Role:         bankauth.RoleAdmin,
				CreatedAt:    time.Now().UTC(),
			}
			if err := postgres.NewStore(pool).CreateUser(cmd.Context(), u); err != nil {
				return err
			}
			a.log.Info("admin created", zap.String("user_id", u.ID), zap.String("email", u.Email))
			fmt.Fprintln(cmd.OutOrStdout(), u.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "admin email")
	cmd.Flags().StringVar(&name, "name", "", "display name")
	return cmd
}

func newReportCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "report",
		Short: "Print the security posture of the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.cfg.ToEngineConfig()
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(bankauth.ReportFor(cfg))
		},
	}
}

func (a *app) hash(plain string) (string, error) {
	v, err := password.NewVerifier(password.Config{Cost: a.cfg.Password.BcryptCost})
	if err != nil {
		return "", err
	}
	return v.Hash(plain)
}

// readSecret reads a single line from stdin so secrets stay out of argv.
// On a terminal the input is not echoed.
func readSecret(cmd *cobra.Command) (string, error) {
	if f, ok := cmd.InOrStdin().(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(cmd.ErrOrStderr(), "Password: ")
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(cmd.ErrOrStderr())
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		if len(b) == 0 {
			return "", errors.New("empty password")
		}
		return string(b), nil
	}

	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("read password: %w", err)
	}
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return "", errors.New("empty password")
	}
	return line, nil
}

