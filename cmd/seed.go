package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/admaesmo/AidDiag/internal/auth"
	"github.com/admaesmo/AidDiag/internal/core"
)

type seedUser struct {
	email    string
	password string
	role     core.Role
}

var demoUsers = []seedUser{
	{"admin@demo.local", "Admin123!", core.RoleAdmin},
	{"pro@demo.local", "Pro123!", core.RoleProfessional},
	{"patient@demo.local", "Patient123!", core.RolePatient},
}

// seedCmd provisions the demo tenant with three accounts (one per role) and
// an open case assigned to the professional. Existing accounts are skipped,
// so running it twice is safe.
var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the configured store with demo accounts",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadServeConfig()
		if err != nil {
			return err
		}
		if cfg.Store.Type == "memory" {
			return fmt.Errorf("the memory store does not persist, seed only works against postgres")
		}

		stores, cleanup, err := buildStores(cmd.Context(), cfg)
		if err != nil {
			return fmt.Errorf("building store: %w", err)
		}
		defer cleanup()

		return seed(cmd.Context(), stores, cfg.Tenant.Name)
	},
}

func seed(ctx context.Context, stores *storeSet, tenantName string) error {
	tenant, err := stores.principals.GetOrCreateTenant(ctx, tenantName)
	if err != nil {
		return fmt.Errorf("creating tenant: %w", err)
	}
	logSuccess("tenant %s ready (%s)", bold(tenantName), tenant.ID)

	var professional *core.Principal
	for _, u := range demoUsers {
		hash, err := auth.HashPassword(u.password)
		if err != nil {
			return fmt.Errorf("hashing password for %s: %w", u.email, err)
		}
		principal := &core.Principal{
			TenantID:     tenant.ID,
			Email:        u.email,
			PasswordHash: hash,
			Role:         u.role,
			Active:       true,
		}
		if err := stores.principals.CreatePrincipal(ctx, principal); err != nil {
			if errors.Is(err, core.ErrAlreadyExists) {
				log.Info().Msgf("user %s already exists, skipping", u.email)
				if u.role == core.RoleProfessional {
					if existing, err := stores.principals.FindPrincipalByEmail(ctx, tenant.ID, u.email); err == nil {
						professional = existing
					}
				}
				continue
			}
			return fmt.Errorf("creating user %s: %w", u.email, err)
		}
		logSuccess("created %s (%s)", bold(u.email), u.role)
		if u.role == core.RoleProfessional {
			professional = principal
		}
	}

	if professional == nil {
		return fmt.Errorf("no professional account available to assign the demo case")
	}

	patient, err := stores.principals.FindPrincipalByEmail(ctx, tenant.ID, "patient@demo.local")
	if err != nil {
		return fmt.Errorf("looking up demo patient: %w", err)
	}

	demoCase := &core.Case{
		TenantID:   tenant.ID,
		PatientID:  patient.ID,
		AssignedTo: &professional.ID,
		Status:     "open",
	}
	if err := stores.cases.CreateCase(ctx, demoCase); err != nil {
		return fmt.Errorf("creating demo case: %w", err)
	}
	logSuccess("created open case %s assigned to %s", demoCase.ID, bold(professional.Email))
	return nil
}

func init() {
	rootCmd.AddCommand(seedCmd)

	seedCmd.Flags().StringVarP(&cfgFile, "config", "c", "", "Path to the server configuration file")
}
