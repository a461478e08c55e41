package cmd

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/admaesmo/AidDiag/internal/cliconfig"
	"github.com/admaesmo/AidDiag/pkg/client"
)

var loginPassword string

// loginCmd exchanges email and password for a token pair and stores it
// locally so later CLI calls are authenticated.
var loginCmd = &cobra.Command{
	Use:   "login <email>",
	Short: "Authenticate with an AidDiag server",
	Long: `Signs in with email and password and saves the returned access and
refresh tokens locally to allow future authenticated requests (like audit logs).`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		email := args[0]

		server := viper.GetString(ServerAddrKey)
		if server == "" {
			return fmt.Errorf("server address not configured, provide via --server or AIDDIAG_ADDR")
		}
		u, err := url.Parse(server)
		if err != nil {
			return fmt.Errorf("parsing server URL: %w", err)
		}

		password := loginPassword
		if password == "" {
			fmt.Fprint(os.Stderr, "Password: ")
			raw, err := term.ReadPassword(int(syscall.Stdin))
			fmt.Fprintln(os.Stderr)
			if err != nil {
				return fmt.Errorf("reading password: %w", err)
			}
			password = string(raw)
		}

		cli := client.New(server)

		log.Info().Msgf("Signing in to server %q...", u.Host)

		tokens, correlationID, err := cli.SignIn(cmd.Context(), email, password)
		if err != nil {
			return logError(err, correlationID, "sign-in failed")
		}

		cfg, err := cliconfig.Load()
		if err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("loading config: %w", err)
			}
			cfg = &cliconfig.CLIConfig{}
		}
		if err := cfg.SetCredential(server, &cliconfig.Credential{
			Token:        tokens.Token,
			RefreshToken: tokens.RefreshToken,
		}); err != nil {
			return err
		}
		if err := cliconfig.Save(cfg); err != nil {
			return logError(err, "", "login succeeded but could not save credentials")
		}

		logSuccess("saved credentials for %s (token expires %s)", bold(u.Host), tokens.ExpiresAt.Local())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(loginCmd)

	loginCmd.Flags().StringVarP(&loginPassword, "password", "p", "", "Password (prompted if omitted)")
}
