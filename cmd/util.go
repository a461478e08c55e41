package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"github.com/admaesmo/AidDiag/internal/cliconfig"
	"github.com/admaesmo/AidDiag/pkg/client"
)

var (
	bold       = color.New(color.Bold).SprintFunc()
	greenCheck = color.GreenString("✓")
	redCross   = color.RedString("✗")
)

// BeQuietError signals that the error has already been reported to the user
// and the root command should not log it again.
type BeQuietError struct{}

func (BeQuietError) Error() string {
	return "command failed"
}

func logSuccess(format string, args ...any) {
	log.Info().Msgf(greenCheck+" "+format, args...)
}

func logError(err error, correlationID, format string, args ...any) error {
	log.Error().Msgf(redCross+" "+format, args...)
	if correlationID != "" {
		log.Error().Msgf("correlation ID: %s", correlationID)
	}
	log.Error().Msgf("error: %v", err)
	return BeQuietError{}
}

func getClient() (*client.Client, error) {
	// we need the user to provide some server address first
	server := viper.GetString(ServerAddrKey)
	if server == "" {
		return nil, fmt.Errorf("server address not configured, provide via --server or AIDDIAG_ADDR")
	}

	var token string

	cfg, err := cliconfig.Load()
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	} else {
		if cred, err := cfg.GetCredential(server); err == nil {
			token = cred.Token
		} else if !errors.Is(err, cliconfig.ErrCredentialNotFound) {
			return nil, err
		}
	}

	if envToken := os.Getenv("AIDDIAG_TOKEN"); envToken != "" {
		token = envToken
	}

	return client.New(server, client.WithToken(token)), nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
