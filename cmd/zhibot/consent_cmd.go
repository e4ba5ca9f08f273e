package main

import (
	"fmt"
	"strings"

	"github.com/inevity/zhibot/bot"
	"github.com/inevity/zhibot/consent"
	"github.com/inevity/zhibot/internal/config"
	zerrors "github.com/inevity/zhibot/internal/errors"
	"github.com/spf13/cobra"
)

func newConsentCmd() *cobra.Command {
	consentCmd := &cobra.Command{
		Use:   "consent",
		Short: "Inspect and edit the caller ids approved through interactive consent",
	}

	listCmd := &cobra.Command{
		Use:   "list <bot>",
		Short: "List approved caller ids",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := consentPath(args[0])
			if err != nil {
				return err
			}
			for _, id := range consent.NewStore().Approved(path) {
				fmt.Fprintln(cmd.OutOrStdout(), id)
			}
			return nil
		},
	}

	revokeCmd := &cobra.Command{
		Use:   "revoke <bot> <id>",
		Short: "Remove one approved caller id",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := consentPath(args[0])
			if err != nil {
				return err
			}
			removed, err := consent.NewStore().Revoke(path, args[1])
			if err != nil {
				return err
			}
			if !removed {
				return fmt.Errorf("%w: %s is not approved for %s", zerrors.ErrNotFound, args[1], args[0])
			}
			fmt.Fprintf(cmd.OutOrStdout(), "revoked %s\n", args[1])
			return nil
		},
	}

	clearCmd := &cobra.Command{
		Use:   "clear <bot>",
		Short: "Remove every approved caller id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := consentPath(args[0])
			if err != nil {
				return err
			}
			if err := consent.NewStore().Clear(path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "cleared %s\n", args[0])
			return nil
		},
	}

	consentCmd.AddCommand(listCmd, revokeCmd, clearCmd)
	return consentCmd
}

// consentPath resolves a bot by its name, its path segment or its platform.
func consentPath(ref string) (string, error) {
	cfg := config.New()
	file, err := loadConfigFile(cfg)
	if err != nil {
		return "", err
	}

	ref = strings.TrimPrefix(strings.TrimSpace(ref), "/")
	for _, b := range file.Bots {
		kind, err := bot.ParsePlatform(b.Platform)
		if err != nil {
			return "", err
		}
		key := bot.PathKey(kind, b.Name)
		if ref == key || (b.Name != "" && ref == b.Name) {
			return consent.StoragePath(cfg.GetDataFolder(), key), nil
		}
	}
	return "", fmt.Errorf("%w: no bot %q in %s", zerrors.ErrNotFound, ref, cfg.GetConfigFile())
}
