package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/inevity/zhibot/internal/config"
	zerrors "github.com/inevity/zhibot/internal/errors"
	"github.com/inevity/zhibot/oauth2"
	"github.com/inevity/zhibot/server"
	"github.com/inevity/zhibot/token"
	"github.com/inevity/zhibot/token/refresh"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

type issueOptions struct {
	subject    string
	clientID   string
	clientName string
	clientIcon string
	longLived  bool
	expires    time.Duration
}

func newTokenCmd() *cobra.Command {
	tokenCmd := &cobra.Command{
		Use:   "token",
		Short: "Manage grants of the built-in identity provider",
	}

	var opts issueOptions
	issueCmd := &cobra.Command{
		Use:   "issue",
		Short: "Issue a refresh token and its first access token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := issueToken(cmd, opts)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(resp)
		},
	}
	issueCmd.Flags().StringVar(&opts.subject, "subject", "", "user the grant is issued to (required)")
	issueCmd.Flags().StringVar(&opts.clientID, "client-id", "", "OAuth client owning the grant")
	issueCmd.Flags().StringVar(&opts.clientName, "client-name", "", "display name, defaults to the configured client name")
	issueCmd.Flags().StringVar(&opts.clientIcon, "client-icon", "", "display icon, defaults to the configured client icon")
	issueCmd.Flags().BoolVar(&opts.longLived, "long-lived", false, "issue a long-lived access token grant")
	issueCmd.Flags().DurationVar(&opts.expires, "expires", 0, "access token lifetime (provider default when zero)")
	_ = issueCmd.MarkFlagRequired("subject")

	revokeCmd := &cobra.Command{
		Use:   "revoke <refresh-token>",
		Short: "Revoke a refresh token and every access token minted from it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			provider, err := server.OpenProvider(config.New())
			if err != nil {
				return err
			}
			defer provider.Close()
			// access token revocations live in the serving process's memory only
			if provider.IsAccessToken(args[0]) {
				return fmt.Errorf("%w: that is an access token, revoke the refresh token it was issued from instead",
					zerrors.ErrInvalidRequest)
			}
			if err := provider.Revoke(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "revoked")
			return nil
		},
	}

	tokenCmd.AddCommand(issueCmd, revokeCmd)
	return tokenCmd
}

func issueToken(cmd *cobra.Command, opts issueOptions) (*oauth2.TokenResponse, error) {
	cfg := config.New()
	file, err := loadConfigFile(cfg)
	if err != nil {
		return nil, err
	}

	req := token.GrantRequest{
		Subject:               opts.subject,
		ClientID:              opts.clientID,
		ClientName:            opts.clientName,
		ClientIcon:            opts.clientIcon,
		AccessTokenExpiration: opts.expires,
	}
	if opts.clientID != "" {
		c, ok := findClient(file.Clients, opts.clientID)
		if !ok {
			return nil, fmt.Errorf("%w: client %q is not configured", zerrors.ErrInvalidClient, opts.clientID)
		}
		if req.ClientName == "" {
			req.ClientName = c.Name
		}
		if req.ClientIcon == "" {
			req.ClientIcon = c.Icon
		}
	}
	if opts.longLived {
		req.TokenType = refresh.TokenTypeLongLived
		if req.AccessTokenExpiration == 0 {
			req.AccessTokenExpiration = cfg.GetLongLivedTokenExpiry()
		}
	}

	provider, err := server.OpenProvider(cfg)
	if err != nil {
		return nil, err
	}
	defer provider.Close()

	if server.NeedsLifetimeExtender(file.Bots) {
		provider.Install(token.NewLifetimeExtender(cfg.GetDefaultAccessTokenExpiry(), cfg.GetExtendedAccessTokenExpiry()))
		log.Warn().Msg("zhibot: an OAuth bot is configured, default-expiry grants are extended")
	}

	ctx := cmd.Context()
	rt, err := provider.IssueRefreshToken(ctx, req)
	if err != nil {
		return nil, err
	}
	accessToken, err := provider.CreateAccessToken(ctx, rt)
	if err != nil {
		return nil, err
	}
	return &oauth2.TokenResponse{
		AccessToken:  &accessToken,
		TokenType:    "Bearer",
		ExpiresIn:    int(rt.AccessTokenExpiration.Seconds()),
		RefreshToken: &rt.Token,
	}, nil
}

func findClient(clients []config.ClientConfig, id string) (config.ClientConfig, bool) {
	for _, c := range clients {
		if c.ID == id {
			return c, true
		}
	}
	return config.ClientConfig{}, false
}
