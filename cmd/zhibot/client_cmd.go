package main

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/inevity/zhibot/clients"
	"github.com/spf13/cobra"
)

func newClientCmd() *cobra.Command {
	clientCmd := &cobra.Command{
		Use:   "client",
		Short: "Helpers for the OAuth clients in the config file",
	}

	hashCmd := &cobra.Command{
		Use:   "hash-secret [secret]",
		Short: "Print the secret_hash for a confidential client (reads stdin without an argument)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var secret string
			if len(args) == 1 {
				secret = args[0]
			} else {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("read secret: %w", err)
				}
				secret = strings.TrimRight(line, "\r\n")
			}
			if secret == "" {
				return errors.New("secret must not be empty")
			}
			hash, err := clients.HashSecret(secret)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}

	clientCmd.AddCommand(hashCmd)
	return clientCmd
}
