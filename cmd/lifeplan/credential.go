package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func (c *cli) credentialCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "credential",
		Short: "Store the HTTP mirror token in the system keyring",
	}

	var key string
	keyFor := func() (string, error) {
		if key != "" {
			return key, nil
		}
		cfg, err := c.config()
		if err != nil {
			return "", err
		}
		return cfg.Mirror.CredentialKey, nil
	}

	set := &cobra.Command{
		Use:   "set [token]",
		Short: "Save a token; read from stdin when not given",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			k, err := keyFor()
			if err != nil {
				return err
			}
			var token string
			if len(args) == 1 {
				token = args[0]
			} else {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("reading token: %w", err)
				}
				token = line
			}
			token = strings.TrimSpace(token)
			if token == "" {
				return fmt.Errorf("token is empty")
			}
			if err := c.opts.Credentials.Set(k, token); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved credential %q\n", k)
			return nil
		},
	}

	del := &cobra.Command{
		Use:   "delete",
		Short: "Delete the token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			k, err := keyFor()
			if err != nil {
				return err
			}
			if err := c.opts.Credentials.Delete(k); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted credential %q\n", k)
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&key, "key", "", "keyring entry (mirror.credential_key)")
	cmd.AddCommand(set, del)
	return cmd
}
