package main

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/lithammer/dedent"
	"github.com/raine/authclient/internal/claims"
	"github.com/raine/authclient/internal/credential"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func init() {
	rootCmd.AddCommand(newLoginCommand(), newLogoutCommand(), newWhoamiCommand(), newGetCommand())
}

func newLoginCommand() *cobra.Command {
	var cred credential.Credential

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Store an access/refresh token pair",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.client.Login(cred); err != nil {
				return err
			}
			cmd.Println("Logged in.")
			return nil
		},
	}
	cmd.Flags().StringVar(&cred.AccessToken, "access", "", "Access token")
	cmd.Flags().StringVar(&cred.RefreshToken, "refresh", "", "Refresh token")
	cmd.MarkFlagRequired("access")
	cmd.MarkFlagRequired("refresh")
	return cmd
}

func newLogoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored tokens",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.client.Logout(); err != nil {
				return err
			}
			cmd.Println("Logged out.")
			return nil
		},
	}
}

func newWhoamiCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the claims of the stored access token",
		Long: strings.TrimSpace(dedent.Dedent(`
			Show the claims of the stored access token.

			The token payload is decoded without verifying its signature or
			expiry. Use it for display only.
		`)),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.close()

			token, ok := a.store.AccessToken()
			if !ok {
				return fmt.Errorf("not logged in")
			}
			c, err := claims.Decode(token)
			if err != nil {
				return err
			}
			return printClaims(cmd, c)
		},
	}
}

func printClaims(cmd *cobra.Command, c claims.Claims) error {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		v, err := json.Marshal(c[k])
		if err != nil {
			return err
		}
		cmd.Printf("%s: %s\n", k, v)
	}
	return nil
}

func newGetCommand() *cobra.Command {
	var showMetrics bool

	cmd := &cobra.Command{
		Use:   "get PATH...",
		Short: "Send authenticated GET requests",
		Long: strings.TrimSpace(dedent.Dedent(`
			Send authenticated GET requests.

			All paths are requested concurrently. If the access token has
			expired the requests share a single token refresh.
		`)),
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.close()

			bodies := make([]string, len(args))
			statuses := make([]int, len(args))
			var g errgroup.Group
			for i, path := range args {
				i, path := i, path
				g.Go(func() error {
					res, err := a.client.Get(context.Background(), path, nil)
					if res != nil {
						statuses[i] = res.StatusCode()
						bodies[i] = string(res.Body())
					}
					return err
				})
			}
			err = g.Wait()

			for i, path := range args {
				cmd.Printf("%s %d\n%s\n", path, statuses[i], bodies[i])
			}
			if showMetrics {
				if err := printMetrics(cmd, a); err != nil {
					return err
				}
			}
			return err
		},
	}
	cmd.Flags().BoolVar(&showMetrics, "metrics", false, "Print refresh metrics after the requests finish")
	return cmd
}

func printMetrics(cmd *cobra.Command, a *app) error {
	families, err := a.registry.Gather()
	if err != nil {
		return fmt.Errorf("failed to gather metrics: %w", err)
	}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			labels := make([]string, 0, len(m.GetLabel()))
			for _, l := range m.GetLabel() {
				labels = append(labels, l.GetName()+"="+l.GetValue())
			}
			cmd.Printf("%s{%s} %g\n", mf.GetName(), strings.Join(labels, ","), m.GetCounter().GetValue())
		}
	}
	return nil
}
