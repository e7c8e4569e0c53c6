package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"ssorelay/internal/oidc"
	"ssorelay/internal/relay"
	"ssorelay/internal/state"
	"ssorelay/pkg/cipher"
	"ssorelay/pkg/config"
	"ssorelay/pkg/db"
	"ssorelay/pkg/logger"
	"ssorelay/pkg/tenants"
)

func newRootCmd(cfg config.Config, log logger.Sugared) *cobra.Command {
	root := &cobra.Command{
		Use:          "relayctl",
		Short:        "Operator tooling for the SSO relay",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&cfg.SecretKey, "secret", cfg.SecretKey, "shared secret (defaults to SECRET_KEY)")
	root.PersistentFlags().StringVar(&cfg.CipherMode, "cipher", cfg.CipherMode, "cipher mode: legacy or aead")

	newCipher := func() (cipher.Cipher, error) {
		if cfg.SecretKey == "" {
			return nil, fmt.Errorf("no secret: set SECRET_KEY or --secret")
		}
		return cipher.New(cfg.CipherMode, cfg.SecretKey)
	}

	root.AddCommand(&cobra.Command{
		Use:   "encrypt <text>",
		Short: "Encrypt text the way the relay encrypts userMailId",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newCipher()
			if err != nil {
				return err
			}
			out, err := c.Encrypt(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "decrypt <ciphertext>",
		Short: "Decrypt a userMailId or interfaceKey value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newCipher()
			if err != nil {
				return err
			}
			out, err := c.Decrypt(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		},
	})

	var date string
	var encrypt bool
	keyCmd := &cobra.Command{
		Use:   "interface-key",
		Short: "Print the interface key for a day (UTC today by default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			day := time.Now().UTC()
			if date != "" {
				d, err := time.Parse("20060102", date)
				if err != nil {
					return fmt.Errorf("--date must be YYYYMMDD: %w", err)
				}
				day = d
			}
			key := cipher.InterfaceKeyString(cfg.ServiceAreaID, day)
			if !encrypt {
				fmt.Fprintln(cmd.OutOrStdout(), key)
				return nil
			}
			c, err := newCipher()
			if err != nil {
				return err
			}
			out, err := c.Encrypt(key)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		},
	}
	keyCmd.Flags().StringVar(&date, "date", "", "day as YYYYMMDD")
	keyCmd.Flags().BoolVar(&encrypt, "encrypt", false, "print the encrypted value sent to tenants")
	keyCmd.Flags().Int64Var(&cfg.ServiceAreaID, "service-area", cfg.ServiceAreaID, "service area id")
	root.AddCommand(keyCmd)

	root.AddCommand(&cobra.Command{
		Use:   "login-url <tenant>",
		Short: "Resolve a tenant and print its authorization URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			prov, err := tenants.Select(ctx, db.MustConnect(cfg, log), cfg.TenantSeedJSON, cfg.TenantConfigDir, log)
			if err != nil {
				return err
			}
			tc, err := prov.Resolve(ctx, args[0])
			if err != nil {
				return err
			}
			states, err := state.NewManager(state.Options{
				Mode:       cfg.StateMode,
				Secret:     cfg.SecretKey,
				TTL:        cfg.StateTTL,
				BindCookie: cfg.StateCookie,
			})
			if err != nil {
				return err
			}
			svc := relay.NewService(relay.Deps{
				Tenants: prov,
				IdP:     oidc.NewClient(cfg.TokenTimeout),
				States:  states,
				Log:     log,
			}, relay.Options{
				RedirectURI: cfg.RedirectURI,
				MainDomain:  cfg.MainDomain,
				IdPHint:     cfg.IdentityProviderHint,
			})
			login, err := svc.BuildLoginURL(args[0], tc)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), login.URL)
			if login.State.Nonce != "" {
				cmd.PrintErrln("nonce cookie " + relay.NoncePrefix + args[0] + "=" + login.State.Nonce +
					" (expires " + strconv.FormatInt(login.State.ExpiresAt.Unix(), 10) + ")")
			}
			return nil
		},
	})

	return root
}
