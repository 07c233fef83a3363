package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"ukiyo/internal/server"
	"ukiyo/internal/store"
)

func (a *app) userCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage users",
	}

	var password string
	create := &cobra.Command{
		Use:   "create [name]",
		Short: "Create a user and print its ID",
		Long:  "Create a user and print its ID. Without --password the user can only use tokens from 'user token'.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			var u store.User
			if password == "" {
				u, err = st.CreateUser(cmd.Context(), args[0])
			} else {
				var hash string
				if hash, err = server.HashPassword(password); err != nil {
					return err
				}
				u, err = st.RegisterUser(cmd.Context(), args[0], hash)
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), u.ID)
			return nil
		},
	}

	create.Flags().StringVar(&password, "password", "", "Password for POST /login")

	token := &cobra.Command{
		Use:   "token [name]",
		Short: "Issue an access token for a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.cfg.Server.JWTSecret == "" {
				return errors.New("server.jwt_secret (or UKIYO_JWT_SECRET) must be set")
			}
			st, err := a.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			u, err := st.GetUserByName(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			tok, err := server.IssueToken(a.cfg.Server.JWTSecret, u.ID, a.cfg.GetTokenTTL())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}

	cmd.AddCommand(create, token)
	return cmd
}
