package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newSignUpCmd(s *shop) *cobra.Command {
	var email, password, fullName string
	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create an account and sign in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := s.api.SignUp(cmd.Context(), email, password, fullName); err != nil {
				return err
			}
			fmt.Fprintf(s.out, "Signed up as %s\n", email)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "Account email")
	cmd.Flags().StringVar(&password, "password", "", "Account password, at least 6 characters")
	cmd.Flags().StringVar(&fullName, "name", "", "Full name stored on the profile")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func newSignInCmd(s *shop) *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "signin",
		Short: "Sign in with email and password",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := s.api.SignIn(cmd.Context(), email, password); err != nil {
				return err
			}
			fmt.Fprintf(s.out, "Signed in as %s\n", email)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "Account email")
	cmd.Flags().StringVar(&password, "password", "", "Account password")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func newSignOutCmd(s *shop) *cobra.Command {
	return &cobra.Command{
		Use:   "signout",
		Short: "Sign out and forget the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := s.api.SignOut(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(s.out, "Signed out")
			return nil
		},
	}
}

func newWhoAmICmd(s *shop) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ident, err := s.api.CurrentSession(cmd.Context())
			if err != nil {
				return err
			}
			if ident == nil {
				fmt.Fprintln(s.out, "Not signed in")
				return nil
			}
			fmt.Fprintf(s.out, "%s (%s)\n", ident.Email, ident.UserID)
			return nil
		},
	}
}
