package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/sweetcrumb/storefront/internal/profiles"
	pkgerrors "github.com/sweetcrumb/storefront/pkg/errors"
)

func newCheckoutCmd(s *shop) *cobra.Command {
	return &cobra.Command{
		Use:   "checkout",
		Short: "Start a payment session for the cart and print its URL",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			c, err := s.cart(ctx)
			if err != nil {
				return err
			}
			items := c.Items()
			if len(items) == 0 {
				return pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
			}

			url, err := s.api.Checkout(ctx, items)
			if pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized) {
				return pkgerrors.New(pkgerrors.CodeUnauthorized, "sign in before checking out")
			}
			if err != nil {
				return err
			}
			if err := c.Clear(ctx); err != nil {
				s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "checkout started but local cart was not cleared")
			}
			fmt.Fprintln(s.out, "Complete your payment at:")
			fmt.Fprintln(s.out, url)
			return nil
		},
	}
}

// profileFlags maps each flag to the profile field it edits.
var profileFlags = []struct {
	flag  string
	usage string
	field func(*profiles.UpdateInput) **string
	value func(*profiles.ProfileDTO) string
}{
	{"full-name", "Full name", func(in *profiles.UpdateInput) **string { return &in.FullName }, func(p *profiles.ProfileDTO) string { return p.FullName }},
	{"phone", "Phone number", func(in *profiles.UpdateInput) **string { return &in.Phone }, func(p *profiles.ProfileDTO) string { return p.Phone }},
	{"address1", "Address line 1", func(in *profiles.UpdateInput) **string { return &in.AddressLine1 }, func(p *profiles.ProfileDTO) string { return p.AddressLine1 }},
	{"address2", "Address line 2", func(in *profiles.UpdateInput) **string { return &in.AddressLine2 }, func(p *profiles.ProfileDTO) string { return p.AddressLine2 }},
	{"city", "City", func(in *profiles.UpdateInput) **string { return &in.City }, func(p *profiles.ProfileDTO) string { return p.City }},
	{"state", "State or region", func(in *profiles.UpdateInput) **string { return &in.State }, func(p *profiles.ProfileDTO) string { return p.State }},
	{"postal-code", "Postal code", func(in *profiles.UpdateInput) **string { return &in.PostalCode }, func(p *profiles.ProfileDTO) string { return p.PostalCode }},
}

// mergeProfile builds a full update from the stored profile and the flags
// the user actually passed. The API replaces every field on update, so
// untouched fields must be sent back as they are.
func mergeProfile(current *profiles.ProfileDTO, flags *pflag.FlagSet) profiles.UpdateInput {
	var in profiles.UpdateInput
	for _, pf := range profileFlags {
		var v string
		if current != nil {
			v = pf.value(current)
		}
		if flags.Changed(pf.flag) {
			v, _ = flags.GetString(pf.flag)
		}
		v = strings.TrimSpace(v)
		*pf.field(&in) = &v
	}
	return in
}

func newProfileCmd(s *shop) *cobra.Command {
	profileCmd := &cobra.Command{
		Use:   "profile",
		Short: "Show or edit the shipping profile",
	}

	getCmd := &cobra.Command{
		Use:   "get",
		Short: "Show the profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := s.api.Profile(cmd.Context())
			if err != nil {
				return err
			}
			s.printProfile(p)
			return nil
		},
	}

	setCmd := &cobra.Command{
		Use:   "set",
		Short: "Change profile fields; fields without a flag keep their value",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			current, err := s.api.Profile(ctx)
			if err != nil {
				return err
			}
			updated, err := s.api.UpdateProfile(ctx, mergeProfile(current, cmd.Flags()))
			if err != nil {
				return err
			}
			s.printProfile(updated)
			return nil
		},
	}
	for _, pf := range profileFlags {
		setCmd.Flags().String(pf.flag, "", pf.usage)
	}

	profileCmd.AddCommand(getCmd, setCmd)
	return profileCmd
}

func (s *shop) printProfile(p *profiles.ProfileDTO) {
	if p == nil {
		fmt.Fprintln(s.out, "No profile yet")
		return
	}
	tw := tabwriter.NewWriter(s.out, 0, 4, 2, ' ', 0)
	for _, pf := range profileFlags {
		fmt.Fprintf(tw, "%s\t%s\n", pf.flag, pf.value(p))
	}
	_ = tw.Flush()
}

func newOrdersCmd(s *shop) *cobra.Command {
	var (
		limit  int
		cursor string
	)
	cmd := &cobra.Command{
		Use:   "orders",
		Short: "List past orders, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			page, err := s.api.Orders(cmd.Context(), limit, cursor)
			if err != nil {
				return err
			}
			list := page.Orders
			if len(list) == 0 {
				fmt.Fprintln(s.out, "No orders yet")
				return nil
			}
			tw := tabwriter.NewWriter(s.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "DATE\tORDER\tTOTAL\tSTATUS\tPRODUCTS")
			for _, o := range list {
				fmt.Fprintf(tw, "%s\t%s\t%s %s\t%s\t%s\n",
					o.CreatedAt.Local().Format("2006-01-02 15:04"),
					o.ID,
					o.AmountDisplay,
					strings.ToUpper(o.Currency),
					o.PaymentStatus,
					strings.Join(o.ProductIDs, ","),
				)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			if page.Cursor != "" {
				fmt.Fprintf(s.out, "More orders: shop orders --cursor %s\n", page.Cursor)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum orders to show; 0 uses the server default")
	cmd.Flags().StringVar(&cursor, "cursor", "", "Continue from a previous page")
	return cmd
}
