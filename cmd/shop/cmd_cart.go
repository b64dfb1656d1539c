package main

import (
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	pkgerrors "github.com/sweetcrumb/storefront/pkg/errors"
)

func newProductsCmd(s *shop) *cobra.Command {
	return &cobra.Command{
		Use:   "products",
		Short: "List the cookies for sale",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			products, err := s.api.Products(cmd.Context())
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(s.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tPRICE")
			for _, p := range products {
				fmt.Fprintf(tw, "%s\t%s\t$%s\n", p.ID, p.Name, p.Price)
			}
			return tw.Flush()
		},
	}
}

func newCartCmd(s *shop) *cobra.Command {
	cartCmd := &cobra.Command{
		Use:   "cart",
		Short: "Manage the cart kept on this machine",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "Show cart lines and subtotal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return s.printCart(cmd)
		},
	}

	var qty int
	addCmd := &cobra.Command{
		Use:   "add <productId>",
		Short: "Add a product to the cart",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, ok := s.catalog.Resolve(args[0]); !ok {
				return pkgerrors.New(pkgerrors.CodeNotFound, "unknown product "+args[0])
			}
			c, err := s.cart(cmd.Context())
			if err != nil {
				return err
			}
			if err := c.AddItem(cmd.Context(), args[0], qty); err != nil {
				return err
			}
			return s.printCart(cmd)
		},
	}
	addCmd.Flags().IntVarP(&qty, "qty", "q", 1, "Quantity to add")

	updateCmd := &cobra.Command{
		Use:   "update <productId> <quantity>",
		Short: "Set a line's quantity; zero removes it",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := strconv.Atoi(args[1])
			if err != nil {
				return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be a whole number")
			}
			if _, ok := s.catalog.Resolve(args[0]); n > 0 && !ok {
				return pkgerrors.New(pkgerrors.CodeNotFound, "unknown product "+args[0])
			}
			c, err := s.cart(cmd.Context())
			if err != nil {
				return err
			}
			if err := c.UpdateQuantity(cmd.Context(), args[0], n); err != nil {
				return err
			}
			return s.printCart(cmd)
		},
	}

	removeCmd := &cobra.Command{
		Use:   "remove <productId>",
		Short: "Drop a product from the cart",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := s.cart(cmd.Context())
			if err != nil {
				return err
			}
			if err := c.RemoveItem(cmd.Context(), args[0]); err != nil {
				return err
			}
			return s.printCart(cmd)
		},
	}

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Empty the cart",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := s.cart(cmd.Context())
			if err != nil {
				return err
			}
			if err := c.Clear(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(s.out, "Cart cleared")
			return nil
		},
	}

	cartCmd.AddCommand(listCmd, addCmd, updateCmd, removeCmd, clearCmd)
	return cartCmd
}

func (s *shop) printCart(cmd *cobra.Command) error {
	c, err := s.cart(cmd.Context())
	if err != nil {
		return err
	}
	items := c.Items()
	if len(items) == 0 {
		fmt.Fprintln(s.out, "Cart is empty")
		return nil
	}

	tw := tabwriter.NewWriter(s.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tQTY\tLINE")
	for _, it := range items {
		p, ok := s.catalog.Resolve(it.ProductID)
		name := p.Name
		if !ok {
			name = "(unavailable)"
		}
		line := decimal.New(p.PriceCents*int64(it.Quantity), -2)
		fmt.Fprintf(tw, "%s\t%s\t%d\t$%s\n", it.ProductID, name, it.Quantity, line.StringFixed(2))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	subtotal := decimal.New(c.Subtotal(s.catalog), -2)
	fmt.Fprintf(s.out, "%d items, subtotal $%s\n", c.ItemCount(), subtotal.StringFixed(2))
	return nil
}
