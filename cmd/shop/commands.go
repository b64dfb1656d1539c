package main

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/sweetcrumb/storefront/internal/auth"
	"github.com/sweetcrumb/storefront/internal/cart"
	"github.com/sweetcrumb/storefront/internal/catalog"
	"github.com/sweetcrumb/storefront/internal/client"
	"github.com/sweetcrumb/storefront/pkg/config"
	"github.com/sweetcrumb/storefront/pkg/localstore"
	"github.com/sweetcrumb/storefront/pkg/logger"
)

// localCartKey names the single cart kept in the state dir.
const localCartKey = "local"

// shop is the state every subcommand shares. It is filled in by the root
// command's pre-run hook and torn down by execute.
type shop struct {
	verbose bool
	out     io.Writer
	errOut  io.Writer

	cfg     *config.ClientConfig
	logg    *logger.Logger
	store   *localstore.Store
	api     *client.Client
	catalog *catalog.Catalog
	unsub   func()
}

func (s *shop) open(ctx context.Context) error {
	cfg, err := config.LoadClient()
	if err != nil {
		return err
	}
	s.cfg = cfg

	level := zerolog.WarnLevel
	if s.verbose {
		level = zerolog.DebugLevel
	}
	s.logg = logger.New(logger.Options{ServiceName: "shop", Level: level, Output: s.errOut})

	store, err := localstore.Open(localstore.Options{Path: cfg.StateDir, SyncWrites: true})
	if err != nil {
		return err
	}
	s.store = store

	api, err := client.New(cfg.APIBaseURL,
		client.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}),
		client.WithSessionStore(store, func(err error) bool {
			return errors.Is(err, localstore.ErrNotFound)
		}),
	)
	if err != nil {
		return err
	}
	s.api = api
	s.unsub = api.OnSessionChange(func(change auth.SessionChange) {
		evCtx := s.logg.WithFields(ctx, map[string]any{
			"event":   string(change.Event),
			"user_id": change.UserID.String(),
		})
		s.logg.Debug(evCtx, "session changed")
	})
	s.catalog = catalog.New(nil)
	return nil
}

func (s *shop) close() error {
	if s.unsub != nil {
		s.unsub()
	}
	if s.store == nil {
		return nil
	}
	return s.store.Close()
}

func (s *shop) cart(ctx context.Context) (*cart.Store, error) {
	return cart.Open(ctx, cart.NewLocalMirror(s.store), localCartKey)
}

func newRootCmd(s *shop) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "shop",
		Short:         "Browse the cookie catalog, fill a cart and check out from the terminal",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return s.open(cmd.Context())
		},
	}
	rootCmd.PersistentFlags().BoolVarP(&s.verbose, "verbose", "v", false, "Log session and request details to stderr")

	rootCmd.AddCommand(
		newSignUpCmd(s),
		newSignInCmd(s),
		newSignOutCmd(s),
		newWhoAmICmd(s),
		newProductsCmd(s),
		newCartCmd(s),
		newCheckoutCmd(s),
		newProfileCmd(s),
		newOrdersCmd(s),
	)
	return rootCmd
}

// execute runs one invocation of the client and always releases the local
// store, even when the command fails.
func execute(args []string, out, errOut io.Writer) (err error) {
	s := &shop{out: out, errOut: errOut}
	defer func() {
		err = multierr.Append(err, s.close())
	}()

	rootCmd := newRootCmd(s)
	rootCmd.SetArgs(args)
	rootCmd.SetOut(out)
	rootCmd.SetErr(errOut)
	return rootCmd.ExecuteContext(context.Background())
}
