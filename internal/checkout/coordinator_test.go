package checkout

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/sweetcrumb/storefront/internal/cart"
	"github.com/sweetcrumb/storefront/internal/catalog"
	"github.com/sweetcrumb/storefront/internal/payments"
	"github.com/sweetcrumb/storefront/internal/profiles"
	"github.com/sweetcrumb/storefront/pkg/db/models"
	pkgerrors "github.com/sweetcrumb/storefront/pkg/errors"
	"github.com/sweetcrumb/storefront/pkg/logger"
)

type stubGateway struct {
	mu          sync.Mutex
	customers   []payments.CustomerDetails
	sessions    []payments.SessionRequest
	customerErr error
	sessionErr  error
}

func (g *stubGateway) CreateCustomer(_ context.Context, details payments.CustomerDetails) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.customerErr != nil {
		return "", g.customerErr
	}
	g.customers = append(g.customers, details)
	return fmt.Sprintf("cus_%d", len(g.customers)), nil
}

func (g *stubGateway) CreateCheckoutSession(_ context.Context, req payments.SessionRequest) (*payments.Session, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.sessionErr != nil {
		return nil, g.sessionErr
	}
	g.sessions = append(g.sessions, req)
	id := fmt.Sprintf("cs_test_%d", len(g.sessions))
	return &payments.Session{ID: id, URL: "https://checkout.stripe.test/" + id}, nil
}

type stubProfiles struct {
	profile *models.Profile
	linkErr error
	ensured int
}

func (s *stubProfiles) Ensure(_ context.Context, userID uuid.UUID, _ string) (*models.Profile, error) {
	s.ensured++
	if s.profile == nil {
		s.profile = &models.Profile{ID: userID}
	}
	return s.profile, nil
}

func (s *stubProfiles) LinkPaymentCustomer(_ context.Context, _ uuid.UUID, ref string) (string, error) {
	if s.linkErr != nil {
		return "", s.linkErr
	}
	s.profile.StripeCustomerID = &ref
	return ref, nil
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

func newTestCoordinator(t *testing.T, store profileStore, gw payments.Gateway) *Coordinator {
	t.Helper()
	c, err := NewCoordinator(Params{
		Profiles:      store,
		Catalog:       catalog.New(nil),
		Gateway:       gw,
		Logger:        testLogger(),
		PublicBaseURL: "http://localhost:3000/",
	})
	require.NoError(t, err)
	return c
}

func setupCheckoutTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	conn, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, conn.Exec(`
CREATE TABLE profiles (
  id TEXT PRIMARY KEY,
  full_name TEXT NOT NULL DEFAULT '',
  phone TEXT NOT NULL DEFAULT '',
  address_line1 TEXT NOT NULL DEFAULT '',
  address_line2 TEXT NOT NULL DEFAULT '',
  city TEXT NOT NULL DEFAULT '',
  state TEXT NOT NULL DEFAULT '',
  postal_code TEXT NOT NULL DEFAULT '',
  stripe_customer_id TEXT,
  updated_at DATETIME
);`).Error)
	return conn
}

func TestFirstCheckoutCreatesProfileCustomerAndSession(t *testing.T) {
	conn := setupCheckoutTestDB(t)
	svc, err := profiles.NewService(profiles.NewRepository(conn))
	require.NoError(t, err)
	gw := &stubGateway{}
	c := newTestCoordinator(t, svc, gw)

	userID := uuid.New()
	url, err := c.InitiateCheckout(context.Background(),
		[]cart.LineItem{{ProductID: "cc-6", Quantity: 2}},
		&CustomerIdentity{UserID: userID, Email: "baker@example.com"})
	require.NoError(t, err)
	assert.Equal(t, "https://checkout.stripe.test/cs_test_1", url)

	require.Len(t, gw.customers, 1)
	assert.Equal(t, "baker@example.com", gw.customers[0].Email)
	assert.Equal(t, "baker@example.com", gw.customers[0].Name)
	assert.Equal(t, userID.String(), gw.customers[0].UserID)

	require.Len(t, gw.sessions, 1)
	sess := gw.sessions[0]
	assert.Equal(t, "cus_1", sess.CustomerRef)
	require.Len(t, sess.Lines, 1)
	assert.Equal(t, "price_cc_6", sess.Lines[0].PriceRef)
	assert.Equal(t, int64(2), sess.Lines[0].Quantity)
	assert.Equal(t, "cc-6", sess.Metadata[MetadataProductIDs])
	assert.Equal(t, userID.String(), sess.Metadata[MetadataUserID])
	assert.Equal(t, "http://localhost:3000/success", sess.SuccessURL)
	assert.Equal(t, "http://localhost:3000/cancel", sess.CancelURL)

	var stored models.Profile
	require.NoError(t, conn.First(&stored, "id = ?", userID).Error)
	require.NotNil(t, stored.StripeCustomerID)
	assert.Equal(t, "cus_1", *stored.StripeCustomerID)
}

func TestSecondCheckoutReusesCustomer(t *testing.T) {
	conn := setupCheckoutTestDB(t)
	svc, err := profiles.NewService(profiles.NewRepository(conn))
	require.NoError(t, err)
	gw := &stubGateway{}
	c := newTestCoordinator(t, svc, gw)

	identity := &CustomerIdentity{UserID: uuid.New(), Email: "a@example.com"}
	items := []cart.LineItem{{ProductID: "hh-12", Quantity: 1}}

	_, err = c.InitiateCheckout(context.Background(), items, identity)
	require.NoError(t, err)
	_, err = c.InitiateCheckout(context.Background(), items, identity)
	require.NoError(t, err)

	assert.Len(t, gw.customers, 1)
	require.Len(t, gw.sessions, 2)
	assert.Equal(t, gw.sessions[0].CustomerRef, gw.sessions[1].CustomerRef)
}

func TestConcurrentCheckoutsStoreOneCustomerRef(t *testing.T) {
	conn := setupCheckoutTestDB(t)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	svc, err := profiles.NewService(profiles.NewRepository(conn))
	require.NoError(t, err)
	gw := &stubGateway{}
	c := newTestCoordinator(t, svc, gw)

	identity := &CustomerIdentity{UserID: uuid.New(), Email: "race@example.com"}
	items := []cart.LineItem{{ProductID: "cc-12", Quantity: 1}}

	// seed the profile so concurrent callers only race on the customer link
	_, err = svc.Ensure(context.Background(), identity.UserID, "")
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make(chan error, 4)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.InitiateCheckout(context.Background(), items, identity)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	refs := map[string]struct{}{}
	for _, s := range gw.sessions {
		refs[s.CustomerRef] = struct{}{}
	}
	assert.Len(t, refs, 1)

	var stored models.Profile
	require.NoError(t, conn.First(&stored, "id = ?", identity.UserID).Error)
	_, ok := refs[*stored.StripeCustomerID]
	assert.True(t, ok)
}

// contextCheckingGateway fails customer creation on a dead context, the way
// the Stripe client does.
type contextCheckingGateway struct {
	stubGateway
	deadline bool
}

func (g *contextCheckingGateway) CreateCustomer(ctx context.Context, details payments.CustomerDetails) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	_, g.deadline = ctx.Deadline()
	return g.stubGateway.CreateCustomer(ctx, details)
}

func TestSharedCustomerCreationOutlivesFirstCaller(t *testing.T) {
	gw := &contextCheckingGateway{}
	c := newTestCoordinator(t, &stubProfiles{}, gw)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ref, err := c.resolveCustomer(ctx, &CustomerIdentity{UserID: uuid.New(), Email: "late@example.com"}, &models.Profile{})
	require.NoError(t, err)
	assert.Equal(t, "cus_1", ref)
	assert.True(t, gw.deadline, "shared creation keeps a timeout")
}

func TestEmptyCartRejected(t *testing.T) {
	gw := &stubGateway{}
	store := &stubProfiles{}
	c := newTestCoordinator(t, store, gw)

	_, err := c.InitiateCheckout(context.Background(), nil, &CustomerIdentity{UserID: uuid.New(), Email: "a@b.c"})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	assert.Equal(t, "Cart is empty", pkgerrors.As(err).Message())
	assert.Empty(t, gw.customers)
	assert.Zero(t, store.ensured)
}

func TestAllUnknownItemsRejectedWithoutCustomer(t *testing.T) {
	gw := &stubGateway{}
	store := &stubProfiles{}
	c := newTestCoordinator(t, store, gw)

	_, err := c.InitiateCheckout(context.Background(),
		[]cart.LineItem{{ProductID: "mystery", Quantity: 1}, {ProductID: "cc-6", Quantity: 0}},
		&CustomerIdentity{UserID: uuid.New(), Email: "a@b.c"})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	assert.Equal(t, "No valid items in cart", pkgerrors.As(err).Message())
	assert.Empty(t, gw.customers)
	assert.Empty(t, gw.sessions)
	assert.Zero(t, store.ensured)
}

func TestUnknownLinesDropped(t *testing.T) {
	gw := &stubGateway{}
	store := &stubProfiles{}
	c := newTestCoordinator(t, store, gw)

	_, err := c.InitiateCheckout(context.Background(), []cart.LineItem{
		{ProductID: "hh-6", Quantity: 3},
		{ProductID: "nope", Quantity: 1},
		{ProductID: "dough-quart", Quantity: 1},
	}, &CustomerIdentity{UserID: uuid.New(), Email: "a@b.c"})
	require.NoError(t, err)

	require.Len(t, gw.sessions, 1)
	assert.Len(t, gw.sessions[0].Lines, 2)
	assert.Equal(t, "hh-6,dough-quart", gw.sessions[0].Metadata[MetadataProductIDs])
}

func TestAnonymousCheckoutRequiresAuth(t *testing.T) {
	gw := &stubGateway{}
	store := &stubProfiles{}
	c := newTestCoordinator(t, store, gw)

	_, err := c.InitiateCheckout(context.Background(), []cart.LineItem{{ProductID: "cc-6", Quantity: 1}}, nil)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized))
	assert.Zero(t, store.ensured)
	assert.Nil(t, store.profile)
	assert.Empty(t, gw.sessions)
}

func TestMissingGatewayIsConfigurationError(t *testing.T) {
	store := &stubProfiles{}
	c := newTestCoordinator(t, store, nil)

	_, err := c.InitiateCheckout(context.Background(), []cart.LineItem{{ProductID: "cc-6", Quantity: 1}},
		&CustomerIdentity{UserID: uuid.New(), Email: "a@b.c"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConfiguration))
	assert.Zero(t, store.ensured)
}

func TestCustomerLinkFailureAbortsCheckout(t *testing.T) {
	gw := &stubGateway{}
	store := &stubProfiles{linkErr: pkgerrors.Wrap(pkgerrors.CodePersistence, errors.New("db down"), "persist payment customer")}
	c := newTestCoordinator(t, store, gw)

	_, err := c.InitiateCheckout(context.Background(), []cart.LineItem{{ProductID: "cc-6", Quantity: 1}},
		&CustomerIdentity{UserID: uuid.New(), Email: "a@b.c"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodePersistence))
	assert.Len(t, gw.customers, 1)
	assert.Empty(t, gw.sessions)
}

func TestUpstreamFailureSurfaces(t *testing.T) {
	gw := &stubGateway{sessionErr: pkgerrors.Wrap(pkgerrors.CodeUpstream, errors.New("timeout"), "create stripe checkout session")}
	store := &stubProfiles{}
	c := newTestCoordinator(t, store, gw)

	_, err := c.InitiateCheckout(context.Background(), []cart.LineItem{{ProductID: "cc-6", Quantity: 1}},
		&CustomerIdentity{UserID: uuid.New(), Email: "a@b.c"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUpstream))
	// the customer link survives for the retry
	require.NotNil(t, store.profile.StripeCustomerID)
	assert.Equal(t, "cus_1", *store.profile.StripeCustomerID)
}

func TestCustomerNamePrefersProfile(t *testing.T) {
	details := customerDetails(
		&CustomerIdentity{UserID: uuid.New(), Email: "a@b.c"},
		&models.Profile{FullName: "  Ada Baker ", City: "Austin"},
	)
	assert.Equal(t, "Ada Baker", details.Name)
	assert.Equal(t, "Austin", details.Address.City)
}

func TestNewCoordinatorRequiresCollaborators(t *testing.T) {
	_, err := NewCoordinator(Params{})
	require.Error(t, err)

	_, err = NewCoordinator(Params{Profiles: &stubProfiles{}, Catalog: catalog.New(nil), Logger: testLogger()})
	require.Error(t, err)
}
