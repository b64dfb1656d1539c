package client

import (
	"context"
	"encoding/json"

	"github.com/sweetcrumb/storefront/internal/auth"
	"github.com/sweetcrumb/storefront/pkg/enums"
	pkgerrors "github.com/sweetcrumb/storefront/pkg/errors"
)

// AuthProvider is the shopper-side identity surface.
type AuthProvider interface {
	SignIn(ctx context.Context, email, password string) (*auth.Session, error)
	SignUp(ctx context.Context, email, password, fullName string) (*auth.Session, error)
	SignOut(ctx context.Context) error
	CurrentSession(ctx context.Context) (*auth.Identity, error)
	OnSessionChange(fn func(auth.SessionChange)) func()
}

var _ AuthProvider = (*Client)(nil)

func (c *Client) SignIn(ctx context.Context, email, password string) (*auth.Session, error) {
	var sess auth.Session
	err := c.do(ctx, request{
		method: "POST",
		path:   "/auth/signin",
		body:   auth.SignInRequest{Email: email, Password: password},
	}, &sess)
	if err != nil {
		return nil, err
	}
	if err := c.storeSession(&sess); err != nil {
		return nil, err
	}
	c.publish(enums.SessionEventSignedIn, &sess)
	return &sess, nil
}

func (c *Client) SignUp(ctx context.Context, email, password, fullName string) (*auth.Session, error) {
	var sess auth.Session
	err := c.do(ctx, request{
		method: "POST",
		path:   "/auth/signup",
		body:   auth.SignUpRequest{Email: email, Password: password, FullName: fullName},
	}, &sess)
	if err != nil {
		return nil, err
	}
	if err := c.storeSession(&sess); err != nil {
		return nil, err
	}
	c.publish(enums.SessionEventSignedIn, &sess)
	return &sess, nil
}

// SignOut revokes the server session and forgets the local one. A session
// the server already considers gone still signs out locally.
func (c *Client) SignOut(ctx context.Context) error {
	sess, err := c.loadSession()
	if err != nil {
		return err
	}
	if sess == nil {
		return nil
	}

	remoteErr := c.do(ctx, request{method: "POST", path: "/auth/signout", bearer: sess.AccessToken}, nil)
	if remoteErr != nil && !pkgerrors.IsCode(remoteErr, pkgerrors.CodeUnauthorized) {
		return remoteErr
	}
	if err := c.storeSession(nil); err != nil {
		return err
	}
	c.publish(enums.SessionEventSignedOut, sess)
	return nil
}

// CurrentSession returns the signed-in identity, or nil when nobody is
// signed in. An expired access token is refreshed once; a refresh that
// fails signs the shopper out.
func (c *Client) CurrentSession(ctx context.Context) (*auth.Identity, error) {
	sess, err := c.loadSession()
	if err != nil || sess == nil {
		return nil, err
	}
	var out struct {
		Session *auth.Identity `json:"session"`
	}
	err = c.authed(ctx, func(token string) error {
		return c.do(ctx, request{method: "GET", path: "/auth/session", bearer: token}, &out)
	})
	if pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return out.Session, nil
}

// OnSessionChange registers fn for sign-in, sign-out and refresh events.
// The returned function removes the subscription and is safe to call twice.
func (c *Client) OnSessionChange(fn func(auth.SessionChange)) func() {
	c.subsMu.Lock()
	id := c.nextID
	c.nextID++
	c.subs[id] = fn
	c.subsMu.Unlock()

	return func() {
		c.subsMu.Lock()
		delete(c.subs, id)
		c.subsMu.Unlock()
	}
}

// authed runs call with the current access token and retries it once after
// a refresh when the server answers 401.
func (c *Client) authed(ctx context.Context, call func(token string) error) error {
	sess, err := c.loadSession()
	if err != nil {
		return err
	}
	if sess == nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "Authentication required")
	}

	err = call(sess.AccessToken)
	if !pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized) {
		return err
	}

	refreshed, refreshErr := c.refresh(ctx, sess)
	if refreshErr != nil {
		if pkgerrors.IsCode(refreshErr, pkgerrors.CodeUnauthorized) {
			if clearErr := c.storeSession(nil); clearErr != nil {
				return clearErr
			}
			c.publish(enums.SessionEventSignedOut, sess)
			return err
		}
		return refreshErr
	}
	return call(refreshed.AccessToken)
}

func (c *Client) refresh(ctx context.Context, sess *auth.Session) (*auth.Session, error) {
	var next auth.Session
	err := c.do(ctx, request{
		method: "POST",
		path:   "/auth/refresh",
		body:   auth.RefreshRequest{RefreshToken: sess.RefreshToken},
		bearer: sess.AccessToken,
	}, &next)
	if err != nil {
		return nil, err
	}
	if err := c.storeSession(&next); err != nil {
		return nil, err
	}
	c.publish(enums.SessionEventRefreshed, &next)
	return &next, nil
}

func (c *Client) loadSession() (*auth.Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.loaded || c.store == nil {
		return c.session, nil
	}
	raw, err := c.store.Get(sessionKey)
	if err != nil {
		if c.isNotFound != nil && c.isNotFound(err) {
			c.loaded = true
			return nil, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load saved session")
	}
	var sess auth.Session
	if err := json.Unmarshal(raw, &sess); err != nil || sess.AccessToken == "" {
		c.loaded = true
		return nil, nil
	}
	c.session = &sess
	c.loaded = true
	return c.session, nil
}

func (c *Client) storeSession(sess *auth.Session) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.session = sess
	c.loaded = true
	if c.store == nil {
		return nil
	}
	if sess == nil {
		if err := c.store.Delete(sessionKey); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "forget session")
		}
		return nil
	}
	raw, err := json.Marshal(sess)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode session")
	}
	if err := c.store.Put(sessionKey, raw); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "save session")
	}
	return nil
}

func (c *Client) publish(event enums.SessionEvent, sess *auth.Session) {
	change := auth.SessionChange{Event: event}
	if sess != nil && sess.User != nil {
		change.UserID = sess.User.ID
	}

	c.subsMu.RLock()
	fns := make([]func(auth.SessionChange), 0, len(c.subs))
	for _, fn := range c.subs {
		fns = append(fns, fn)
	}
	c.subsMu.RUnlock()

	for _, fn := range fns {
		fn(change)
	}
}
