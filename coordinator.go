package gigauth

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/MrEthical07/gigauth/internal/audit"
	"github.com/MrEthical07/gigauth/internal/flows"
	"github.com/MrEthical07/gigauth/jwt"
	"github.com/MrEthical07/gigauth/session"
	"golang.org/x/sync/singleflight"
)

// Coordinator owns the session and its state machine. It is safe for
// concurrent use; every state read and write happens under one mutex, and the
// store is written before the in-memory session changes.
//
// Observers registered with [Coordinator.Subscribe] and the [Navigator] are
// called after the lock is released, on the goroutine that made the change.
type Coordinator struct {
	cfg     Config
	store   *session.Store
	client  *Client
	nav     Navigator
	deps    flows.Deps
	log     *audit.Dispatcher
	debug   bool
	metrics *Metrics

	mu      sync.Mutex
	state   State
	sess    *session.Session
	epoch   uint64
	pending int
	// renewed records the last refresh of the current session: from was
	// replaced by to. It is reset whenever the session changes any other way.
	renewed struct{ from, to string }
	closed  bool

	flight singleflight.Group

	subMu   sync.Mutex
	subs    map[uint64]func(StateChange)
	nextSub uint64

	watchCancel context.CancelFunc
	watchDone   chan struct{}
	closeOnce   sync.Once
}

// RegisterInput is the registration form.
type RegisterInput struct {
	Name            string
	Email           string
	Password        string
	ConfirmPassword string
	// Role is the marketplace role requested, such as session.RoleFreelancer.
	Role string
	// Extra fields are sent verbatim alongside the standard ones.
	Extra map[string]any
}

// effects are what a committed change asks for once the lock is released.
type effects struct {
	changes  []StateChange
	redirect Reason
}

func newCoordinator(cfg Config, store *session.Store, client *Client, nav Navigator, metrics *Metrics, dispatcher *audit.Dispatcher) *Coordinator {
	if nav == nil {
		nav = noopNavigator{}
	}
	c := &Coordinator{
		cfg:     cfg,
		store:   store,
		client:  client,
		nav:     nav,
		log:     dispatcher,
		debug:   cfg.Log.Debug,
		metrics: metrics,
		subs:    make(map[uint64]func(StateChange)),
	}

	login := flows.LoginDeps{
		Path:            cfg.Endpoints.Login,
		IdentifierField: cfg.Endpoints.IdentifierField,
		Exchange:        c.exchange,
	}
	register := flows.RegisterDeps{
		Path:            cfg.Endpoints.Register,
		IdentifierField: cfg.Endpoints.IdentifierField,
		Policy:          passwordPolicy(cfg.Password),
		Exchange:        c.exchange,
	}
	if cfg.Session.LoginAfterRegister {
		register.LoginAfter = &login
	}
	c.deps = flows.Deps{
		Login:    login,
		Register: register,
		Refresh: flows.RefreshDeps{
			Path:      cfg.Endpoints.Refresh,
			BodyField: cfg.Endpoints.RefreshField,
			Exchange:  c.exchange,
		},
		Logout: flows.LogoutDeps{
			Path:     cfg.Endpoints.Logout,
			Exchange: c.exchange,
		},
		Verify: flows.VerifyDeps{
			Path:     cfg.Endpoints.Verify,
			Exchange: c.exchange,
		},
	}
	return c
}

/*
====================================
READS
====================================
*/

// CurrentCredential returns the live access credential, or "" when anonymous.
// It reflects the last persisted value.
func (c *Coordinator) CurrentCredential() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sess == nil {
		return ""
	}
	return c.sess.AccessToken
}

// State returns the current state. A login or registration in flight without
// an existing session reports StateAuthenticating.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateAnonymous && c.pending > 0 {
		return StateAuthenticating
	}
	return c.state
}

// IsAuthenticated reports whether a session with an access credential exists.
// It is true while a refresh is in flight.
func (c *Coordinator) IsAuthenticated() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sess.Live()
}

// CurrentIdentity returns the cached identity, or the zero value when anonymous.
func (c *Coordinator) CurrentIdentity() session.Identity {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sess == nil {
		return session.Identity{}
	}
	return c.sess.Identity
}

// Session returns a copy of the current session, or nil when anonymous.
func (c *Coordinator) Session() *session.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sess.Clone()
}

// Subscribe registers fn to receive every committed state change. The returned
// function unregisters it and is safe to call more than once.
func (c *Coordinator) Subscribe(fn func(StateChange)) (cancel func()) {
	if fn == nil {
		return func() {}
	}
	c.subMu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	c.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.subMu.Lock()
			delete(c.subs, id)
			c.subMu.Unlock()
		})
	}
}

/*
====================================
CREDENTIAL OPERATIONS
====================================
*/

// Login describes the login operation and its observable behavior.
//
// Login exchanges identifier and secret for a session. On success the session
// is persisted, then adopted, and a copy is returned. A 401 returns
// [ErrCredentialRejected]; any other failure returns [ErrAuthFailed]. A failed
// login changes nothing: an existing session stays in place.
func (c *Coordinator) Login(ctx context.Context, identifier, secret string) (*session.Session, error) {
	if err := c.beginAuth(); err != nil {
		return nil, authErr("login", err, nil, nil)
	}
	res := flows.RunLogin(ctx, identifier, secret, c.deps.Login)
	c.endAuth()

	switch res.Failure {
	case flows.LoginFailureNone:
	case flows.LoginFailureRejected:
		c.metrics.Inc(MetricLoginRejected)
		return nil, authErr("login", ErrCredentialRejected, outcomeOf(res.Reply), nil)
	case flows.LoginFailureMalformed:
		c.metrics.Inc(MetricLoginFailure)
		return nil, authErr("login", ErrAuthFailed, outcomeOf(res.Reply), errors.Join(ErrMalformedAuthResponse, res.Err))
	default:
		c.metrics.Inc(MetricLoginFailure)
		return nil, authErr("login", ErrAuthFailed, outcomeOf(res.Reply), res.Err)
	}

	sess, err := c.establish(ctx, "login", res.Credentials, ReasonLogin)
	if err != nil {
		return nil, err
	}
	c.metrics.Inc(MetricLoginSuccess)
	return sess, nil
}

// Register describes the register operation and its observable behavior.
//
// Register checks the form locally first; a failing form returns
// [ErrValidationFailed] with per-field messages and sends nothing. Otherwise it
// creates the account and adopts the issued session like [Coordinator.Login].
// Backend refusals return [ErrRegistrationFailed].
func (c *Coordinator) Register(ctx context.Context, in RegisterInput) (*session.Session, error) {
	if err := c.beginAuth(); err != nil {
		return nil, authErr("register", err, nil, nil)
	}
	res := flows.RunRegister(ctx, flows.RegisterForm{
		Name:            in.Name,
		Email:           in.Email,
		Password:        in.Password,
		ConfirmPassword: in.ConfirmPassword,
		Role:            in.Role,
		Extra:           in.Extra,
	}, c.deps.Register)
	c.endAuth()

	switch res.Failure {
	case flows.RegisterFailureNone:
	case flows.RegisterFailureInvalid:
		c.metrics.Inc(MetricRegisterInvalid)
		return nil, &AuthError{Op: "register", Kind: ErrValidationFailed, Fields: res.Fields}
	case flows.RegisterFailureMalformed:
		c.metrics.Inc(MetricRegisterFailure)
		return nil, authErr("register", ErrRegistrationFailed, outcomeOf(res.Reply), errors.Join(ErrMalformedAuthResponse, res.Err))
	default:
		c.metrics.Inc(MetricRegisterFailure)
		return nil, authErr("register", ErrRegistrationFailed, outcomeOf(res.Reply), res.Err)
	}

	sess, err := c.establish(ctx, "register", res.Credentials, ReasonRegister)
	if err != nil {
		return nil, err
	}
	c.metrics.Inc(MetricRegisterSuccess)
	return sess, nil
}

// Logout describes the logout operation and its observable behavior.
//
// Logout notifies the backend on a best-effort basis, then evicts the session
// from the store and from memory whatever the backend said. The coordinator is
// anonymous when Logout returns, even on error; the only error is
// [ErrStoreUnavailable].
func (c *Coordinator) Logout(ctx context.Context) error {
	c.mu.Lock()
	var access, refresh string
	if c.sess != nil {
		access, refresh = c.sess.AccessToken, c.sess.RefreshToken
	}
	c.mu.Unlock()

	if access != "" {
		_ = flows.RunLogout(ctx, access, refresh, c.deps.Logout)
	}

	c.mu.Lock()
	change, changed, err := c.evictLocked(ctx, ReasonLogout)
	c.mu.Unlock()

	c.metrics.Inc(MetricLogout)
	fx := effects{redirect: ReasonLogout}
	if changed {
		fx.changes = append(fx.changes, change)
	}
	c.apply(ctx, fx)

	if err != nil {
		return authErr("logout", ErrStoreUnavailable, nil, err)
	}
	return nil
}

// HandleAuthExpired describes the handleauthexpired operation and its observable behavior.
//
// HandleAuthExpired is called by the [Client] when a request sent with
// failedCredential got a 401. If the credential is stale, because a refresh
// or a new login already replaced it, it returns nil at once. Otherwise it runs
// or joins the single refresh for that credential and returns when it settles:
// nil on success, [ErrRefreshFailed] or [ErrSessionExpired] when the session
// ended. The shared refresh is not cancelled by ctx; ctx only bounds this
// caller's wait.
func (c *Coordinator) HandleAuthExpired(ctx context.Context, failedCredential string) error {
	_, err := c.renewCredential(ctx, failedCredential)
	return err
}

// renewCredential is HandleAuthExpired that also reports the credential a
// refresh of failedCredential produced. It is "" when the credential was not
// replaced by refreshing it, for example after a login as another user, so a
// request built for failedCredential is never resent under someone else's.
func (c *Coordinator) renewCredential(ctx context.Context, failedCredential string) (string, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	c.mu.Lock()
	switch {
	case c.sess == nil:
		c.mu.Unlock()
		return "", authErr("refresh", ErrSessionExpired, nil, nil)
	case c.sess.AccessToken != failedCredential:
		next := c.successorLocked(failedCredential)
		c.mu.Unlock()
		return next, nil
	}
	if c.state == StateRefreshing {
		c.metrics.Inc(MetricRefreshJoined)
	}
	c.mu.Unlock()

	ch := c.flight.DoChan(failedCredential, func() (any, error) {
		return c.refresh(ctx, failedCredential)
	})
	select {
	case res := <-ch:
		next, _ := res.Val.(string)
		return next, res.Err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// rejectReplayed ends the session when a credential fresh from a refresh is
// refused as well. Refreshing again would only repeat the exchange, so the
// session is treated as expired.
func (c *Coordinator) rejectReplayed(ctx context.Context, credential string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	c.mu.Lock()
	switch {
	case c.sess == nil:
		c.mu.Unlock()
		return authErr("refresh", ErrSessionExpired, nil, nil)
	case c.sess.AccessToken != credential:
		c.mu.Unlock()
		return nil
	}
	change, _, err := c.evictLocked(ctx, ReasonExpired)
	c.mu.Unlock()

	c.metrics.Inc(MetricSessionExpired)
	c.apply(ctx, effects{changes: []StateChange{change}, redirect: ReasonExpired})
	return authErr("refresh", ErrSessionExpired, nil, storeFailure(err))
}

// successorLocked returns the live credential if the last refresh replaced
// failed with it, and "" otherwise.
func (c *Coordinator) successorLocked(failed string) string {
	if c.sess == nil || c.renewed.from != failed || c.sess.AccessToken != c.renewed.to {
		return ""
	}
	return c.renewed.to
}

func (c *Coordinator) refresh(ctx context.Context, failed string) (string, error) {
	ctx = context.WithoutCancel(ctx)

	c.mu.Lock()
	if c.sess == nil {
		c.mu.Unlock()
		return "", authErr("refresh", ErrSessionExpired, nil, nil)
	}
	if c.sess.AccessToken != failed {
		next := c.successorLocked(failed)
		c.mu.Unlock()
		return next, nil
	}
	if !c.sess.CanRefresh() {
		change, _, err := c.evictLocked(ctx, ReasonExpired)
		c.mu.Unlock()

		c.metrics.Inc(MetricSessionExpired)
		c.apply(ctx, effects{changes: []StateChange{change}, redirect: ReasonExpired})
		return "", authErr("refresh", ErrSessionExpired, nil, storeFailure(err))
	}

	refreshToken := c.sess.RefreshToken
	epoch := c.epoch
	started := c.transitionLocked(StateRefreshing, ReasonRefreshStarted)
	c.mu.Unlock()
	c.apply(ctx, effects{changes: []StateChange{started}})

	rctx, cancel := context.WithTimeout(ctx, c.cfg.refreshTimeout())
	start := time.Now()
	res := flows.RunRefresh(rctx, refreshToken, c.deps.Refresh)
	cancel()
	c.metrics.Observe(MetricRefreshLatency, time.Since(start))

	c.mu.Lock()
	if c.epoch != epoch {
		// Replaced or ended while the refresh was in flight; its result is stale.
		live := c.sess.Live()
		c.mu.Unlock()
		if live {
			return "", nil
		}
		return "", authErr("refresh", ErrSessionExpired, nil, nil)
	}

	if res.Failure != flows.RefreshFailureNone {
		change, _, err := c.evictLocked(ctx, ReasonRefreshFailed)
		c.mu.Unlock()

		c.metrics.Inc(MetricRefreshFailure)
		c.apply(ctx, effects{changes: []StateChange{change}, redirect: ReasonRefreshFailed})

		cause := res.Err
		if res.Failure == flows.RefreshFailureMalformed {
			cause = errors.Join(ErrMalformedAuthResponse, res.Err)
		}
		return "", authErr("refresh", ErrRefreshFailed, outcomeOf(res.Reply), errors.Join(cause, storeFailure(err)))
	}

	next := c.sess.Clone()
	next.AccessToken = res.Credentials.AccessToken
	if res.Credentials.RefreshToken != "" {
		next.RefreshToken = res.Credentials.RefreshToken
	}
	if !res.Credentials.Identity.IsZero() {
		next.Identity = res.Credentials.Identity
	}
	next.ExpiresAt = res.Credentials.ExpiresAt

	change, err := c.commitLocked(ctx, next, StateAuthenticated, ReasonRefreshed)
	if err != nil {
		// The new credential could not be persisted. Memory must not run ahead
		// of the store, and the old credential is dead, so the session ends.
		evicted, _, _ := c.evictLocked(ctx, ReasonStoreFailure)
		c.mu.Unlock()

		c.metrics.Inc(MetricStoreFailure)
		c.apply(ctx, effects{changes: []StateChange{evicted}, redirect: ReasonStoreFailure})
		return "", authErr("refresh", ErrStoreUnavailable, nil, err)
	}
	c.renewed.from, c.renewed.to = failed, next.AccessToken
	c.mu.Unlock()

	c.metrics.Inc(MetricRefreshSuccess)
	c.apply(ctx, effects{changes: []StateChange{change}})
	return next.AccessToken, nil
}

// Verify describes the verify operation and its observable behavior.
//
// Verify asks the backend whether the current credential is still good. The
// call goes through the regular transport path, so an expired credential is
// refreshed first. When the backend reports the user, the cached identity is
// updated. Verify returns the identity in effect afterwards.
func (c *Coordinator) Verify(ctx context.Context) (session.Identity, error) {
	if !c.IsAuthenticated() {
		return session.Identity{}, authErr("verify", ErrSessionExpired, nil, nil)
	}

	res := flows.RunVerify(ctx, c.deps.Verify)
	switch res.Failure {
	case flows.VerifyFailureNone:
	case flows.VerifyFailureExpired:
		kind := ErrSessionExpired
		if errors.Is(res.Err, ErrRefreshFailed) {
			kind = ErrRefreshFailed
		}
		return session.Identity{}, authErr("verify", kind, outcomeOf(res.Reply), res.Err)
	default:
		return session.Identity{}, authErr("verify", ErrAuthFailed, outcomeOf(res.Reply), res.Err)
	}

	if !res.Identity.IsZero() {
		if err := c.UpdateIdentity(ctx, res.Identity); err != nil {
			return session.Identity{}, err
		}
	}
	return c.CurrentIdentity(), nil
}

// UpdateIdentity replaces the cached identity, for example after a profile
// edit. The new snapshot is persisted before it is visible.
func (c *Coordinator) UpdateIdentity(ctx context.Context, id session.Identity) error {
	c.mu.Lock()
	if !c.sess.Live() {
		c.mu.Unlock()
		return authErr("update_identity", ErrSessionExpired, nil, nil)
	}
	if c.sess.Identity == id {
		c.mu.Unlock()
		return nil
	}
	next := c.sess.Clone()
	next.Identity = id
	change, err := c.commitLocked(ctx, next, c.state, ReasonIdentityUpdated)
	c.mu.Unlock()

	if err != nil {
		c.metrics.Inc(MetricStoreFailure)
		return authErr("update_identity", ErrStoreUnavailable, nil, err)
	}
	c.apply(ctx, effects{changes: []StateChange{change}})
	return nil
}

/*
====================================
STORE SYNCHRONISATION
====================================
*/

// Restore describes the restore operation and its observable behavior.
//
// Restore rebuilds the session from the store alone. [Builder.Build] calls it
// once. A corrupt record is evicted and leaves the coordinator anonymous; an
// unreadable store returns [ErrStoreUnavailable].
func (c *Coordinator) Restore(ctx context.Context) error {
	return c.sync(ctx, "restore", ReasonRestore, false)
}

// Sync adopts changes another process made to the store: a login there makes
// this coordinator authenticated, a logout there makes it anonymous. It runs
// automatically when the store can be watched and Session.WatchExternal is on.
func (c *Coordinator) Sync(ctx context.Context) error {
	return c.sync(ctx, "sync", ReasonExternal, true)
}

func (c *Coordinator) sync(ctx context.Context, op string, reason Reason, redirect bool) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return authErr(op, ErrClosed, nil, nil)
	}

	stored, err := c.store.Load(ctx)
	if errors.Is(err, session.ErrCorrupt) {
		log.Printf("gigauth: persisted session corrupt, evicting: %v", err)
		change, changed, clearErr := c.evictLocked(ctx, ReasonCorrupt)
		c.mu.Unlock()

		fx := effects{}
		if changed {
			fx.changes = append(fx.changes, change)
			if redirect {
				fx.redirect = ReasonCorrupt
			}
		}
		c.apply(ctx, fx)
		if clearErr != nil {
			return authErr(op, ErrStoreUnavailable, nil, clearErr)
		}
		return nil
	}
	if err != nil {
		c.mu.Unlock()
		c.metrics.Inc(MetricStoreFailure)
		return authErr(op, ErrStoreUnavailable, nil, err)
	}

	if stored == nil {
		if c.sess == nil {
			c.mu.Unlock()
			return nil
		}
		// Already gone from the store; only memory follows.
		change := c.setLocked(nil, StateAnonymous, reason)
		c.mu.Unlock()

		c.metrics.Inc(MetricExternalChange)
		fx := effects{changes: []StateChange{change}}
		if redirect {
			fx.redirect = reason
		}
		c.apply(ctx, fx)
		return nil
	}

	if c.sess != nil &&
		c.sess.AccessToken == stored.AccessToken &&
		c.sess.RefreshToken == stored.RefreshToken &&
		c.sess.Identity == stored.Identity {
		c.mu.Unlock()
		return nil
	}

	enrichFromClaims(stored)
	to := StateAuthenticated
	if c.state == StateRefreshing && c.sess != nil && c.sess.AccessToken == stored.AccessToken {
		to = StateRefreshing
	}
	change := c.setLocked(stored, to, reason)
	c.mu.Unlock()

	if reason == ReasonExternal {
		c.metrics.Inc(MetricExternalChange)
	}
	c.apply(ctx, effects{changes: []StateChange{change}})
	return nil
}

func (c *Coordinator) startWatch() {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	c.watchCancel = cancel
	c.watchDone = done

	go func() {
		defer close(done)
		watching, err := c.store.Watch(ctx, func() {
			if err := c.Sync(ctx); err != nil && !errors.Is(err, ErrClosed) {
				log.Printf("gigauth: sync after external change failed: %v", err)
			}
		})
		if watching && err != nil {
			log.Printf("gigauth: store watch stopped: %v", err)
		}
	}()
}

// Close stops watching the store and flushes pending log records. The session
// itself is left in place.
func (c *Coordinator) Close() error {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()

		if c.watchCancel != nil {
			c.watchCancel()
			<-c.watchDone
		}
		c.log.Close()
	})
	return nil
}

/*
====================================
INTERNALS
====================================
*/

func (c *Coordinator) beginAuth() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	c.pending++
	return nil
}

func (c *Coordinator) endAuth() {
	c.mu.Lock()
	c.pending--
	c.mu.Unlock()
}

func (c *Coordinator) establish(ctx context.Context, op string, creds flows.Credentials, reason Reason) (*session.Session, error) {
	next := &session.Session{
		AccessToken:  creds.AccessToken,
		RefreshToken: creds.RefreshToken,
		Identity:     creds.Identity,
		ExpiresAt:    creds.ExpiresAt,
	}

	c.mu.Lock()
	change, err := c.commitLocked(ctx, next, StateAuthenticated, reason)
	c.mu.Unlock()

	if err != nil {
		c.metrics.Inc(MetricStoreFailure)
		return nil, authErr(op, ErrStoreUnavailable, nil, err)
	}
	c.apply(ctx, effects{changes: []StateChange{change}})
	return next.Clone(), nil
}

// commitLocked persists next and then adopts it. On error nothing changes.
func (c *Coordinator) commitLocked(ctx context.Context, next *session.Session, to State, reason Reason) (StateChange, error) {
	if err := c.store.Save(context.WithoutCancel(ctx), next); err != nil {
		return StateChange{}, err
	}
	return c.setLocked(next.Clone(), to, reason), nil
}

// evictLocked clears the store, then memory. Memory is cleared even when the
// store fails, so the caller is always anonymous afterwards.
func (c *Coordinator) evictLocked(ctx context.Context, reason Reason) (StateChange, bool, error) {
	err := c.store.Clear(context.WithoutCancel(ctx))
	if err != nil {
		c.metrics.Inc(MetricStoreFailure)
	}
	changed := c.sess != nil || c.state != StateAnonymous
	change := c.setLocked(nil, StateAnonymous, reason)
	return change, changed, err
}

func (c *Coordinator) setLocked(next *session.Session, to State, reason Reason) StateChange {
	from := c.state
	if from != to && !canTransition(from, to) {
		log.Printf("gigauth: unexpected transition %s -> %s (%s)", from, to, reason)
	}
	if c.sess == nil || next == nil || c.sess.AccessToken != next.AccessToken {
		c.epoch++
		c.renewed.from, c.renewed.to = "", ""
	}
	c.sess = next
	c.state = to

	change := StateChange{From: from, To: to, Reason: reason, At: time.Now()}
	if next != nil {
		change.Identity = next.Identity
	}
	return change
}

// transitionLocked changes state without touching the session or the store.
func (c *Coordinator) transitionLocked(to State, reason Reason) StateChange {
	from := c.state
	c.state = to
	change := StateChange{From: from, To: to, Reason: reason, At: time.Now()}
	if c.sess != nil {
		change.Identity = c.sess.Identity
	}
	return change
}

func (c *Coordinator) apply(ctx context.Context, fx effects) {
	for _, change := range fx.changes {
		c.publish(ctx, change)
	}
	if fx.redirect != "" {
		c.nav.RedirectToLogin(ctx, fx.redirect)
	}
}

func (c *Coordinator) publish(ctx context.Context, change StateChange) {
	if c.debug {
		c.log.Emit(ctx, audit.Event{
			Kind:   audit.KindTransition,
			From:   change.From.String(),
			To:     change.To.String(),
			Reason: string(change.Reason),
			UserID: change.Identity.ID,
		})
	}

	c.subMu.Lock()
	subs := make([]func(StateChange), 0, len(c.subs))
	for _, fn := range c.subs {
		subs = append(subs, fn)
	}
	c.subMu.Unlock()

	for _, fn := range subs {
		fn(change)
	}
}

func (c *Coordinator) exchange(ctx context.Context, call flows.Call) flows.Reply {
	req := Request{Method: call.Method, Path: call.Path, Body: call.Body}
	if call.Exchange {
		req.exchange = true
		req.bearer = call.Bearer
	}
	return replyFrom(c.client.Send(ctx, req))
}

func replyFrom(o Outcome) flows.Reply {
	r := flows.Reply{Status: statusOf(o), Source: o}
	switch v := o.(type) {
	case Success:
		r.Class = flows.ClassSuccess
		r.Body = v.Payload
	case ClientError:
		r.Class = flows.ClassRejected
		r.Body = v.Body
		r.Err = v.Cause
	case AuthExpired:
		r.Class = flows.ClassExpired
		r.Err = v.Refresh
	case NetworkUnavailable:
		r.Class = flows.ClassNetwork
		r.Err = v.Cause
	case ServerFault:
		r.Class = flows.ClassServer
		r.Body = v.Body
	}
	return r
}

func outcomeOf(r flows.Reply) Outcome {
	o, _ := r.Source.(Outcome)
	return o
}

// enrichFromClaims fills expiry and, when missing, identity from the access
// token's claims. Opaque tokens are left as they are.
func enrichFromClaims(s *session.Session) {
	claims, err := jwt.Inspect(s.AccessToken)
	if err != nil {
		return
	}
	if s.ExpiresAt.IsZero() {
		s.ExpiresAt = claims.Expiry()
	}
	if s.Identity.IsZero() {
		s.Identity = session.Identity{
			ID:    claims.UID,
			Email: claims.Email,
			Role:  claims.Role,
			Name:  claims.Name,
		}
	}
}

func storeFailure(err error) error {
	if err == nil {
		return nil
	}
	return errors.Join(ErrStoreUnavailable, err)
}
