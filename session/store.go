package session

import (
	"context"
	"errors"
	"strings"
)

const (
	keyAccess  = "access_token"
	keyRefresh = "refresh_token"
	keyUser    = "user"
)

// DefaultPrefix namespaces session keys when no prefix is configured.
const DefaultPrefix = "gigauth:"

// Store maps a [Session] onto three keys of a [KV].
type Store struct {
	kv     KV
	prefix string
}

// NewStore creates a Store over kv. An empty prefix selects [DefaultPrefix].
func NewStore(kv KV, prefix string) *Store {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Store{kv: kv, prefix: prefix}
}

// KV returns the backend the store writes through to.
func (s *Store) KV() KV {
	return s.kv
}

// Keys returns the fully prefixed access, refresh and identity keys.
func (s *Store) Keys() (access, refresh, user string) {
	return s.prefix + keyAccess, s.prefix + keyRefresh, s.prefix + keyUser
}

// Load reads the persisted session. It returns (nil, nil) when nothing is stored
// and [ErrCorrupt] when the stored keys do not form a usable session.
func (s *Store) Load(ctx context.Context) (*Session, error) {
	accessKey, refreshKey, userKey := s.Keys()

	access, _, err := s.kv.Get(ctx, accessKey)
	if err != nil {
		return nil, wrapUnavailable(err)
	}
	refresh, _, err := s.kv.Get(ctx, refreshKey)
	if err != nil {
		return nil, wrapUnavailable(err)
	}
	user, _, err := s.kv.Get(ctx, userKey)
	if err != nil {
		return nil, wrapUnavailable(err)
	}

	access = strings.TrimSpace(access)
	if access == "" {
		if refresh == "" && user == "" {
			return nil, nil
		}
		return nil, errors.Join(ErrCorrupt, errors.New("credential missing"))
	}

	identity, err := DecodeIdentity(user)
	if err != nil {
		return nil, err
	}

	return &Session{
		AccessToken:  access,
		RefreshToken: strings.TrimSpace(refresh),
		Identity:     identity,
	}, nil
}

// Save writes every field of sess as one batch. An empty refresh credential or
// zero identity removes the corresponding key.
func (s *Store) Save(ctx context.Context, sess *Session) error {
	if !sess.Live() {
		return errors.New("session: refusing to save a session without access credential")
	}
	accessKey, refreshKey, userKey := s.Keys()

	user := ""
	if !sess.Identity.IsZero() {
		encoded, err := EncodeIdentity(sess.Identity)
		if err != nil {
			return err
		}
		user = encoded
	}

	err := s.kv.Put(ctx, map[string]string{
		accessKey:  sess.AccessToken,
		refreshKey: sess.RefreshToken,
		userKey:    user,
	})
	if err != nil {
		return wrapUnavailable(err)
	}
	return nil
}

// Clear evicts every session key.
func (s *Store) Clear(ctx context.Context) error {
	accessKey, refreshKey, userKey := s.Keys()
	if err := s.kv.Delete(ctx, accessKey, refreshKey, userKey); err != nil {
		return wrapUnavailable(err)
	}
	return nil
}

// Watch forwards to the backend when it implements [Watcher]. It reports false
// when the backend cannot watch.
func (s *Store) Watch(ctx context.Context, onChange func()) (bool, error) {
	w, ok := s.kv.(Watcher)
	if !ok {
		return false, nil
	}
	return true, w.Watch(ctx, onChange)
}

func wrapUnavailable(err error) error {
	if err == nil || errors.Is(err, ErrUnavailable) || errors.Is(err, ErrCorrupt) {
		return err
	}
	return errors.Join(ErrUnavailable, err)
}
