// Package local applies transactions to a store kept in a repository on
// this machine. Changes become visible only through an optimistic
// compare-and-swap of the target ref.
package local

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/odvcencio/consonant/pkg/loader"
	"github.com/odvcencio/consonant/pkg/metrics"
	"github.com/odvcencio/consonant/pkg/register"
	"github.com/odvcencio/consonant/pkg/store"
	"github.com/odvcencio/consonant/pkg/transaction"
)

// Store reads and writes one store. It is safe for concurrent use.
type Store struct {
	repo      store.Repository
	loader    *loader.Loader
	validator *loader.Validator
	logger    zerolog.Logger
	metrics   *metrics.Collector
	newUUID   func() string

	loaderOpts []loader.Option
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger for transaction events.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
		s.loaderOpts = append(s.loaderOpts, loader.WithLogger(logger))
	}
}

// WithMetrics records transactions and loads on m.
func WithMetrics(m *metrics.Collector) Option {
	return func(s *Store) {
		s.metrics = m
		s.loaderOpts = append(s.loaderOpts, loader.WithMetrics(m))
	}
}

// WithCache gives the store's loader an object cache. Validation never
// uses it.
func WithCache(c store.Cache) Option {
	return func(s *Store) { s.loaderOpts = append(s.loaderOpts, loader.WithCache(c)) }
}

// WithFetcher replaces the schema document fetcher.
func WithFetcher(fetch func(locator string) ([]byte, error)) Option {
	return func(s *Store) { s.loaderOpts = append(s.loaderOpts, loader.WithFetcher(fetch)) }
}

// WithUUIDGenerator replaces the source of new object UUIDs.
func WithUUIDGenerator(gen func() string) Option {
	return func(s *Store) { s.newUUID = gen }
}

// New opens the store kept in repo, resolving schemas through reg.
func New(repo store.Repository, reg register.Register, opts ...Option) *Store {
	s := &Store{
		repo:    repo,
		logger:  zerolog.Nop(),
		newUUID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.loader = loader.New(repo, reg, s.loaderOpts...)
	s.validator = loader.NewValidator(repo, reg, s.loaderOpts...)
	return s
}

// Loader returns the loader reading the store's commits.
func (s *Store) Loader() *loader.Loader { return s.loader }

// Repository returns the underlying repository.
func (s *Store) Repository() store.Repository { return s.repo }

// Refs returns every branch and tag ordered by name.
func (s *Store) Refs() ([]*store.Ref, error) {
	heads, err := s.repo.ListRefs()
	if err != nil {
		return nil, fmt.Errorf("list refs: %w", err)
	}
	names := make([]string, 0, len(heads))
	for name := range heads {
		names = append(names, name)
	}
	sort.Strings(names)

	refs := make([]*store.Ref, 0, len(names))
	for _, name := range names {
		head, err := s.repo.ReadCommit(heads[name])
		if err != nil {
			return nil, fmt.Errorf("read head of %s: %w", name, err)
		}
		refs = append(refs, store.NewRef(store.RefTypeOf(name), name, head))
	}
	return refs, nil
}

// Ref returns the ref addressed by name or by one of its aliases.
func (s *Store) Ref(name string) (*store.Ref, error) {
	refs, err := s.Refs()
	if err != nil {
		return nil, err
	}
	for _, r := range refs {
		if r.Name == name {
			return r, nil
		}
	}
	for _, r := range refs {
		if r.Matches(name) {
			return r, nil
		}
	}
	return nil, fmt.Errorf("ref %q: %w", name, store.ErrNotFound)
}

// Commit reads a commit by full or abbreviated id.
func (s *Store) Commit(id string) (*store.Commit, error) {
	sha, err := s.repo.ExpandCommit(id)
	if err != nil {
		return nil, fmt.Errorf("commit %s: %w", id, err)
	}
	return s.repo.ReadCommit(sha)
}

// Validate checks c with the built-in validator, then with hooks in order.
// It never consults the object cache.
func (s *Store) Validate(c *store.Commit, hooks ...loader.Hook) error {
	return loader.NewCommitValidator(append([]loader.Hook{s.validator}, hooks...)...).Validate(c)
}

// ApplyTransaction prepares tx, validates the candidate commit with the
// built-in validator and hooks, and advances the target ref from the
// transaction's source to the candidate. A rejected candidate stays
// unreachable.
func (s *Store) ApplyTransaction(tx *transaction.Transaction, hooks ...loader.Hook) (*store.Commit, error) {
	start := time.Now()
	c, err := s.applyTransaction(tx, hooks)
	s.metrics.RecordTransaction(result(err), time.Since(start))
	return c, err
}

func result(err error) string {
	var ae *ActionError
	switch {
	case err == nil:
		return metrics.ResultApplied
	case errors.Is(err, ErrConcurrencyConflict):
		return metrics.ResultConflict
	case errors.Is(err, ErrValidationFailed), errors.As(err, &ae):
		return metrics.ResultInvalid
	}
	return metrics.ResultError
}

func (s *Store) applyTransaction(tx *transaction.Transaction, hooks []loader.Hook) (*store.Commit, error) {
	candidate, err := s.Prepare(tx)
	if err != nil {
		return nil, err
	}

	if err := s.Validate(candidate, hooks...); err != nil {
		if !loader.IsDefect(err) {
			return nil, fmt.Errorf("validate %s: %w", store.ShortSHA(candidate.SHA), err)
		}
		s.logger.Info().
			Str("commit", candidate.SHA).
			Int("errors", len(loader.Errors(err))).
			Msg("validation failed")
		return nil, errors.Join(ErrValidationFailed, err)
	}

	target := tx.Commit().Target
	ref, err := s.Ref(target)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: %w", ErrConcurrencyConflict, err)
		}
		return nil, err
	}
	source := candidate.Parents[0]
	if ref.Head.SHA != source {
		s.logger.Info().
			Str("ref", ref.Name).
			Str("expected", source).
			Str("found", ref.Head.SHA).
			Msg("concurrency conflict")
		return nil, fmt.Errorf("%w: %s is at %s, transaction is based on %s",
			ErrConcurrencyConflict, ref.Name, store.ShortSHA(ref.Head.SHA), store.ShortSHA(source))
	}

	if err := s.repo.UpdateRef(ref.Name, candidate.SHA, source); err != nil {
		switch {
		case errors.Is(err, store.ErrRefCASMismatch):
			s.logger.Info().Str("ref", ref.Name).Str("expected", source).Msg("concurrency conflict")
			return nil, fmt.Errorf("%w: %w", ErrConcurrencyConflict, err)
		case errors.Is(err, store.ErrRefUpdatedButReflogAppendFailed):
			s.logger.Warn().Err(err).Str("ref", ref.Name).Str("new", candidate.SHA).Msg("ref advanced without reflog entry")
		default:
			return nil, err
		}
	}
	s.logger.Info().
		Str("ref", ref.Name).
		Str("old", source).
		Str("new", candidate.SHA).
		Msg("ref advanced")
	return candidate, nil
}
