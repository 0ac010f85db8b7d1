package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/odvcencio/consonant/pkg/cache"
	"github.com/odvcencio/consonant/pkg/config"
	"github.com/odvcencio/consonant/pkg/expressions"
	"github.com/odvcencio/consonant/pkg/gitrepo"
	"github.com/odvcencio/consonant/pkg/local"
	"github.com/odvcencio/consonant/pkg/metrics"
	"github.com/odvcencio/consonant/pkg/register"
	"github.com/odvcencio/consonant/pkg/repo"
	"github.com/odvcencio/consonant/pkg/store"
)

var errNativeOnly = errors.New("command requires the native backend")

// cliEnv carries the state shared by every command of one invocation.
type cliEnv struct {
	configPath string
	ref        string
	stderr     io.Writer

	cfg      *config.Config
	logger   zerolog.Logger
	registry *prometheus.Registry
	metrics  *metrics.Collector

	closers []func() error
}

func (e *cliEnv) setup() error {
	cfg, err := config.Load(e.configPath)
	if err != nil {
		return err
	}
	e.cfg = cfg
	if e.ref == "" {
		e.ref = cfg.Repository.Ref
	}

	var out io.Writer = e.stderr
	if cfg.Log.Format == config.FormatConsole {
		out = zerolog.ConsoleWriter{Out: e.stderr, TimeFormat: time.RFC3339}
	}
	e.logger = zerolog.New(out).Level(cfg.LogLevel()).With().Timestamp().Logger()

	e.registry = prometheus.NewRegistry()
	e.metrics = metrics.NewWithRegistry(e.registry)
	return nil
}

// close flushes metrics and releases caches. It is safe to call when
// setup never ran.
func (e *cliEnv) close() error {
	var errs []error
	for i := len(e.closers) - 1; i >= 0; i-- {
		errs = append(errs, e.closers[i]())
	}
	e.closers = nil
	if e.cfg != nil && e.cfg.Metrics.Textfile != "" {
		errs = append(errs, metrics.WriteTextfile(e.cfg.Resolve(e.cfg.Metrics.Textfile), e.registry))
	}
	return errors.Join(errs...)
}

// openRepository opens the configured backend. native is nil for Git
// repositories.
func (e *cliEnv) openRepository() (r store.Repository, native *repo.Repo, err error) {
	path := e.cfg.RepositoryPath()
	switch e.cfg.Repository.Backend {
	case config.BackendGit:
		g, err := gitrepo.Open(path)
		if err != nil {
			return nil, nil, err
		}
		if e.cfg.Signing.Key != "" {
			e.logger.Warn().Str("key", e.cfg.Signing.Key).Msg("commit signing is not supported by the git backend")
		}
		return g, nil, nil
	default:
		n, err := repo.Open(path)
		if err != nil {
			return nil, nil, err
		}
		if e.cfg.Signing.Key != "" {
			signer, keyPath, err := newSSHCommitSigner(e.cfg.Resolve(e.cfg.Signing.Key))
			if err != nil {
				return nil, nil, err
			}
			n.Signer = signer
			e.logger.Debug().Str("key", keyPath).Msg("signing commits")
		}
		return n, n, nil
	}
}

func (e *cliEnv) native() (*repo.Repo, error) {
	_, n, err := e.openRepository()
	if err != nil {
		return nil, err
	}
	if n == nil {
		return nil, fmt.Errorf("%w (backend is %q)", errNativeOnly, e.cfg.Repository.Backend)
	}
	return n, nil
}

func (e *cliEnv) openCache() (store.Cache, error) {
	switch e.cfg.Cache.Driver {
	case config.CacheNone:
		return nil, nil
	case config.CacheSQLite:
		c, err := cache.OpenSQLite(e.cfg.Resolve(e.cfg.Cache.Path))
		if err != nil {
			return nil, err
		}
		e.closers = append(e.closers, c.Close)
		return c, nil
	default:
		return cache.NewMemory(), nil
	}
}

func (e *cliEnv) openStore() (*local.Store, error) {
	r, _, err := e.openRepository()
	if err != nil {
		return nil, err
	}
	opts := []local.Option{
		local.WithLogger(e.logger),
		local.WithMetrics(e.metrics),
	}
	c, err := e.openCache()
	if err != nil {
		return nil, err
	}
	if c != nil {
		opts = append(opts, local.WithCache(c))
	}
	reg := register.Static(e.cfg.Schemas).Rooted(e.cfg.Dir)
	return local.New(r, reg, opts...), nil
}

// commit resolves id, or the head of the selected ref when id is empty.
// A --ref that names no ref but looks like a commit id is read as one.
func (e *cliEnv) commit(s *local.Store, id string) (*store.Commit, error) {
	if id != "" {
		return s.Commit(id)
	}
	ref, err := s.Ref(e.ref)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) && expressions.ValidCommitSHA(e.ref) {
			return s.Commit(e.ref)
		}
		return nil, err
	}
	return ref.Head, nil
}

// storeCommit opens the store and resolves the commit to read.
func (e *cliEnv) storeCommit(id string) (*local.Store, *store.Commit, error) {
	s, err := e.openStore()
	if err != nil {
		return nil, nil, err
	}
	c, err := e.commit(s, id)
	if err != nil {
		return nil, nil, err
	}
	return s, c, nil
}

func defaultIdentity() string {
	if v := os.Getenv("CONSONANT_AUTHOR"); v != "" {
		return v
	}
	return "Consonant <consonant@localhost>"
}
