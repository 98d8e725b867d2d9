package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bnema/screeps-cli/internal/adapters/diskcache"
	"github.com/bnema/screeps-cli/internal/adapters/network"
	"github.com/bnema/screeps-cli/internal/adapters/notify"
	statusadapter "github.com/bnema/screeps-cli/internal/adapters/render/status"
	tomlrepo "github.com/bnema/screeps-cli/internal/adapters/repo/toml"
	chainstore "github.com/bnema/screeps-cli/internal/adapters/secrets/chain"
	filestore "github.com/bnema/screeps-cli/internal/adapters/secrets/file"
	"github.com/bnema/screeps-cli/internal/application"
	"github.com/bnema/screeps-cli/internal/domain"
	"github.com/bnema/screeps-cli/internal/ports"
	"github.com/spf13/viper"
	"golang.org/x/time/rate"
)

const (
	configDirName  = "scrs"
	configFileName = "config.toml"
	envPrefix      = "SCRS"

	keyServerURL           = "server.url"
	keyServerUsername      = "server.username"
	keyServerPassword      = "server.password"
	keyServerShard         = "server.shard"
	keyPoolSize            = "network.pool_size"
	keyRateLimitBackoff    = "network.rate_limit_backoff"
	keyMaxRateLimitRetries = "network.max_rate_limit_retries"
	keyRequestsPerSecond   = "network.requests_per_second"
	keyCacheDir            = "cache.dir"
	keyTerrainTTL          = "cache.terrain_ttl"
	keyCleanupInterval     = "cache.cleanup_interval"
	keyLogLevel            = "log.level"
	keySecretsBackend      = "secrets.backend"

	secretsBackendAuto = "auto"
	secretsBackendFile = "file"
)

var errUnknownSecretsBackend = errors.New("unknown secrets backend")

type app struct {
	cfg            *viper.Viper
	configDir      string
	service        *application.Service
	logger         *slog.Logger
	statusRenderer func(application.Snapshot, statusadapter.RenderOptions) (string, error)
	httpClient     *http.Client
	now            func() time.Time
	profile        string
	timeout        time.Duration
}

func wireApp(stderr io.Writer) (*app, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("resolve home directory: %w", err)
	}
	configDir := filepath.Join(homeDir, ".config", configDirName)

	cfg, err := loadConfig(configDir)
	if err != nil {
		return nil, err
	}

	logger, err := newLogger(stderr, cfg.GetString(keyLogLevel))
	if err != nil {
		return nil, err
	}

	repo, err := tomlrepo.NewProfileRepository(cfg, configDir)
	if err != nil {
		return nil, fmt.Errorf("wire profile repository: %w", err)
	}

	passwords, err := newPasswordStore(cfg.GetString(keySecretsBackend), filepath.Join(configDir, "credentials.toml"))
	if err != nil {
		return nil, fmt.Errorf("wire password store: %w", err)
	}

	return &app{
		cfg:            cfg,
		configDir:      configDir,
		service:        application.NewService(repo, passwords),
		logger:         logger,
		statusRenderer: statusadapter.Render,
		httpClient:     http.DefaultClient,
		now:            time.Now,
		profile:        domain.DefaultProfileName,
		timeout:        defaultWaitTimeout,
	}, nil
}

// loadConfig leaves cache.dir unset by default so the disk cache picks the
// platform user cache directory.
func loadConfig(configDir string) (*viper.Viper, error) {
	cfg := viper.New()
	cfg.SetConfigFile(filepath.Join(configDir, configFileName))
	cfg.SetConfigType("toml")
	cfg.SetEnvPrefix(envPrefix)
	cfg.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	cfg.AutomaticEnv()

	cfg.SetDefault(keyPoolSize, network.DefaultPoolSize)
	cfg.SetDefault(keyRateLimitBackoff, network.DefaultRateLimitBackoff)
	cfg.SetDefault(keyMaxRateLimitRetries, network.DefaultMaxRateLimitRetries)
	cfg.SetDefault(keyRequestsPerSecond, 0)
	cfg.SetDefault(keyTerrainTTL, diskcache.DefaultTerrainTTL)
	cfg.SetDefault(keyCleanupInterval, diskcache.DefaultCleanupInterval)
	cfg.SetDefault(keyLogLevel, "warn")
	cfg.SetDefault(keySecretsBackend, secretsBackendAuto)

	if err := cfg.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	return cfg, nil
}

func newLogger(w io.Writer, level string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("parse %s: %w", keyLogLevel, err)
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl})), nil
}

func newPasswordStore(backend string, credentialsPath string) (ports.PasswordStore, error) {
	switch backend {
	case "", secretsBackendAuto:
		return chainstore.NewPassFirstWithFileFallback(credentialsPath)
	case secretsBackendFile:
		return filestore.NewStore(credentialsPath), nil
	default:
		return nil, fmt.Errorf("%w %q", errUnknownSecretsBackend, backend)
	}
}

// overrides are the connection fields set through config or environment.
// They win over the saved profile.
func (a *app) overrides() application.SettingsOverrides {
	return application.SettingsOverrides{
		ServerURL: a.cfg.GetString(keyServerURL),
		Username:  a.cfg.GetString(keyServerUsername),
		Password:  a.cfg.GetString(keyServerPassword),
		Shard:     a.cfg.GetString(keyServerShard),
	}
}

func (a *app) settings(ctx context.Context) (domain.ConnectionSettings, error) {
	settings, err := a.service.ResolveSettings(ctx, a.profile, a.overrides())
	if err != nil {
		if errors.Is(err, domain.ErrProfileNotFound) {
			return domain.ConnectionSettings{}, fmt.Errorf("%w (run `scrs login` first)", err)
		}
		return domain.ConnectionSettings{}, err
	}
	return settings, nil
}

func (a *app) openCache(ctx context.Context) (*diskcache.Cache, error) {
	return diskcache.Load(ctx, diskcache.Options{
		Dir:             a.cfg.GetString(keyCacheDir),
		TerrainTTL:      a.cfg.GetDuration(keyTerrainTTL),
		CleanupInterval: a.cfg.GetDuration(keyCleanupInterval),
		Logger:          a.logger,
	})
}

func (a *app) limiter() *rate.Limiter {
	perSecond := a.cfg.GetFloat64(keyRequestsPerSecond)
	if perSecond <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(perSecond), 1)
}

// connection is one network session plus the state the commands read.
type connection struct {
	handler *network.Handler
	cache   *diskcache.Cache
	notify  *notify.Channel
	mem     *application.MemCache
	logger  *slog.Logger
	errs    []application.ErrorEvent
}

func (a *app) connect(ctx context.Context, settings domain.ConnectionSettings) *connection {
	cache, err := a.openCache(ctx)
	if err != nil {
		a.logger.Warn("disk cache unavailable, continuing without it", slog.Any("error", err))
		cache = nil
	} else {
		go cache.RunCleanup(ctx)
	}

	wake := notify.NewChannel()
	cfg := network.Config{
		Settings:            settings,
		Notify:              wake,
		HTTPClient:          a.httpClient,
		Limiter:             a.limiter(),
		PoolSize:            a.cfg.GetInt(keyPoolSize),
		RateLimitBackoff:    a.cfg.GetDuration(keyRateLimitBackoff),
		MaxRateLimitRetries: a.cfg.GetInt(keyMaxRateLimitRetries),
		Logger:              a.logger,
	}
	if cache != nil {
		cfg.Cache = cache
	}

	conn := &connection{
		handler: network.NewHandler(cfg),
		cache:   cache,
		notify:  wake,
		mem:     application.NewMemCache(ports.SystemClock{}, a.logger),
		logger:  a.logger,
	}
	conn.align().UpdateSettings(settings)
	return conn
}

func (c *connection) align() *application.NetworkedMemCache {
	return c.mem.Align(c.handler, func(err application.ErrorEvent) {
		c.logger.Debug("network error", slog.Any("error", err))
		c.errs = append(c.errs, err)
	}, nil)
}

// takeErrors returns the errors seen since the last call.
func (c *connection) takeErrors() []application.ErrorEvent {
	errs := c.errs
	c.errs = nil
	return errs
}

func (c *connection) close(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	err := c.handler.Close(ctx)
	c.notify.Close()
	if c.cache != nil {
		err = errors.Join(err, c.cache.Close())
	}
	return err
}
