package config

import (
	"crypto/tls"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"task-board/board"
	"task-board/storage"
)

// Config holds every setting of the service.
type Config struct {
	ListenAddr string
	// DataDir is where the local board lives; empty disables durable storage.
	DataDir string

	StorageConnectionString string
	TasksTable              string
	BoardName               string
	ChangeQueue             string
	RemoteProvision         bool
	RemoteTryTimeout        time.Duration

	RedisConnectionString string
	CacheTTL              time.Duration

	SyncWorkers        int
	SyncBuffer         int
	SyncHandoffTimeout time.Duration

	StartupTimeout time.Duration

	Debug     bool
	LogFormat string
}

// Load reads the configuration from the environment. Variables from the
// given dotenv files are applied first without overriding the environment;
// with no files an optional .env in the working directory is used.
func Load(envFiles ...string) (Config, error) {
	if len(envFiles) == 0 {
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load .env: %w", err)
		}
	} else if err := godotenv.Load(envFiles...); err != nil {
		return Config{}, fmt.Errorf("load env files: %w", err)
	}

	var errs []error
	collect := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	cfg := Config{
		ListenAddr:              envString("LISTEN_ADDR", ":8080"),
		DataDir:                 envString("DATA_DIR", "./.task-board"),
		StorageConnectionString: os.Getenv("STORAGE_CONNECTION_STRING"),
		TasksTable:              envString("TASKS_TABLE", "tasks"),
		BoardName:               envString("BOARD_NAME", "default"),
		ChangeQueue:             os.Getenv("CHANGE_QUEUE"),
		RedisConnectionString:   os.Getenv("REDIS_CONNECTION_STRING"),
		LogFormat:               strings.ToLower(envString("LOG_FORMAT", "text")),
	}
	if cfg.DataDir == "-" {
		cfg.DataDir = ""
	}

	var err error
	cfg.RemoteProvision, err = envBool("REMOTE_PROVISION", false)
	collect(err)
	cfg.RemoteTryTimeout, err = envDur("REMOTE_TRY_TIMEOUT", 10*time.Second)
	collect(err)
	cfg.CacheTTL, err = envDur("CACHE_TTL", 5*time.Minute)
	collect(err)
	cfg.SyncWorkers, err = envInt("SYNC_WORKERS", 8)
	collect(err)
	cfg.SyncBuffer, err = envInt("SYNC_BUFFER", 256)
	collect(err)
	cfg.SyncHandoffTimeout, err = envDur("SYNC_HANDOFF_TIMEOUT", 15*time.Millisecond)
	collect(err)
	cfg.StartupTimeout, err = envDur("STARTUP_TIMEOUT", 10*time.Second)
	collect(err)
	cfg.Debug, err = envBool("DEBUG", false)
	collect(err)

	if cfg.SyncWorkers <= 0 {
		collect(errors.New("invalid SYNC_WORKERS: must be greater than zero"))
	}
	if cfg.SyncBuffer <= 0 {
		collect(errors.New("invalid SYNC_BUFFER: must be greater than zero"))
	}
	if cfg.StartupTimeout <= 0 {
		collect(errors.New("invalid STARTUP_TIMEOUT: must be greater than zero"))
	}
	if cfg.LogFormat != "text" && cfg.LogFormat != "json" {
		collect(fmt.Errorf("invalid LOG_FORMAT %q: want text or json", cfg.LogFormat))
	}

	if len(errs) > 0 {
		return Config{}, errors.Join(errs...)
	}
	return cfg, nil
}

// StorageOptions returns the remote store settings.
func (c Config) StorageOptions() storage.Options {
	return storage.Options{
		ConnectionString: c.StorageConnectionString,
		Table:            c.TasksTable,
		Board:            c.BoardName,
		ChangeQueue:      c.ChangeQueue,
		TryTimeout:       c.RemoteTryTimeout,
	}
}

// SyncOptions returns the background sync settings.
func (c Config) SyncOptions() board.Options {
	return board.Options{
		Workers:        c.SyncWorkers,
		Buffer:         c.SyncBuffer,
		HandoffTimeout: c.SyncHandoffTimeout,
	}
}

// RedisOptions parses REDIS_CONNECTION_STRING. It accepts a redis:// URL or
// the "host:port,password=...,ssl=true" form. Nil means no cache.
func (c Config) RedisOptions() *redis.Options {
	conn := strings.TrimSpace(c.RedisConnectionString)
	if conn == "" {
		return nil
	}
	opts, err := redis.ParseURL(conn)
	if err == nil {
		return opts
	}
	parts := strings.Split(conn, ",")
	opts = &redis.Options{Addr: strings.TrimSpace(parts[0])}
	for _, p := range parts[1:] {
		kv := strings.SplitN(p, "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch strings.ToLower(strings.TrimSpace(kv[0])) {
		case "password":
			opts.Password = kv[1]
		case "ssl":
			if strings.EqualFold(kv[1], "true") {
				opts.TLSConfig = &tls.Config{}
			}
		}
	}
	return opts
}

func envString(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func envDur(key string, def time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def, fmt.Errorf("invalid %s: %w", key, err)
	}
	if d < 0 {
		return def, fmt.Errorf("invalid %s: must not be negative", key)
	}
	return d, nil
}

func envBool(key string, def bool) (bool, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}
