package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/needle-drop/lobby-service/pkg/logger"
)

type GRPC struct {
	Addr        string `yaml:"addr"`
	CallTimeout string `yaml:"callTimeout"` // 10s
}

type HTTP struct {
	Addr           string `yaml:"addr"`
	ReadTimeout    string `yaml:"readTimeout"`    // 15s
	WriteTimeout   string `yaml:"writeTimeout"`   // 30s
	IdleTimeout    string `yaml:"idleTimeout"`    // 60s
	RequestTimeout string `yaml:"requestTimeout"` // 30s
}

type WS struct {
	PingInterval   string  `yaml:"pingInterval"` // 15s
	WriteTimeout   string  `yaml:"writeTimeout"` // 5s
	ReadLimit      int64   `yaml:"readLimit"`
	OutboundBuffer int     `yaml:"outboundBuffer"`
	RateLimit      float64 `yaml:"rateLimit"` // кадров в секунду
	RateBurst      int     `yaml:"rateBurst"`
}

type Logging struct {
	Env       string `yaml:"env"`       // dev|stage|prod
	Service   string `yaml:"service"`   // lobby-service
	Version   string `yaml:"version"`   // v0.1.0
	Backend   string `yaml:"backend"`   // std|zap
	Level     string `yaml:"level"`     // debug|info|warn|error
	AddSource bool   `yaml:"addSource"` // false|true
	Debug     bool   `yaml:"debug"`     // false|true

	InstanceID string `yaml:"instanceId"` // пусто: host-<uuid>
}

type Point struct {
	X int `yaml:"x"`
	Y int `yaml:"y"`
}

type Bounds struct {
	MinX int `yaml:"minX"`
	MinY int `yaml:"minY"`
	MaxX int `yaml:"maxX"`
	MaxY int `yaml:"maxY"`
}

type Lobby struct {
	Spawn         *Point  `yaml:"spawn"`
	Bounds        *Bounds `yaml:"bounds"`
	MaxNameLength int     `yaml:"maxNameLength"`
	InboxSize     int     `yaml:"inboxSize"`
	OpTimeout     string  `yaml:"opTimeout"` // 5s
}

type Chat struct {
	MaxMessageLength int  `yaml:"maxMessageLength"`
	HistorySize      int  `yaml:"historySize"`
	RetainEmpty      bool `yaml:"retainEmpty"`
}

type Queue struct {
	PromoteAt *int `yaml:"promoteAt"`
	DemoteAt  *int `yaml:"demoteAt"`
	Retries   int  `yaml:"retries"`
}

const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendNATS     = "nats"
	BackendPostgres = "postgres"
)

type Store struct {
	Backend string `yaml:"backend"` // memory|redis|nats|postgres
	TTL     string `yaml:"ttl"`     // пусто — без срока
}

type Redis struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

type NATS struct {
	URL    string `yaml:"url"`
	Bucket string `yaml:"bucket"`
	Memory bool   `yaml:"memory"`
}

type Postgres struct {
	DSN             string `yaml:"dsn"`
	MaxConns        int32  `yaml:"maxConns"`
	MinConns        int32  `yaml:"minConns"`
	MaxConnLifetime string `yaml:"maxConnLifetime"`
	MaxConnIdleTime string `yaml:"maxConnIdleTime"`
}

type CORS struct {
	AllowedOrigins []string `yaml:"allowedOrigins"`
}

type Config struct {
	HTTP     HTTP     `yaml:"http"`
	GRPC     GRPC     `yaml:"grpc"`
	WS       WS       `yaml:"ws"`
	Logging  Logging  `yaml:"logging"`
	Lobby    Lobby    `yaml:"lobby"`
	Chat     Chat     `yaml:"chat"`
	Queue    Queue    `yaml:"queue"`
	Store    Store    `yaml:"store"`
	Redis    Redis    `yaml:"redis"`
	NATS     NATS     `yaml:"nats"`
	Postgres Postgres `yaml:"postgres"`
	CORS     CORS     `yaml:"cors"`
}

func LoadConfig() (*Config, error) {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "./config/config.yaml"
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.HTTP.Addr == "" {
		return errors.New("http.addr is required")
	}
	if c.GRPC.Addr == "" {
		return errors.New("grpc.addr is required")
	}

	switch c.Store.Backend {
	case "":
		c.Store.Backend = BackendMemory
	case BackendMemory:
	case BackendRedis:
		if c.Redis.Addr == "" {
			return errors.New("redis.addr is required for store.backend=redis")
		}
	case BackendNATS:
		if c.NATS.URL == "" {
			return errors.New("nats.url is required for store.backend=nats")
		}
	case BackendPostgres:
		if c.Postgres.DSN == "" {
			return errors.New("postgres.dsn is required for store.backend=postgres")
		}
	default:
		return fmt.Errorf("store.backend %q is not one of memory|redis|nats|postgres", c.Store.Backend)
	}

	// установка дефолтов, если значения не указаны
	if c.Logging.Service == "" {
		c.Logging.Service = "lobby-service"
	}
	if c.Logging.Env == "" {
		c.Logging.Env = "dev"
	}
	if c.Logging.Version == "" {
		c.Logging.Version = "v0.1.0"
	}
	if c.Logging.Backend == "" {
		// в dev читаемый текст, в остальных окружениях zap
		c.Logging.Backend = string(logger.BackendZap)
		if logger.ParseEnv(c.Logging.Env) == logger.EnvDev {
			c.Logging.Backend = string(logger.BackendStd)
		}
	}

	if c.Lobby.Spawn == nil {
		c.Lobby.Spawn = &Point{X: 100, Y: 100}
	}
	if c.Lobby.Bounds == nil {
		c.Lobby.Bounds = &Bounds{MaxX: 2000, MaxY: 2000}
	}
	if b := c.Lobby.Bounds; b.MaxX <= b.MinX || b.MaxY <= b.MinY {
		return errors.New("lobby.bounds must have max greater than min")
	}
	if c.Lobby.MaxNameLength <= 0 {
		c.Lobby.MaxNameLength = 32
	}
	if c.Chat.MaxMessageLength <= 0 {
		c.Chat.MaxMessageLength = 500
	}
	if c.Chat.HistorySize <= 0 {
		c.Chat.HistorySize = 200
	}

	if c.Queue.PromoteAt == nil {
		c.Queue.PromoteAt = ptr(2)
	}
	if c.Queue.DemoteAt == nil {
		c.Queue.DemoteAt = ptr(-2)
	}
	if *c.Queue.PromoteAt < 1 {
		return errors.New("queue.promoteAt must be at least 1")
	}
	if *c.Queue.DemoteAt > -1 {
		return errors.New("queue.demoteAt must be at most -1")
	}
	if c.Queue.Retries <= 0 {
		c.Queue.Retries = 8
	}

	if c.WS.OutboundBuffer <= 0 {
		c.WS.OutboundBuffer = 256
	}
	if c.WS.RateLimit <= 0 {
		c.WS.RateLimit = 20
	}
	if c.WS.RateBurst <= 0 {
		c.WS.RateBurst = 40
	}
	return nil
}

func ptr[T any](v T) *T { return &v }

// helper для парсинга timeout-ов
func parseDurationOr(def time.Duration, s string) time.Duration {
	if d, err := time.ParseDuration(s); err == nil && d > 0 {
		return d
	}
	return def
}

func (h HTTP) Timeouts() (read, write, idle, request time.Duration) {
	return parseDurationOr(15*time.Second, h.ReadTimeout),
		parseDurationOr(30*time.Second, h.WriteTimeout),
		parseDurationOr(60*time.Second, h.IdleTimeout),
		parseDurationOr(30*time.Second, h.RequestTimeout)
}

func (g GRPC) CallTimeoutOr() time.Duration {
	return parseDurationOr(10*time.Second, g.CallTimeout)
}

func (w WS) PingIntervalOr() time.Duration {
	return parseDurationOr(15*time.Second, w.PingInterval)
}

func (w WS) WriteTimeoutOr() time.Duration {
	return parseDurationOr(5*time.Second, w.WriteTimeout)
}

func (l Lobby) OpTimeoutOr() time.Duration {
	return parseDurationOr(5*time.Second, l.OpTimeout)
}

// TTLOr is zero when records never expire.
func (s Store) TTLOr() time.Duration {
	return parseDurationOr(0, s.TTL)
}

func (p Postgres) Lifetimes() (maxLifetime, maxIdle time.Duration) {
	return parseDurationOr(0, p.MaxConnLifetime), parseDurationOr(0, p.MaxConnIdleTime)
}
