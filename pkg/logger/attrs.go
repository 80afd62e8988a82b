package logger

import (
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
)

// Instance is the process behind a log line. Several lobby instances share
// one store; instance.id tells their records apart.
type Instance struct {
	ID        string
	Host      string
	PID       int
	StartedAt time.Time
}

// NewInstance names the process host-<short uuid> when id is empty.
func NewInstance(id string) Instance {
	host, _ := os.Hostname()
	if id == "" {
		id = host + "-" + uuid.NewString()[:8]
	}
	return Instance{ID: id, Host: host, PID: os.Getpid(), StartedAt: time.Now().UTC()}
}

func (i Instance) attr() slog.Attr {
	return slog.Group("instance",
		slog.String("id", i.ID),
		slog.String("host", i.Host),
		slog.Int("pid", i.PID),
		slog.Time("started_at", i.StartedAt),
	)
}

func commonAttrs(cfg Config, inst Instance) []slog.Attr {
	attrs := []slog.Attr{
		slog.String("service", cfg.Service),
		slog.String("env", string(cfg.Env)),
		slog.String("version", cfg.Version),
		inst.attr(),
	}
	return append(attrs, cfg.Attrs...)
}
