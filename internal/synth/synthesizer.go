package synth

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/SentimentalK/Avalon-Tunnel/internal/audit"
	"github.com/SentimentalK/Avalon-Tunnel/internal/registry"
	"github.com/SentimentalK/Avalon-Tunnel/internal/settings"
	"github.com/SentimentalK/Avalon-Tunnel/model"
	"github.com/SentimentalK/Avalon-Tunnel/params"
)

// RestartFunc applies the freshly written ingress document to the running
// tunnel daemon, typically by restarting its container.
type RestartFunc func(ctx context.Context) error

type Options struct {
	Domain     string
	PortBase   int
	ConfigFile string // rendered tunnel ingress document
	RoutesFile string // rendered reverse proxy routing table
	AdminPort  string // upstream port of the admin API
	DecoyPort  string // upstream port of the decoy engine
}

// Result reports a synthesis run. Success covers the downstream apply as
// well: the registry stays authoritative even when the apply fails, so a
// failed restart yields Success=false with the documents already written.
type Result struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	UserCount int    `json:"user_count"`
}

// Synthesizer renders the enabled-user snapshot into the two downstream
// config documents. Runs are serialized by a mutex so a concurrent
// registry mutation cannot produce a torn config, and rendering is fully
// deterministic: the same user set always yields byte-identical output.
type Synthesizer struct {
	mu       sync.Mutex
	registry *registry.Registry
	settings *settings.Store
	restart  RestartFunc
	opts     Options
}

func NewSynthesizer(reg *registry.Registry, store *settings.Store, restart RestartFunc, opts Options) *Synthesizer {
	return &Synthesizer{
		registry: reg,
		settings: store,
		restart:  restart,
		opts:     opts,
	}
}

// buildIngress renders one isolated listener per enabled user at port
// base+slot. A user without a secret path cannot be routed to and is skipped
// with a warning; one bad record never aborts the run.
func buildIngress(users []*model.User, portBase int) *IngressDocument {
	doc := &IngressDocument{
		Log: LogConfig{
			Loglevel: "warning",
			Access:   "/var/log/v2ray/access.log",
			Error:    "/var/log/v2ray/error.log",
		},
		Inbounds: []Inbound{},
		Outbounds: []Outbound{
			{Protocol: "freedom"},
			{Protocol: "blackhole", Tag: "blocked"},
		},
		Routing: RouteConfig{
			Rules: []RouteRule{
				{Type: "field", IP: blockedRanges, OutboundTag: "blocked"},
			},
		},
	}

	for _, user := range users {
		if user.SecretPath == "" {
			slog.Warn("Skipping user without secret path", "uuid", user.UUID, "email", user.Email)
			continue
		}
		doc.Inbounds = append(doc.Inbounds, Inbound{
			Port:     portBase + int(user.PortIndex),
			Listen:   "127.0.0.1",
			Protocol: "vless",
			Settings: InboundSettings{
				Clients: []Client{
					{ID: user.UUID, Level: user.Level, Email: user.Email},
				},
				Decryption: "none",
			},
			StreamSettings: StreamSettings{
				Network: "ws",
				WSSettings: WSSettings{
					Path: "/" + user.SecretPath,
				},
			},
		})
	}
	return doc
}

// Synthesize reads a snapshot of the enabled users and overwrites both
// rendered documents. The two writes are sequential, not atomic: a reader
// can momentarily observe one updated and one stale document.
func (s *Synthesizer) Synthesize(ctx context.Context) (*Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	users, err := s.registry.List(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("failed to read enabled users: %w", err)
	}
	if len(users) == 0 {
		slog.Warn("No enabled users, synthesizing empty listener set")
	}

	portBase := s.settings.GetInt(ctx, params.SettingIngressPortBase, s.opts.PortBase)

	ingress, err := json.MarshalIndent(buildIngress(users, portBase), "", "  ")
	if err != nil {
		return nil, err
	}
	routes, err := renderRoutes(s.opts.Domain, users, portBase, s.opts.AdminPort, s.opts.DecoyPort)
	if err != nil {
		return nil, err
	}

	if err := os.WriteFile(s.opts.ConfigFile, append(ingress, '\n'), 0o644); err != nil {
		return nil, fmt.Errorf("failed to write ingress config: %w", err)
	}
	if err := os.WriteFile(s.opts.RoutesFile, routes, 0o644); err != nil {
		return nil, fmt.Errorf("failed to write routing table: %w", err)
	}

	result := &Result{UserCount: len(users)}
	restartCtx, cancel := context.WithTimeout(ctx, params.RestartHookTimeout)
	defer cancel()
	if err := s.restart(restartCtx); err != nil {
		// The documents are already on disk and the registry remains the
		// source of truth; only the downstream apply lagged.
		result.Success = false
		result.Message = fmt.Sprintf("configs written for %d users, but the tunnel daemon restart failed: %v; "+
			"listeners stay stale until a restart succeeds", len(users), err)
	} else {
		result.Success = true
		result.Message = fmt.Sprintf("configs updated for %d users; proxy routes apply on its next config read, "+
			"tunnel listeners may not be live until the daemon restart completes", len(users))
	}

	audit.RecordConfigReloaded(ctx, len(users), result.Message)
	return result, nil
}
