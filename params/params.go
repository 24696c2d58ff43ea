package params

import "time"

const (
	ServerBodyLimit    = 1048576 // 1 MiB
	ServerIdleTimeout  = 30 * time.Second
	ServerReadTimeout  = 10 * time.Second
	ServerWriteTimeout = 10 * time.Second

	SecretPathLength   = 32                                                               // length of per-user capability path segments
	SecretPathAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789" // alphabet for generated path segments

	DefaultIngressPortBase = 10000 // first tunnel listener port; slot n binds base+n
	PortSlotAssignRetries  = 3    // retries when concurrent creates race to the same slot
	RestartHookTimeout     = 30 * time.Second

	DecoyMinEventInterval = 1 * time.Second   // lower bound between synthetic chat events
	DecoyMaxEventInterval = 300 * time.Second // upper bound between synthetic chat events
	DecoyKeepAliveGap     = 15 * time.Second  // comment-frame period; bounds disconnect detection latency
	DecoyMaxStreams       = 512               // concurrent event-stream connections before degrading to static content
	MediaChunkSize        = 64 * 1024         // byte window copied per write while streaming media

	AdminRateLimitMax    = 120 // requests per window on the admin surface
	AdminRateLimitWindow = 1 * time.Minute

	DeviceLogDefaultLimit = 100 // default page size when listing device access entries
	AuditLogDefaultLimit  = 100 // default page size when listing audit entries

	HealthCheckServerAddr = ":3001" // health check server address
)

// Well-known settings keys.
const (
	SettingInitialized     = "initialized"
	SettingIngressPortBase = "ingress_port_base"
)
