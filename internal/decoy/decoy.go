package decoy

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/SentimentalK/Avalon-Tunnel/params"
	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"
)

// Config carries the camouflage surface settings.
type Config struct {
	RootDocument string        // static decoy page served at / and the disguise path
	DisguisePath string        // fixed path that negotiates the event stream
	MediaFile    string        // backing file for the cache-busting media path
	CorpusFile   string        // optional chat corpus, one message per line
	MinInterval  time.Duration // lower bound between chat events
	MaxInterval  time.Duration // upper bound between chat events
	KeepAlive    time.Duration // fixed period between comment frames while idle
	MaxStreams   int           // concurrent event streams before degrading to static content
}

// Handler serves traffic indistinguishable in shape from ordinary media and
// chat browsing: a static page, a long-poll style event stream with irregular
// gaps, and range-based media fetches with per-request cache busting.
type Handler struct {
	cfg     Config
	chat    *chatFeed
	streams atomic.Int64
}

func NewHandler(cfg Config) (*Handler, error) {
	chat, err := newChatFeed(cfg.CorpusFile)
	if err != nil {
		return nil, err
	}
	if cfg.KeepAlive <= 0 {
		cfg.KeepAlive = params.DecoyKeepAliveGap
	}
	return &Handler{cfg: cfg, chat: chat}, nil
}

func (h *Handler) Register(app *fiber.App) {
	app.Get("/", h.GetHome)
	app.Get(h.cfg.DisguisePath, h.GetDisguise)
	app.Get("/stream/:token", h.GetMedia)
	app.Use(func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNotFound)
	})
}

// ErrorHandler keeps the camouflage intact: every failure, including internal
// ones, looks like a plain missing resource.
func ErrorHandler(c *fiber.Ctx, err error) error {
	if e, ok := err.(*fiber.Error); !ok || e.Code >= fiber.StatusInternalServerError {
		slog.Debug("Decoy serving error", "path", c.Path(), "error", err)
	}
	return c.SendStatus(fiber.StatusNotFound)
}

func (h *Handler) GetHome(c *fiber.Ctx) error {
	return h.sendDecoyDocument(c)
}

func (h *Handler) sendDecoyDocument(c *fiber.Ctx) error {
	if _, err := os.Stat(h.cfg.RootDocument); err != nil {
		return c.SendStatus(fiber.StatusNotFound)
	}
	return c.SendFile(h.cfg.RootDocument)
}

// GetDisguise negotiates on the Accept header: an event-stream client gets a
// never-ending synthetic chat feed, anything else gets the same static
// document as the root. The path itself looks like an ordinary resource URL.
func (h *Handler) GetDisguise(c *fiber.Ctx) error {
	if !strings.Contains(c.Get(fiber.HeaderAccept), "text/event-stream") {
		return h.sendDecoyDocument(c)
	}
	if h.streams.Add(1) > int64(h.cfg.MaxStreams) {
		// Over the cap the response shape stays indistinguishable from a
		// client that simply did not ask for the stream.
		h.streams.Add(-1)
		return h.sendDecoyDocument(c)
	}

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")

	reqCtx := c.Context()
	minGap, maxGap := h.cfg.MinInterval, h.cfg.MaxInterval
	reqCtx.SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		defer h.streams.Add(-1)
		timer := time.NewTimer(0)
		if !timer.Stop() {
			<-timer.C
		}
		defer timer.Stop()
		// A failed flush is the disconnect signal; the stream never
		// terminates on its own. Comment frames at a fixed short period
		// keep teardown latency bounded by the keepalive, not by the
		// event gap, since a dead peer is only noticed when we write.
		keepalive := time.NewTicker(h.cfg.KeepAlive)
		defer keepalive.Stop()
		for {
			timer.Reset(randInterval(minGap, maxGap))
		waiting:
			for {
				select {
				case <-reqCtx.Done():
					return
				case <-keepalive.C:
					if _, err := fmt.Fprint(w, ": keepalive\n\n"); err != nil {
						return
					}
					if err := w.Flush(); err != nil {
						return
					}
				case <-timer.C:
					break waiting
				}
			}
			if _, err := fmt.Fprintf(w, "data: %s\n\n", h.chat.Next()); err != nil {
				return
			}
			if err := w.Flush(); err != nil {
				return
			}
		}
	}))
	return nil
}
