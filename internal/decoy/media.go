package decoy

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/SentimentalK/Avalon-Tunnel/params"
	"github.com/gofiber/fiber/v2"
	"github.com/valyala/bytebufferpool"
)

// GetMedia serves the single backing media file under a per-request opaque
// token. The token is ignored entirely; it only makes every fetch look like
// a new resource so intermediaries cannot cache or correlate requests.
func (h *Handler) GetMedia(c *fiber.Ctx) error {
	setNoCache(c)

	f, err := os.Open(h.cfg.MediaFile)
	if err != nil {
		return c.SendStatus(fiber.StatusNotFound)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return c.SendStatus(fiber.StatusNotFound)
	}
	size := info.Size()

	c.Set(fiber.HeaderContentType, "video/mp4")
	c.Set(fiber.HeaderAcceptRanges, "bytes")

	start, end, hasRange, err := parseRange(c.Get(fiber.HeaderRange), size)
	if err != nil {
		f.Close()
		c.Set(fiber.HeaderContentRange, fmt.Sprintf("bytes */%d", size))
		return c.SendStatus(fiber.StatusRequestedRangeNotSatisfiable)
	}

	if hasRange {
		c.Status(fiber.StatusPartialContent)
		c.Set(fiber.HeaderContentRange, fmt.Sprintf("bytes %d-%d/%d", start, end, size))
	} else {
		c.Status(fiber.StatusOK)
	}
	length := end - start + 1

	// A sized body stream keeps the exact Content-Length on the wire while
	// the file is read in bounded chunks, never loaded wholesale.
	c.Context().Response.SetBodyStream(newMediaStream(f, start, length), int(length))
	return nil
}

func setNoCache(c *fiber.Ctx) {
	c.Set(fiber.HeaderCacheControl, "no-cache, no-store, must-revalidate")
	c.Set(fiber.HeaderPragma, "no-cache")
	c.Set(fiber.HeaderExpires, "0")
}

// parseRange handles a single byte range: "bytes=a-b", "bytes=a-" and the
// suffix form "bytes=-n". A missing or malformed header selects the whole
// file; a syntactically valid but unsatisfiable range is an error.
func parseRange(header string, size int64) (start, end int64, hasRange bool, err error) {
	end = size - 1
	if header == "" || !strings.HasPrefix(header, "bytes=") {
		return 0, end, false, nil
	}
	spec := strings.TrimPrefix(header, "bytes=")
	if strings.Contains(spec, ",") {
		// Multi-range requests fall back to the full file.
		return 0, end, false, nil
	}
	first, last, ok := strings.Cut(spec, "-")
	if !ok {
		return 0, end, false, nil
	}

	if first == "" {
		// Suffix form: the last n bytes.
		n, perr := strconv.ParseInt(last, 10, 64)
		if perr != nil || n <= 0 {
			return 0, end, false, nil
		}
		if n > size {
			n = size
		}
		return size - n, end, true, nil
	}

	start, perr := strconv.ParseInt(first, 10, 64)
	if perr != nil || start < 0 {
		return 0, end, false, nil
	}
	if start >= size {
		return 0, 0, false, fmt.Errorf("range start %d beyond size %d", start, size)
	}
	if last != "" {
		end, perr = strconv.ParseInt(last, 10, 64)
		if perr != nil || end < start {
			return 0, 0, false, fmt.Errorf("invalid range %q", header)
		}
		if end > size-1 {
			end = size - 1
		}
	}
	return start, end, true, nil
}

// mediaStream reads a fixed byte window of the backing file through a pooled
// chunk buffer, bounding memory regardless of the requested window size.
type mediaStream struct {
	f   *os.File
	src *io.SectionReader
	buf *bytebufferpool.ByteBuffer
	win []byte // unread remainder of the current chunk
}

func newMediaStream(f *os.File, offset, length int64) *mediaStream {
	buf := bytebufferpool.Get()
	if cap(buf.B) < params.MediaChunkSize {
		buf.B = make([]byte, params.MediaChunkSize)
	}
	return &mediaStream{
		f:   f,
		src: io.NewSectionReader(f, offset, length),
		buf: buf,
	}
}

func (m *mediaStream) Read(p []byte) (int, error) {
	if len(m.win) == 0 {
		chunk := m.buf.B[:params.MediaChunkSize]
		n, err := m.src.Read(chunk)
		if n == 0 {
			return 0, err
		}
		m.win = chunk[:n]
	}
	n := copy(p, m.win)
	m.win = m.win[n:]
	return n, nil
}

func (m *mediaStream) Close() error {
	bytebufferpool.Put(m.buf)
	return m.f.Close()
}
