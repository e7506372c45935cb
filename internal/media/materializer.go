package media

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/openclaw/whatsapp-bridge-go/internal/transport"
)

// Fetcher fetches the bytes behind a media reference. The transport session
// satisfies this.
type Fetcher interface {
	DownloadMedia(ctx context.Context, ref transport.MediaRef) ([]byte, error)
}

// Materializer converts media references into inline data URIs, best effort.
// One attempt per message; on any failure the caller keeps the message
// visible with the failed flag set.
type Materializer struct {
	timeout time.Duration
}

func NewMaterializer(timeout time.Duration) *Materializer {
	return &Materializer{timeout: timeout}
}

// Materialize returns the inline payload for ref, or ok=false if the fetch
// failed. The fetcher is passed per call because sessions are replaced on
// reconnect. It never returns an error to the caller.
func (m *Materializer) Materialize(ctx context.Context, fetcher Fetcher, ref transport.MediaRef) (inline string, ok bool) {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	data, err := fetcher.DownloadMedia(ctx, ref)
	if err != nil {
		log.Warn().
			Err(err).
			Str("mediaId", ref.ID).
			Str("mimeType", ref.MimeType).
			Msg("media download failed, message kept without payload")
		return "", false
	}

	return fmt.Sprintf("data:%s;base64,%s", ref.MimeType, base64.StdEncoding.EncodeToString(data)), true
}
