package media

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openclaw/whatsapp-bridge-go/internal/transport"
)

type stubFetcher struct {
	data  []byte
	err   error
	delay time.Duration
}

func (f *stubFetcher) DownloadMedia(ctx context.Context, ref transport.MediaRef) ([]byte, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.data, f.err
}

func TestMaterializeBuildsDataURI(t *testing.T) {
	m := NewMaterializer(time.Second)
	fetcher := &stubFetcher{data: []byte("image-bytes")}

	inline, ok := m.Materialize(context.Background(), fetcher, transport.MediaRef{ID: "m1", MimeType: "image/jpeg"})
	require.True(t, ok)
	assert.Equal(t, "data:image/jpeg;base64,"+base64.StdEncoding.EncodeToString([]byte("image-bytes")), inline)
}

func TestMaterializeFetchFailure(t *testing.T) {
	m := NewMaterializer(time.Second)
	fetcher := &stubFetcher{err: errors.New("expired media key")}

	inline, ok := m.Materialize(context.Background(), fetcher, transport.MediaRef{ID: "m1", MimeType: "image/jpeg"})
	assert.False(t, ok)
	assert.Empty(t, inline)
}

func TestMaterializeTimesOut(t *testing.T) {
	m := NewMaterializer(20 * time.Millisecond)
	fetcher := &stubFetcher{data: []byte("x"), delay: time.Second}

	start := time.Now()
	_, ok := m.Materialize(context.Background(), fetcher, transport.MediaRef{ID: "m1", MimeType: "video/mp4"})
	assert.False(t, ok)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}
