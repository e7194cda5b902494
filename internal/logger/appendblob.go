package logger

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/streaming"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/appendblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
)

// dateFolder lays logs out as YYYY/MM/DD/<host>.jsonl.
const dateFolder = "%d/%02d/%02d"

// An append block may not exceed 4 MiB; flush well before that.
const maxBlock = 1 << 20

type blobSinkConfig struct {
	AccountName string
	AccountKey  string
	Container   string
	BlobName    string
	FlushEvery  time.Duration
}

// appendBlobWriter batches JSON lines and appends them to one blob. Writes
// never block the caller; lines are dropped when the buffer is full.
type appendBlobWriter struct {
	appender interface {
		AppendBlock(context.Context, io.ReadSeekCloser, *appendblob.AppendBlockOptions) (appendblob.AppendBlockResponse, error)
	}
	lines      chan []byte
	flushEvery time.Duration
	dropped    atomic.Int64
	wg         sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

func blobName(now time.Time) string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "tapeview"
	}
	return fmt.Sprintf(dateFolder, now.Year(), int(now.Month()), now.Day()) + "/" + host + ".jsonl"
}

func newAppendBlobWriter(ctx context.Context, cfg blobSinkConfig) (*appendBlobWriter, error) {
	if cfg.AccountName == "" || cfg.Container == "" {
		return nil, errors.New("account name and container are required")
	}
	if cfg.BlobName == "" {
		cfg.BlobName = blobName(time.Now().UTC())
	}
	blobURL := "https://" + cfg.AccountName + ".blob.core.windows.net/" +
		url.PathEscape(cfg.Container) + "/" + cfg.BlobName

	var client *appendblob.Client
	if cfg.AccountKey != "" {
		cred, err := azblob.NewSharedKeyCredential(cfg.AccountName, cfg.AccountKey)
		if err != nil {
			return nil, err
		}
		client, err = appendblob.NewClientWithSharedKeyCredential(blobURL, cred, nil)
		if err != nil {
			return nil, err
		}
	} else {
		cred, err := azidentity.NewDefaultAzureCredential(nil)
		if err != nil {
			return nil, err
		}
		client, err = appendblob.NewClient(blobURL, cred, nil)
		if err != nil {
			return nil, err
		}
	}

	_, err := client.Create(ctx, &appendblob.CreateOptions{
		AccessConditions: &blob.AccessConditions{
			ModifiedAccessConditions: &blob.ModifiedAccessConditions{IfNoneMatch: to.Ptr(azcore.ETagAny)},
		},
	})
	if err != nil && !bloberror.HasCode(err, bloberror.BlobAlreadyExists, bloberror.ConditionNotMet) {
		return nil, fmt.Errorf("failed to create log blob %s: %w", cfg.BlobName, err)
	}

	w := newBatcher(cfg.FlushEvery)
	w.appender = client
	w.start()
	return w, nil
}

func newBatcher(flushEvery time.Duration) *appendBlobWriter {
	if flushEvery <= 0 {
		flushEvery = 2 * time.Second
	}
	return &appendBlobWriter{
		lines:      make(chan []byte, 1024),
		flushEvery: flushEvery,
	}
}

func (w *appendBlobWriter) start() {
	w.wg.Add(1)
	go w.loop()
}

// Write takes one JSON line; slog's JSON handler issues one Write per record.
// Lines written after Close are discarded.
func (w *appendBlobWriter) Write(p []byte) (int, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		return len(p), nil
	}
	select {
	case w.lines <- bytes.Clone(p):
	default:
		w.dropped.Add(1)
	}
	return len(p), nil
}

func (w *appendBlobWriter) Close() error {
	w.mu.Lock()
	if !w.closed {
		w.closed = true
		close(w.lines)
	}
	w.mu.Unlock()
	w.wg.Wait()
	return nil
}

func (w *appendBlobWriter) loop() {
	defer w.wg.Done()
	ticker := time.NewTicker(w.flushEvery)
	defer ticker.Stop()

	var buf []byte
	flush := func() {
		if len(buf) == 0 {
			return
		}
		if n := w.dropped.Swap(0); n > 0 {
			buf = fmt.Appendf(buf, "{\"level\":\"WARN\",\"msg\":\"dropped log lines\",\"count\":%d}\n", n)
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if _, err := w.appender.AppendBlock(ctx, streaming.NopCloser(bytes.NewReader(buf)), nil); err != nil {
			// stderr only; logging through slog would feed back into this sink.
			fmt.Fprintf(os.Stderr, "failed to append %d bytes of logs: %v\n", len(buf), err)
		}
		buf = buf[:0]
	}

	for {
		select {
		case line, ok := <-w.lines:
			if !ok {
				flush()
				return
			}
			buf = append(buf, line...)
			if len(buf) >= maxBlock {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}
