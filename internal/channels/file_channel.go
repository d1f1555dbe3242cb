package channels

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/nanogate/nanogate/internal/bus"
)

// FileChannel is a filesystem-backed channel for local testing and
// scripted interaction: lines appended to inbox are treated as inbound
// messages from "local", and Send appends to outbox.
type FileChannel struct {
	BaseChannel
	InboxPath, OutboxPath string
	Logger                *zap.Logger

	mu     sync.Mutex
	offset int64
}

// NewFileChannel creates a FileChannel rooted at dir (".channels").
func NewFileChannel(dir string, maxTextLength int, logger *zap.Logger) (*FileChannel, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	fc := &FileChannel{
		BaseChannel: BaseChannel{ChannelID: "file", MaxLength: maxTextLength},
		InboxPath:   filepath.Join(dir, "file_inbox.txt"),
		OutboxPath:  filepath.Join(dir, "file_outbox.txt"),
		Logger:      logger,
	}
	if _, err := os.Stat(fc.InboxPath); os.IsNotExist(err) {
		if err := os.WriteFile(fc.InboxPath, nil, 0644); err != nil {
			return nil, err
		}
	}
	return fc, nil
}

// Poll reads any lines appended to the inbox file since the last poll and
// buffers each as an inbound message from sender "local".
func (fc *FileChannel) Poll() error {
	fc.mu.Lock()
	defer fc.mu.Unlock()

	f, err := os.Open(fc.InboxPath)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := f.Seek(fc.offset, 0); err != nil {
		return err
	}
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		fc.enqueue(bus.InboundMessage{
			Channel:   fc.ChannelID,
			Sender:    "local",
			Text:      line,
			Timestamp: time.Now().UTC(),
		})
	}
	pos, err := f.Seek(0, os.SEEK_CUR)
	if err != nil {
		return err
	}
	fc.offset = pos
	return scanner.Err()
}

// Run polls the inbox on a fixed interval until ctx is cancelled.
func (fc *FileChannel) Run(ctx context.Context) {
	ticker := time.NewTicker(PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := fc.Poll(); err != nil {
				fc.Logger.Warn("file channel poll failed", zap.Error(err))
			}
		}
	}
}

// Send appends a line to the outbox file.
func (fc *FileChannel) Send(recipient, text, _ string) error {
	f, err := os.OpenFile(fc.OutboxPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.WriteString(recipient + ": " + text + "\n")
	return err
}
