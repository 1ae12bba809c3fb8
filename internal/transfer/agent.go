package transfer

import (
	"context"
	"os"

	log "github.com/sirupsen/logrus"

	"github.com/studio1767/pgdelta/internal/s3io"
)

// Agent drains a transfer queue, pushing finished chunk files to storage
// and signaling each operation's callback queue when done. Chunks arrive
// already compressed and encrypted, so they go up as raw bytes.
type Agent struct {
	client s3io.Client
	queue  Queue
}

func NewAgent(client s3io.Client, queue Queue) *Agent {
	return &Agent{
		client: client,
		queue:  queue,
	}
}

func (a *Agent) Serve(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case op, ok := <-a.queue:
			if !ok {
				return
			}
			a.process(op)
		}
	}
}

func (a *Agent) process(op *Operation) {
	_, err := a.client.UploadFile(op.Key, op.LocalPath)

	if op.RemoveAfter {
		if rerr := os.Remove(op.LocalPath); rerr != nil {
			log.WithFields(log.Fields{
				"path": op.LocalPath,
			}).WithError(rerr).Warning("failed to remove chunk file")
		}
	}

	if err != nil {
		log.WithFields(log.Fields{
			"key": op.Key,
		}).WithError(err).Error("chunk transfer failed")
	}

	op.Callback.Put(CallbackEvent{
		Success: err == nil,
		Err:     err,
	})
}
