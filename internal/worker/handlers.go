package worker

import (
	"context"

	"github.com/blanball/backend/pkg/queue"
)

// Publisher delivers a push message on a channel.
type Publisher interface {
	Publish(ctx context.Context, channel string, msg []byte) error
}

// PushHandler hands push jobs to the push channel.
func PushHandler(pub Publisher) HandlerFunc {
	return func(ctx context.Context, job *queue.Job) error {
		var p queue.PushPayload
		if err := job.Decode(&p); err != nil {
			return err
		}
		return pub.Publish(ctx, p.Channel, p.Message)
	}
}
