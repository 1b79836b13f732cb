package queue

import (
	"errors"
	"fmt"

	"github.com/phambaophuc/image-compressor/internal/models"
)

var errChannelUnavailable = errors.New("queue channel not available")

// GetQueueStats reports the broker's view of the queue plus the workers running here.
func (q *QueueService) GetQueueStats() (map[string]interface{}, error) {
	if q.channel == nil {
		return nil, errChannelUnavailable
	}

	info, err := q.channel.QueueInspect(q.queueName)
	if err != nil {
		return nil, fmt.Errorf("failed to inspect queue %s: %w", q.queueName, err)
	}

	return map[string]interface{}{
		"name":           info.Name,
		"pending":        info.Messages,
		"consumers":      info.Consumers,
		"active_workers": q.activeWorkers.Load(),
	}, nil
}

// HealthCheck reports the broker connection state.
func (q *QueueService) HealthCheck() string {
	switch {
	case q.conn == nil || q.conn.IsClosed():
		return models.HealthUnhealthy + ": connection closed"
	case q.channel == nil:
		return models.HealthUnhealthy + ": channel not available"
	default:
		return models.HealthHealthy
	}
}
