package sink

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// Redis appends records to a stream with XADD, trimming it to roughly
// maxLen entries when maxLen is positive.
type Redis struct {
	client redis.Cmdable
	stream string
	maxLen int64
}

// NewRedis creates a Redis stream sink.
func NewRedis(client redis.Cmdable, stream string, maxLen int64) *Redis {
	return &Redis{client: client, stream: stream, maxLen: maxLen}
}

// Submit implements Sink.
func (s *Redis) Submit(ctx context.Context, rec Record) error {
	args := &redis.XAddArgs{
		Stream: s.stream,
		Values: map[string]any{
			"id":           rec.ID,
			"time":         strconv.FormatInt(rec.Time, 10),
			"kind":         string(rec.Kind),
			"report_path":  rec.ReportPath,
			"process_name": rec.ProcessName,
			"pid":          strconv.FormatInt(rec.Pid, 10),
			"uid":          strconv.FormatInt(rec.Uid, 10),
			"reason":       rec.Reason,
			"summary":      rec.Summary,
			"result_id":    strconv.FormatUint(rec.ResultID, 10),
		},
	}
	if s.maxLen > 0 {
		args.MaxLen = s.maxLen
		args.Approx = true
	}
	if err := s.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("xadd %s: %w", s.stream, err)
	}
	return nil
}
