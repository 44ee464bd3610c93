package publisher

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"math/rand"
	"strconv"

	"cafenotice/noticebot/internal/crawler"
	"cafenotice/noticebot/logger"
	"cafenotice/noticebot/pkg/errors"

	"github.com/redis/go-redis/v9"
)

// RedisPublisher mirrors delivered posts into Redis streams
type RedisPublisher struct {
	client          *redis.Client
	streamPrefix    string
	streamCount     int
	streamMaxLength int
	log             *logger.Logger
}

// NewRedisPublisher creates a new Redis publisher on an existing client
func NewRedisPublisher(client *redis.Client, streamPrefix string, streamCount int, streamMaxLength int) *RedisPublisher {
	if streamCount <= 0 {
		streamCount = 1
	}
	return &RedisPublisher{
		client:          client,
		streamPrefix:    streamPrefix,
		streamCount:     streamCount,
		streamMaxLength: streamMaxLength,
		log:             logger.ForPublisher("redis"),
	}
}

// Publish publishes a post to one of the Redis streams.
// The JSON payload is base64 encoded and stored under the post's source name.
func (p *RedisPublisher) Publish(ctx context.Context, post crawler.Post) error {
	data, err := json.Marshal(post)
	if err != nil {
		return errors.NewDelivery(post.Source, "failed to encode post", err)
	}
	encodedMessage := base64.StdEncoding.EncodeToString(data)

	// if streamCount is 10, stream name will be stream:0 ~ stream:9
	stream := p.streamPrefix + ":" + strconv.Itoa(rand.Intn(p.streamCount))

	err = p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		Values: map[string]interface{}{
			post.Source: encodedMessage,
		},
	}).Err()
	if err != nil {
		p.log.Error().Err(err).Str("stream", stream).Str("title", post.Title).Msg("XADD failed")
		return errors.NewDelivery(post.Source, "failed to add to "+stream, err)
	}

	p.log.Debug().Str("stream", stream).Str("title", post.Title).Msg("Post mirrored")
	return nil
}

// TrimStreams trims all streams to the configured maximum length
func (p *RedisPublisher) TrimStreams(ctx context.Context) error {
	if p.streamMaxLength <= 0 {
		return nil
	}

	for i := 0; i < p.streamCount; i++ {
		stream := p.streamPrefix + ":" + strconv.Itoa(i)
		if err := p.client.XTrimMaxLen(ctx, stream, int64(p.streamMaxLength)).Err(); err != nil {
			p.log.Warn().Err(err).Str("stream", stream).Msg("Stream trim failed")
			return err
		}
	}

	return nil
}

// Close is a no-op; the client is owned by whoever created it
func (p *RedisPublisher) Close() error {
	return nil
}
