package discord

import (
	"context"
	"time"

	"cafenotice/noticebot/internal/command"
	"cafenotice/noticebot/internal/crawler"
	"cafenotice/noticebot/pkg/errors"
	"cafenotice/noticebot/services/publisher"

	"github.com/bwmarrin/discordgo"
)

// NoticeEmbed builds the announcement for a newly seen post
func NoticeEmbed(post crawler.Post) *discordgo.MessageEmbed {
	title, color := "📢 새 업데이트 공지", command.ColorUpdate
	if post.Source == crawler.SourceCoupon {
		title, color = "🎁 새 쿠폰 공지", command.ColorCoupon
	}

	return &discordgo.MessageEmbed{
		Title:       title,
		Description: "**" + post.Title + "**",
		URL:         post.Link,
		Color:       color,
		Timestamp:   time.Now().Format(time.RFC3339),
	}
}

// Ready reports whether a notice channel has been resolved
func (b *Bot) Ready() bool {
	return b.ChannelID() != ""
}

// Publish posts the notice to the resolved channel. Without a channel it
// returns publisher.ErrNotReady so the post is offered again later.
func (b *Bot) Publish(ctx context.Context, post crawler.Post) error {
	channelID := b.ChannelID()
	if channelID == "" {
		return publisher.ErrNotReady
	}

	if _, err := b.api.ChannelMessageSendEmbed(channelID, NoticeEmbed(post), discordgo.WithContext(ctx)); err != nil {
		return errors.NewDelivery(post.Source, "failed to send notice embed", err)
	}

	b.log.Debug().Str("channel", channelID).Str("title", post.Title).Msg("Notice posted")
	return nil
}

// Close closes the gateway session
func (b *Bot) Close() error {
	if b.session == nil {
		return nil
	}
	return b.session.Close()
}
