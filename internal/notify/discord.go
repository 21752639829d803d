package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/dvloznov/spend-insights/internal/domain"
	"github.com/rs/zerolog"
)

// discordMessageLimit is the longest message Discord accepts.
const discordMessageLimit = 2000

type channelSender interface {
	ChannelMessageSend(channelID string, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// DiscordNotifier posts anomaly alerts to a Discord channel.
type DiscordNotifier struct {
	sender    channelSender
	channelID string
	log       zerolog.Logger
}

// NewDiscordNotifier creates a notifier using a bot token. Messages go over
// the REST API so no gateway connection is opened.
func NewDiscordNotifier(token, channelID string, log zerolog.Logger) (*DiscordNotifier, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("failed to create Discord session: %w", err)
	}
	return &DiscordNotifier{sender: session, channelID: channelID, log: log}, nil
}

// NotifyAnomalies implements Notifier.
func (d *DiscordNotifier) NotifyAnomalies(ctx context.Context, userID string, anomalies []domain.AnomalyFinding) error {
	if len(anomalies) == 0 {
		return nil
	}

	for _, chunk := range splitMessage(Body(userID, anomalies), discordMessageLimit) {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := d.sender.ChannelMessageSend(d.channelID, chunk, discordgo.WithContext(ctx)); err != nil {
			return fmt.Errorf("discord: send to channel %s: %w", d.channelID, err)
		}
	}

	d.log.Info().Str("user_id", userID).Int("anomalies", len(anomalies)).Msg("Posted anomaly alert to Discord")
	return nil
}

// splitMessage breaks text on line boundaries into pieces no longer than
// limit. A single overlong line is cut hard.
func splitMessage(text string, limit int) []string {
	var chunks []string
	var current strings.Builder

	flush := func() {
		if current.Len() > 0 {
			chunks = append(chunks, current.String())
			current.Reset()
		}
	}

	for _, line := range strings.Split(text, "\n") {
		for len(line) > limit {
			flush()
			chunks = append(chunks, line[:limit])
			line = line[limit:]
		}
		if current.Len() > 0 && current.Len()+1+len(line) > limit {
			flush()
		}
		if current.Len() > 0 {
			current.WriteByte('\n')
		}
		current.WriteString(line)
	}
	flush()
	return chunks
}

var _ Notifier = (*DiscordNotifier)(nil)
