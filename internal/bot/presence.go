package bot

import (
	"fmt"
	"time"
)

const presenceUpdateInterval = 60 * time.Second

func (b *Bot) startPresenceUpdater() {
	if b.presenceStop != nil {
		return
	}
	b.presenceStop = make(chan struct{})
	stop := b.presenceStop
	go func() {
		ticker := time.NewTicker(presenceUpdateInterval)
		defer ticker.Stop()

		b.updatePresence()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				b.updatePresence()
			}
		}
	}()
}

func (b *Bot) stopPresenceUpdater() {
	if b.presenceStop == nil {
		return
	}
	close(b.presenceStop)
	b.presenceStop = nil
}

func presenceStatus(shardID, guilds, playing int) string {
	status := fmt.Sprintf("shard #%d · %d servers", max(1, shardID+1), guilds)
	if playing > 0 {
		status += fmt.Sprintf(" · %d playing", playing)
	}
	return status
}

func (b *Bot) updatePresence() {
	playing := b.manager.Playing()
	for _, s := range b.sessions {
		guildCount := 0
		if s.State != nil {
			guildCount = len(s.State.Guilds)
		}

		if err := s.UpdateGameStatus(0, presenceStatus(s.ShardID, guildCount, playing)); err != nil {
			b.log.Debug().Err(err).Int("shard", s.ShardID).Msg("failed to update presence")
		}
	}
}
