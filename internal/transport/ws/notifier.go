package ws

import (
	"github.com/google/uuid"
	"chatrelay-backend/internal/domain"
)

// The Gateway itself implements service.Broadcaster: the message service
// hands it fully materialized messages after each successful commit.

func (g *Gateway) BroadcastMessageCreated(msg *domain.Message) {
	evt, err := NewEvent(EventNewMessage, msg)
	if err != nil {
		g.log.Errorw("marshal newMessage event", "err", err)
		return
	}
	g.broadcastEvent(msg.ChannelID, evt)
}

func (g *Gateway) BroadcastMessageDeleted(channelID, messageID uuid.UUID) {
	evt, err := NewEvent(EventDeletedMessage, DeletedMessagePayload{
		MessageID: messageID,
		ChannelID: channelID,
	})
	if err != nil {
		g.log.Errorw("marshal deletedMessage event", "err", err)
		return
	}
	g.broadcastEvent(channelID, evt)
}
