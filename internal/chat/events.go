package chat

import (
	"github.com/mitchellh/mapstructure"
	"github.com/talkincode/wadesk/internal/domain"
)

// Client to server events
const (
	EventMessageSend       = "message:send"
	EventConversationClose = "conversation:close"
	EventRatingNew         = "rating:new"
	EventTypingStart       = "typing:start"
	EventTypingStop        = "typing:stop"
	EventMessageRead       = "message:read"
)

// Server to client events
const (
	EventMessageNew            = "message:new"
	EventConversationClosed    = "conversation:closed"
	EventConversationCloseOK   = "conversation:close:success"
	EventConversationTyping    = "conversation:typing"
	EventNotificationLowRating = "notification:low-rating"
	EventError                 = "error"
	EventConnected             = "connected"
)

const (
	lowRatingThreshold    = 2
	defaultMessageType    = "text"
	internalMessagePrefix = "internal_"
)

// Frame is the envelope used in both directions
type Frame struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

type inboundFrame struct {
	Event string                 `json:"event"`
	Data  map[string]interface{} `json:"data"`
}

type SendInput struct {
	ConversationID int64   `mapstructure:"conversationId"`
	Type           string  `mapstructure:"type"`
	Content        string  `mapstructure:"content"`
	MediaID        *string `mapstructure:"mediaId"`
	ReplyTo        *string `mapstructure:"replyTo"`
	IsInternal     bool    `mapstructure:"isInternal"`
}

type CloseInput struct {
	ConversationID int64 `mapstructure:"conversationId"`
	InstanceID     int64 `mapstructure:"instanceId"`
}

type RatingInput struct {
	Rating         int    `mapstructure:"rating"`
	ConversationID int64  `mapstructure:"conversationId"`
	AgentID        *int64 `mapstructure:"agentId"`
	Comment        string `mapstructure:"comment"`
}

type ConversationRef struct {
	ConversationID int64 `mapstructure:"conversationId"`
}

// RatingEvent is published on the event bus when a customer answers a
// rating link, and handled like the socket event.
type RatingEvent struct {
	TenantID       int64
	ConversationID int64
	AgentID        *int64
	Rating         int
	Comment        string
}

type messageNewData struct {
	ConversationID int64           `json:"conversationId,string"`
	InstanceID     int64           `json:"instanceId,string"`
	Ref            string          `json:"ref"`
	Message        *domain.Message `json:"message"`
}

type closedData struct {
	ConversationID int64  `json:"conversationId,string"`
	InstanceID     int64  `json:"instanceId,string"`
	ClosedBy       int64  `json:"closedBy,string"`
	ClosedAt       string `json:"closedAt"`
	RatingSent     bool   `json:"ratingSent"`
}

type typingData struct {
	ConversationID int64  `json:"conversationId,string"`
	UserID         int64  `json:"userId,string"`
	Username       string `json:"username"`
	Typing         bool   `json:"typing"`
}

type lowRatingData struct {
	ConversationID int64  `json:"conversationId,string"`
	AgentID        *int64 `json:"agentId,string,omitempty"`
	Rating         int    `json:"rating"`
	Comment        string `json:"comment,omitempty"`
}

type errorData struct {
	Message string `json:"message"`
}

// decodeData maps a loosely typed event payload onto dst. Ids may arrive as
// JSON numbers or strings.
func decodeData(data map[string]interface{}, dst interface{}) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           dst,
	})
	if err != nil {
		return err
	}
	return dec.Decode(data)
}
