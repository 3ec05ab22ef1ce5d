package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/Degefa-Gomora/evangadiForum1/internal/auth"
	"github.com/Degefa-Gomora/evangadiForum1/internal/config"
	"github.com/Degefa-Gomora/evangadiForum1/internal/domain"
	"github.com/Degefa-Gomora/evangadiForum1/internal/hub"
	"github.com/Degefa-Gomora/evangadiForum1/internal/service"
	"github.com/Degefa-Gomora/evangadiForum1/pkg/log"
)

// WebSocketHandler upgrades HTTP connections and dispatches inbound
// events onto the chat service.
type WebSocketHandler struct {
	hub      *hub.Hub
	service  service.ChatService
	verifier auth.Verifier
	wsConfig config.WebSocketConfig
	chat     config.ChatConfig
	upgrader websocket.Upgrader
}

func NewWebSocketHandler(h *hub.Hub, svc service.ChatService, verifier auth.Verifier, wsCfg config.WebSocketConfig, chatCfg config.ChatConfig) *WebSocketHandler {
	return &WebSocketHandler{
		hub:      h,
		service:  svc,
		verifier: verifier,
		wsConfig: wsCfg,
		chat:     chatCfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// Handle upgrades the connection. A `token` query parameter identifies
// the connection at handshake; without one the connection starts
// anonymous and may identify later.
func (h *WebSocketHandler) Handle(c *gin.Context) {
	var identity *domain.Identity
	if token := c.Query("token"); token != "" {
		verified, err := h.verifier.Verify(token)
		if err != nil {
			l := log.L()
			l.Warn().Err(err).Msg("handshake token rejected")
		} else {
			identity = verified
		}
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		l := log.L()
		l.Error().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := hub.NewClient(uuid.NewString(), h.hub, conn, h.wsConfig, h.chat.SendRatePerSecond, h.chat.SendBurst)
	h.hub.Register(client)

	ctx := h.connContext(client)
	h.service.HandleConnect(ctx, client, identity)

	go client.WritePump()
	go func() {
		client.ReadPump(h.dispatch)
		h.service.HandleDisconnect(h.connContext(client), client)
	}()
}

// dispatch decodes one inbound frame and routes it by event type.
func (h *WebSocketHandler) dispatch(client *hub.Client, raw []byte) {
	ctx := h.connContext(client)

	var base domain.BaseEvent
	if err := json.Unmarshal(raw, &base); err != nil {
		client.SendMessage(domain.NewErrorEvent(domain.ErrCodeValidation, "malformed event"))
		return
	}

	switch base.Type {
	case domain.EventIdentify:
		var evt domain.IdentifyEvent
		if !h.decode(client, raw, &evt) {
			return
		}
		h.service.HandleIdentify(ctx, client, evt.Token)

	case domain.EventJoinRoom:
		var evt domain.JoinRoomEvent
		if !h.decode(client, raw, &evt) {
			return
		}
		h.service.HandleJoinRoom(ctx, client, evt.RoomID)

	case domain.EventLeaveRoom:
		var evt domain.LeaveRoomEvent
		if !h.decode(client, raw, &evt) {
			return
		}
		h.service.HandleLeaveRoom(ctx, client, evt.RoomID)

	case domain.EventFetchHistory:
		var evt domain.FetchHistoryEvent
		if !h.decode(client, raw, &evt) {
			return
		}
		h.service.HandleFetchHistory(ctx, client, evt.RoomID, evt.TargetUserID)

	case domain.EventSendText:
		var evt domain.SendTextEvent
		if !h.decode(client, raw, &evt) {
			return
		}
		h.service.HandleSendText(ctx, client, &evt)

	case domain.EventSendFile:
		var evt domain.SendFileEvent
		if !h.decode(client, raw, &evt) {
			return
		}
		h.service.HandleSendFile(ctx, client, &evt)

	case domain.EventSendVoice:
		var evt domain.SendVoiceEvent
		if !h.decode(client, raw, &evt) {
			return
		}
		h.service.HandleSendVoice(ctx, client, &evt)

	case domain.EventEditMessage:
		var evt domain.EditMessageEvent
		if !h.decode(client, raw, &evt) {
			return
		}
		h.service.HandleEditMessage(ctx, client, evt.MessageID, evt.NewText)

	case domain.EventDeleteMessage:
		var evt domain.DeleteMessageEvent
		if !h.decode(client, raw, &evt) {
			return
		}
		h.service.HandleDeleteMessage(ctx, client, evt.MessageID)

	case domain.EventReactMessage:
		var evt domain.ReactMessageEvent
		if !h.decode(client, raw, &evt) {
			return
		}
		h.service.HandleReactMessage(ctx, client, evt.MessageID, evt.Symbol)

	case domain.EventTyping:
		var evt domain.TypingEvent
		if !h.decode(client, raw, &evt) {
			return
		}
		h.service.HandleTyping(ctx, client, evt.RoomID, evt.RecipientID)

	case domain.EventStopTyping:
		var evt domain.TypingEvent
		if !h.decode(client, raw, &evt) {
			return
		}
		h.service.HandleStopTyping(ctx, client, evt.RoomID, evt.RecipientID)

	case domain.EventListUsers:
		h.service.HandleListUsers(ctx, client)

	case domain.EventPing:
		h.service.HandlePing(ctx, client)

	default:
		client.SendMessage(domain.NewErrorEvent(domain.ErrCodeValidation, "unknown event type: "+base.Type))
	}
}

func (h *WebSocketHandler) decode(client *hub.Client, raw []byte, evt interface{}) bool {
	if err := json.Unmarshal(raw, evt); err != nil {
		client.SendMessage(domain.NewErrorEvent(domain.ErrCodeValidation, "malformed event payload"))
		return false
	}
	return true
}

func (h *WebSocketHandler) connContext(client *hub.Client) context.Context {
	return log.WithConnection(context.Background(), client.ID())
}
