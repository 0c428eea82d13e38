package conversations

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/Vasu1712/chatcore/internal/api/respond"
	"github.com/Vasu1712/chatcore/internal/auth"
	"github.com/Vasu1712/chatcore/internal/chat"
	"github.com/Vasu1712/chatcore/internal/chaterr"
	"github.com/Vasu1712/chatcore/internal/logger"
	"github.com/Vasu1712/chatcore/internal/models"
	"github.com/Vasu1712/chatcore/internal/ws"
)

// ConversationHandler serves message logs, sends and likes.
type ConversationHandler struct {
	Service  *chat.Service
	Streamer *ws.Streamer
}

// sendResponse carries per-side index outcomes: false means that owner's
// recent-conversation entry lags until reconciliation.
type sendResponse struct {
	MessageID        string    `json:"messageId"`
	LogicalID        string    `json:"logicalId"`
	Timestamp        time.Time `json:"timestamp"`
	SenderIndexed    bool      `json:"senderIndexed"`
	RecipientIndexed bool      `json:"recipientIndexed"`
}

// partialSendResponse reports a send where only one copy was written.
type partialSendResponse struct {
	sendResponse
	SenderWritten    bool   `json:"senderWritten"`
	RecipientWritten bool   `json:"recipientWritten"`
	Error            string `json:"error"`
}

// SendMessage appends {text} from fromId to toId. A send where one copy
// failed answers 207 and says which side landed.
func (h *ConversationHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	const op = "conversations.SendMessage"
	vars := mux.Vars(r)
	fromID, toID := vars["fromId"], vars["toId"]
	if err := auth.Authorize(r.Context(), op, fromID); err != nil {
		respond.Error(w, r, err)
		return
	}

	var req struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, r, chaterr.E(chaterr.InvalidArgument, op, err))
		return
	}

	rc, err := h.Service.Send(r.Context(), fromID, toID, req.Text)
	resp := sendResponse{
		MessageID:        rc.MessageID,
		LogicalID:        rc.LogicalID,
		Timestamp:        rc.Timestamp,
		SenderIndexed:    rc.SenderIndexed,
		RecipientIndexed: rc.RecipientIndexed,
	}
	var fe *chaterr.FanoutError
	switch {
	case err == nil:
		if !rc.SenderIndexed || !rc.RecipientIndexed {
			logger.FromContext(r.Context()).Warn("send not fully indexed", "from", fromID, "to", toID, "logical_id", rc.LogicalID,
				"sender_indexed", rc.SenderIndexed, "recipient_indexed", rc.RecipientIndexed)
		}
		respond.JSON(w, http.StatusCreated, resp)
	case errors.As(err, &fe) && fe.Partial():
		logger.FromContext(r.Context()).Warn("partial send", "from", fromID, "to", toID, "logical_id", rc.LogicalID, "err", err)
		respond.JSON(w, http.StatusMultiStatus, partialSendResponse{
			sendResponse:     resp,
			SenderWritten:    fe.SenderOK(),
			RecipientWritten: fe.RecipientOK(),
			Error:            err.Error(),
		})
	default:
		respond.Error(w, r, err)
	}
}

// ListMessages returns the owner's copy of the conversation after the
// ?since= cursor, oldest first.
func (h *ConversationHandler) ListMessages(w http.ResponseWriter, r *http.Request) {
	const op = "conversations.ListMessages"
	vars := mux.Vars(r)
	ownerID, peerID := vars["ownerId"], vars["peerId"]
	if err := auth.Authorize(r.Context(), op, ownerID); err != nil {
		respond.Error(w, r, err)
		return
	}
	since, err := respond.Since(r)
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	msgs := []*models.Message{}
	for m, err := range h.Service.List(r.Context(), ownerID, peerID, since) {
		if err != nil {
			respond.Error(w, r, err)
			return
		}
		msgs = append(msgs, m)
	}
	respond.JSON(w, http.StatusOK, msgs)
}

func (h *ConversationHandler) GetMessage(w http.ResponseWriter, r *http.Request) {
	const op = "conversations.GetMessage"
	vars := mux.Vars(r)
	if err := auth.Authorize(r.Context(), op, vars["ownerId"]); err != nil {
		respond.Error(w, r, err)
		return
	}
	m, err := h.Service.Get(r.Context(), vars["ownerId"], vars["peerId"], vars["messageId"])
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, m)
}

// ToggleLike flips the caller's like on a message in the caller's log.
func (h *ConversationHandler) ToggleLike(w http.ResponseWriter, r *http.Request) {
	const op = "conversations.ToggleLike"
	vars := mux.Vars(r)
	ownerID := vars["ownerId"]
	if err := auth.Authorize(r.Context(), op, ownerID); err != nil {
		respond.Error(w, r, err)
		return
	}
	res, err := h.Service.ToggleLike(r.Context(), ownerID, vars["peerId"], vars["messageId"], ownerID)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, res)
}

// LikeStatus reports whether the caller likes the message.
func (h *ConversationHandler) LikeStatus(w http.ResponseWriter, r *http.Request) {
	const op = "conversations.LikeStatus"
	vars := mux.Vars(r)
	ownerID := vars["ownerId"]
	if err := auth.Authorize(r.Context(), op, ownerID); err != nil {
		respond.Error(w, r, err)
		return
	}
	liked, err := h.Service.IsLiked(r.Context(), ownerID, vars["peerId"], vars["messageId"], ownerID)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, map[string]bool{"liked": liked})
}

// StreamMessages upgrades to a websocket carrying the owner's copy of the
// conversation, replayed from ?since= and then live.
func (h *ConversationHandler) StreamMessages(w http.ResponseWriter, r *http.Request) {
	const op = "conversations.StreamMessages"
	vars := mux.Vars(r)
	ownerID, peerID := vars["ownerId"], vars["peerId"]
	if err := auth.Authorize(r.Context(), op, ownerID); err != nil {
		respond.Error(w, r, err)
		return
	}
	since, err := respond.Since(r)
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	sub, err := h.Service.Subscribe(ctx, models.ConversationKey(ownerID, peerID), since)
	if err != nil {
		cancel()
		respond.Error(w, r, err)
		return
	}
	h.Streamer.Serve(w, r, sub, cancel)
}
