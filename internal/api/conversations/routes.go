package conversations

import (
	"net/http"

	"github.com/gorilla/mux"
)

// RegisterConversationRoutes registers message, like and conversation
// streaming routes.
func RegisterConversationRoutes(r *mux.Router, handler *ConversationHandler) {
	r.HandleFunc("/conversations/{fromId}/{toId}/messages", handler.SendMessage).Methods(http.MethodPost)
	r.HandleFunc("/conversations/{ownerId}/{peerId}/messages", handler.ListMessages).Methods(http.MethodGet)
	r.HandleFunc("/conversations/{ownerId}/{peerId}/messages/{messageId}", handler.GetMessage).Methods(http.MethodGet)
	r.HandleFunc("/conversations/{ownerId}/{peerId}/messages/{messageId}/like", handler.ToggleLike).Methods(http.MethodPost)
	r.HandleFunc("/conversations/{ownerId}/{peerId}/messages/{messageId}/like", handler.LikeStatus).Methods(http.MethodGet)
	r.HandleFunc("/ws/conversations/{ownerId}/{peerId}", handler.StreamMessages).Methods(http.MethodGet)
}
