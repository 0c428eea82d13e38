package users

import (
	"net/http"

	"github.com/gorilla/mux"
)

// RegisterUserRoutes registers profile, recent-conversation and index
// streaming routes.
func RegisterUserRoutes(r *mux.Router, handler *UserHandler) {
	r.HandleFunc("/users/{uid}", handler.PutProfile).Methods(http.MethodPost)
	r.HandleFunc("/users/{uid}", handler.GetProfile).Methods(http.MethodGet)
	r.HandleFunc("/users/{ownerId}/recent", handler.ListRecent).Methods(http.MethodGet)
	r.HandleFunc("/ws/users/{ownerId}/recent", handler.StreamRecent).Methods(http.MethodGet)
}
