package users

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/Vasu1712/chatcore/internal/api/respond"
	"github.com/Vasu1712/chatcore/internal/auth"
	"github.com/Vasu1712/chatcore/internal/chat"
	"github.com/Vasu1712/chatcore/internal/chaterr"
	"github.com/Vasu1712/chatcore/internal/models"
	"github.com/Vasu1712/chatcore/internal/ws"
)

// UserHandler serves profiles and the recent-conversation index.
type UserHandler struct {
	Service  *chat.Service
	Streamer *ws.Streamer
}

// PutProfile stores the caller's profile. It expects a JSON body with
// "email" and "profileImageUrl".
func (h *UserHandler) PutProfile(w http.ResponseWriter, r *http.Request) {
	const op = "users.PutProfile"
	uid := mux.Vars(r)["uid"]
	if err := auth.Authorize(r.Context(), op, uid); err != nil {
		respond.Error(w, r, err)
		return
	}

	var req struct {
		Email           string `json:"email"`
		ProfileImageURL string `json:"profileImageUrl"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, r, chaterr.E(chaterr.InvalidArgument, op, err))
		return
	}

	user, err := h.Service.PutUser(r.Context(), models.User{
		UID:             uid,
		Email:           req.Email,
		ProfileImageURL: req.ProfileImageURL,
	})
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, user)
}

// GetProfile returns any user's profile to an authenticated caller.
func (h *UserHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	user, err := h.Service.GetUser(r.Context(), mux.Vars(r)["uid"])
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, user)
}

// ListRecent returns the owner's conversations, most recent first. With
// ?since= only entries updated after that index cursor are returned.
func (h *UserHandler) ListRecent(w http.ResponseWriter, r *http.Request) {
	const op = "users.ListRecent"
	ownerID := mux.Vars(r)["ownerId"]
	if err := auth.Authorize(r.Context(), op, ownerID); err != nil {
		respond.Error(w, r, err)
		return
	}
	since, err := respond.Since(r)
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	entries, err := h.Service.ListRecent(r.Context(), ownerID, since)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	if entries == nil {
		entries = []models.RecentConversationEntry{}
	}
	respond.JSON(w, http.StatusOK, entries)
}

// StreamRecent upgrades to a websocket carrying the owner's index updates.
func (h *UserHandler) StreamRecent(w http.ResponseWriter, r *http.Request) {
	const op = "users.StreamRecent"
	ownerID := mux.Vars(r)["ownerId"]
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
	sub, err := h.Service.Subscribe(ctx, models.IndexKey(ownerID), since)
	if err != nil {
		cancel()
		respond.Error(w, r, err)
		return
	}
	h.Streamer.Serve(w, r, sub, cancel)
}
