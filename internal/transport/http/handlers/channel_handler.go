package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"chatrelay-backend/internal/service"
	"chatrelay-backend/internal/transport/http/middleware"
	"chatrelay-backend/pkg/validator"
)

type ChannelHandler struct {
	channelService *service.ChannelService
	log            *zap.SugaredLogger
}

func NewChannelHandler(channelService *service.ChannelService, log *zap.SugaredLogger) *ChannelHandler {
	return &ChannelHandler{channelService: channelService, log: log}
}

func (h *ChannelHandler) Create(w http.ResponseWriter, r *http.Request) {
	ident := middleware.GetIdentity(r.Context())

	var input service.CreateChannelInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	if errs := validator.Struct(input); errs.HasErrors() {
		writeValidationErrors(w, errs)
		return
	}

	ch, err := h.channelService.Create(r.Context(), ident, input)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrChannelNameTaken):
			writeError(w, http.StatusConflict, "NAME_TAKEN", "Channel name already exists")
		case errors.Is(err, service.ErrDMWithSelf):
			writeError(w, http.StatusBadRequest, "INVALID_RECIPIENT", "A direct channel needs a distinct recipient")
		case errors.Is(err, service.ErrUserNotFound):
			writeError(w, http.StatusNotFound, "NOT_FOUND", "Recipient not found")
		default:
			h.log.Errorw("create channel failed", "err", err)
			writeError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong")
		}
		return
	}

	writeJSON(w, http.StatusCreated, ch)
}

func (h *ChannelHandler) List(w http.ResponseWriter, r *http.Request) {
	channels, err := h.channelService.List(r.Context())
	if err != nil {
		h.log.Errorw("list channels failed", "err", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong")
		return
	}
	writeJSON(w, http.StatusOK, channels)
}

func (h *ChannelHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	ident := middleware.GetIdentity(r.Context())

	channels, err := h.channelService.ListMine(r.Context(), ident)
	if err != nil {
		h.log.Errorw("list my channels failed", "err", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong")
		return
	}
	writeJSON(w, http.StatusOK, channels)
}

func (h *ChannelHandler) Get(w http.ResponseWriter, r *http.Request) {
	channelID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "Invalid channel ID")
		return
	}

	ch, err := h.channelService.GetByID(r.Context(), channelID)
	if err != nil {
		if errors.Is(err, service.ErrChannelNotFound) {
			writeError(w, http.StatusNotFound, "NOT_FOUND", "Channel not found")
		} else {
			h.log.Errorw("get channel failed", "err", err)
			writeError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong")
		}
		return
	}

	writeJSON(w, http.StatusOK, ch)
}

func (h *ChannelHandler) ListMembers(w http.ResponseWriter, r *http.Request) {
	channelID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "Invalid channel ID")
		return
	}

	members, err := h.channelService.ListMembers(r.Context(), channelID)
	if err != nil {
		if errors.Is(err, service.ErrChannelNotFound) {
			writeError(w, http.StatusNotFound, "NOT_FOUND", "Channel not found")
		} else {
			h.log.Errorw("list members failed", "err", err)
			writeError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong")
		}
		return
	}

	writeJSON(w, http.StatusOK, members)
}

func (h *ChannelHandler) Join(w http.ResponseWriter, r *http.Request) {
	ident := middleware.GetIdentity(r.Context())
	channelID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "Invalid channel ID")
		return
	}

	var input service.JoinChannelInput
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
			return
		}
	}

	if err := h.channelService.Join(r.Context(), ident, channelID, input); err != nil {
		switch {
		case errors.Is(err, service.ErrChannelNotFound):
			writeError(w, http.StatusNotFound, "NOT_FOUND", "Channel not found")
		case errors.Is(err, service.ErrUserNotFound):
			writeError(w, http.StatusNotFound, "NOT_FOUND", "User not found")
		case errors.Is(err, service.ErrAlreadyMember):
			writeError(w, http.StatusConflict, "ALREADY_MEMBER", "You are already a member of this channel")
		case errors.Is(err, service.ErrWrongPassword):
			writeError(w, http.StatusUnauthorized, "WRONG_PASSWORD", "Wrong channel password")
		case errors.Is(err, service.ErrChannelLocked):
			writeError(w, http.StatusForbidden, "FORBIDDEN", "This channel cannot be joined")
		default:
			h.log.Errorw("join channel failed", "err", err)
			writeError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong")
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *ChannelHandler) Leave(w http.ResponseWriter, r *http.Request) {
	ident := middleware.GetIdentity(r.Context())
	channelID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "Invalid channel ID")
		return
	}

	if err := h.channelService.Leave(r.Context(), ident, channelID); err != nil {
		switch {
		case errors.Is(err, service.ErrChannelNotFound):
			writeError(w, http.StatusNotFound, "NOT_FOUND", "Channel not found")
		case errors.Is(err, service.ErrNotMember):
			// Leaving a channel you never joined is a client error, unlike
			// the gateway's tolerant unsubscribe.
			writeError(w, http.StatusBadRequest, "NOT_MEMBER", "You are not a member of this channel")
		default:
			h.log.Errorw("leave channel failed", "err", err)
			writeError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong")
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *ChannelHandler) Update(w http.ResponseWriter, r *http.Request) {
	ident := middleware.GetIdentity(r.Context())
	channelID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "Invalid channel ID")
		return
	}

	var input service.UpdateChannelInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	if errs := validator.Struct(input); errs.HasErrors() {
		writeValidationErrors(w, errs)
		return
	}

	ch, err := h.channelService.Update(r.Context(), ident, channelID, input)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrChannelNotFound):
			writeError(w, http.StatusNotFound, "NOT_FOUND", "Channel not found")
		case errors.Is(err, service.ErrNotCreator):
			writeError(w, http.StatusForbidden, "FORBIDDEN", "Only the channel creator can update it")
		case errors.Is(err, service.ErrChannelNameTaken):
			writeError(w, http.StatusConflict, "NAME_TAKEN", "Channel name already exists")
		default:
			h.log.Errorw("update channel failed", "err", err)
			writeError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong")
		}
		return
	}

	writeJSON(w, http.StatusOK, ch)
}

func (h *ChannelHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ident := middleware.GetIdentity(r.Context())
	channelID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "Invalid channel ID")
		return
	}

	if err := h.channelService.Delete(r.Context(), ident, channelID); err != nil {
		switch {
		case errors.Is(err, service.ErrChannelNotFound):
			writeError(w, http.StatusNotFound, "NOT_FOUND", "Channel not found")
		case errors.Is(err, service.ErrNotCreator):
			writeError(w, http.StatusForbidden, "FORBIDDEN", "Only the channel creator can delete it")
		default:
			h.log.Errorw("delete channel failed", "err", err)
			writeError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong")
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
