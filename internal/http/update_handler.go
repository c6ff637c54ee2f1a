package http

import (
	"cmp"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/example/facility-booking/internal/application"
	"github.com/example/facility-booking/internal/logging"
)

const maxUpdateBytes = 64 << 10

// Conversation answers one inbound chat message with the replies to send back.
type Conversation interface {
	Handle(ctx context.Context, userID, input string) ([]application.Message, error)
}

// UpdateHandler feeds inbound chat updates into the conversation dispatcher.
type UpdateHandler struct {
	conversation Conversation
	logger       *slog.Logger
	responder    responder
}

// NewUpdateHandler constructs an UpdateHandler.
func NewUpdateHandler(conversation Conversation, logger *slog.Logger) *UpdateHandler {
	logger = cmp.Or(logger, slog.Default())
	return &UpdateHandler{
		conversation: conversation,
		logger:       logger,
		responder:    newResponder(logger),
	}
}

type updateRequest struct {
	UserID string `json:"user_id"`
	Text   string `json:"text"`
}

type updateResponse struct {
	Messages []messageDTO `json:"messages"`
}

type messageDTO struct {
	Text    string      `json:"text"`
	Options []optionDTO `json:"options,omitempty"`
}

type optionDTO struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// Post handles POST /updates.
func (h *UpdateHandler) Post(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req updateRequest
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxUpdateBytes))
	if err := decoder.Decode(&req); err != nil {
		h.responder.writeError(ctx, w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	userID := strings.TrimSpace(req.UserID)
	logger := logging.FromContextOr(ctx, h.logger).With("handler", "UpdateHandler", "user_id", userID)

	messages, err := h.conversation.Handle(ctx, userID, req.Text)
	if err != nil {
		h.responder.handleDispatchError(ctx, w, err)
		return
	}

	logger.DebugContext(ctx, "update handled", "replies", len(messages))
	h.responder.writeJSON(ctx, w, http.StatusOK, toUpdateResponse(messages))
}

func toUpdateResponse(messages []application.Message) updateResponse {
	resp := updateResponse{Messages: make([]messageDTO, 0, len(messages))}
	for _, msg := range messages {
		dto := messageDTO{Text: msg.Text}
		for _, option := range msg.Options {
			dto.Options = append(dto.Options, optionDTO{Label: option.Label, Value: option.Value})
		}
		resp.Messages = append(resp.Messages, dto)
	}
	return resp
}
