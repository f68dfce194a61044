package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/openagora/agora/pkg/debate"
)

// commandTimeout bounds the persistence work behind one command.
const commandTimeout = 10 * time.Second

// handleCommand dispatches one observer command. Validation and
// state-conflict failures go back to the sender alone; the shared
// stream only carries events every observer should see.
func (s *Server) handleCommand(client *Client, message []byte) {
	var cmd Command
	if err := json.Unmarshal(message, &cmd); err != nil {
		s.sendError(client, "invalid command payload")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	switch cmd.Action {
	case ActionStartDebate:
		if err := s.controller.Start(ctx, client.DebateID); err != nil {
			s.sendError(client, err.Error())
		}

	case ActionHumanMessage:
		if _, err := s.controller.Inject(ctx, client.DebateID, cmd.Username, cmd.Content, cmd.MessageType); err != nil {
			s.sendError(client, err.Error())
		}

	case ActionPauseDebate:
		if err := s.controller.Pause(ctx, client.DebateID); err != nil {
			s.sendError(client, err.Error())
			return
		}
		if err := client.Send(debate.NewPauseAck(client.DebateID)); err != nil {
			s.logger.Warn().Err(err).Str("clientId", client.ID).Msg("Failed to acknowledge pause")
		}

	case ActionPing:
		if err := client.Send(debate.NewPong(client.DebateID)); err != nil {
			s.logger.Warn().Err(err).Str("clientId", client.ID).Msg("Failed to answer ping")
		}

	default:
		s.sendError(client, fmt.Sprintf("unknown command: %s", cmd.Action))
	}
}

// sendError delivers an error event to one observer only.
func (s *Server) sendError(client *Client, message string) {
	if err := client.Send(debate.NewErrorEvent(client.DebateID, message)); err != nil {
		s.logger.Warn().Err(err).Str("clientId", client.ID).Msg("Failed to send error event")
	}
}
