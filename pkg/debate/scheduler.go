package debate

import "errors"

// ErrNoActiveAgents is returned when a debate has no active participants
// left to schedule.
var ErrNoActiveAgents = errors.New("no active agents configured for this debate")

// NextSpeaker derives the next speaking agent from the message history:
// the agent immediately after the last automated speaker in position order,
// wrapping to the first. Human messages are part of the history context but
// never advance the cycle. If no automated message exists yet, the first
// active agent speaks.
//
// Deriving the pointer from history rather than carrying a mutable cursor
// keeps resumed runs consistent with what was actually persisted.
func NextSpeaker(agents []Agent, history []Message) (int, error) {
	if len(agents) == 0 {
		return 0, ErrNoActiveAgents
	}

	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Human() {
			continue
		}
		for idx, agent := range agents {
			if agent.ID == history[i].AgentID {
				return (idx + 1) % len(agents), nil
			}
		}
		// Last speaker is no longer in the active set (deactivated
		// mid-debate); fall back to the head of the cycle.
		return 0, nil
	}

	return 0, nil
}
