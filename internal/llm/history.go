package llm

import "strings"

// Exchange is one completed user/assistant round of a conversation.
// Sessions store these and agents replay them as model context.
type Exchange struct {
	User      string `json:"user"`
	Assistant string `json:"assistant"`
}

// Complete reports whether both sides of the exchange carry text. The
// in-flight exchange has no assistant reply yet and must not be
// replayed as a finished round.
func (e Exchange) Complete() bool {
	return strings.TrimSpace(e.User) != "" && strings.TrimSpace(e.Assistant) != ""
}

// TurnsFromExchanges renders exchanges as replayable turns in
// conversation order, dropping incomplete rounds.
func TurnsFromExchanges(exchanges []Exchange) []Turn {
	turns := make([]Turn, 0, len(exchanges)*2)
	for _, ex := range exchanges {
		if !ex.Complete() {
			continue
		}
		turns = append(turns,
			Turn{Role: RoleUser, Text: ex.User},
			Turn{Role: RoleModel, Text: ex.Assistant},
		)
	}
	return turns
}
