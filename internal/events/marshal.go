package events

import "encoding/json"

// MarshalJSON flattens the envelope's Kind-specific payload fields
// alongside type/conversation_id/sequence/time into a single wire object,
// matching the flat envelope shape clients expect (no nested "payload"
// key per envelope type).
func (e Envelope) MarshalJSON() ([]byte, error) {
	base := map[string]interface{}{
		"type":     e.Type,
		"sequence": e.Sequence,
		"time":     e.Time,
	}
	if e.ConversationID != 0 {
		base["conversation_id"] = e.ConversationID
	}

	merge := func(payload interface{}) error {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		var fields map[string]interface{}
		if err := json.Unmarshal(encoded, &fields); err != nil {
			return err
		}
		for k, v := range fields {
			base[k] = v
		}
		return nil
	}

	var err error
	switch e.Type {
	case KindConversationCreated:
		if e.ConversationCreated != nil {
			err = merge(e.ConversationCreated)
		}
	case KindMessage:
		if e.Message != nil {
			err = merge(e.Message)
		}
	case KindMessagePart:
		if e.MessagePart != nil {
			err = merge(e.MessagePart)
		}
	case KindNodeAdded:
		if e.NodeAdded != nil {
			err = merge(e.NodeAdded)
		}
	case KindTextChunk:
		if e.TextChunk != nil {
			err = merge(e.TextChunk)
		}
	case KindToolStart:
		if e.ToolStart != nil {
			err = merge(e.ToolStart)
		}
	case KindToolComplete:
		if e.ToolComplete != nil {
			err = merge(e.ToolComplete)
		}
	case KindMessageComplete:
		if e.MessageComplete != nil {
			err = merge(e.MessageComplete)
		}
	case KindError:
		if e.Error != nil {
			err = merge(e.Error)
		}
	}
	if err != nil {
		return nil, err
	}

	return json.Marshal(base)
}
