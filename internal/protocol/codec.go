package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"

	apperrors "classroom_chat/pkg/errors"
)

// Envelope - формат кадра на проводе: {"type": "...", "payload": {...}}
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

func encode(kind string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", kind, err)
	}
	return json.Marshal(Envelope{Type: kind, Payload: raw})
}

func EncodeEvent(ev Event) ([]byte, error) {
	return encode(ev.EventType(), ev)
}

func EncodeIntent(in Intent) ([]byte, error) {
	return encode(in.IntentType(), in)
}

func unwrap(data []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: malformed frame: %v", apperrors.ErrValidation, err)
	}
	if env.Type == "" {
		return nil, fmt.Errorf("%w: frame type is missing", apperrors.ErrValidation)
	}
	return &env, nil
}

func decodePayload[T any](env *Envelope) (T, error) {
	var v T
	raw := bytes.TrimSpace(env.Payload)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return v, nil
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, fmt.Errorf("%w: invalid %s payload: %v", apperrors.ErrValidation, env.Type, err)
	}
	return v, nil
}

// DecodeIntent разбирает и проверяет входящий кадр клиента с лимитами по умолчанию
func DecodeIntent(data []byte) (Intent, error) {
	return defaultValidator.DecodeIntent(data)
}

// DecodeIntent разбирает кадр и проверяет поля намерения
func (v *Validator) DecodeIntent(data []byte) (Intent, error) {
	in, err := decodeIntent(data)
	if err != nil {
		return nil, err
	}
	if _, ok := in.(Ping); ok {
		return in, nil
	}
	if err := v.Struct(in); err != nil {
		return nil, err
	}
	return in, nil
}

func decodeIntent(data []byte) (Intent, error) {
	env, err := unwrap(data)
	if err != nil {
		return nil, err
	}

	switch env.Type {
	case IntentDirectMessage:
		return decodePayload[DirectMessage](env)
	case IntentGroupMessage:
		return decodePayload[GroupMessage](env)
	case IntentCreateGroup:
		return decodePayload[CreateGroup](env)
	case IntentAddGroupMembers:
		return decodePayload[AddGroupMembers](env)
	case IntentRemoveGroupMembers:
		return decodePayload[RemoveGroupMembers](env)
	case IntentAddCourseStudents:
		return decodePayload[AddCourseStudents](env)
	case IntentGetMessages:
		return decodePayload[GetMessages](env)
	case IntentTypingStart:
		return decodePayload[TypingStart](env)
	case IntentTypingStop:
		return decodePayload[TypingStop](env)
	case IntentMarkRead:
		return decodePayload[MarkRead](env)
	case IntentPing:
		return Ping{}, nil
	default:
		return nil, fmt.Errorf("%w: unknown intent type %q", apperrors.ErrValidation, env.Type)
	}
}

// DecodeEvent разбирает кадр сервера, используется клиентом
func DecodeEvent(data []byte) (Event, error) {
	env, err := unwrap(data)
	if err != nil {
		return nil, err
	}

	switch env.Type {
	case EventConnected:
		return decodePayload[Connected](env)
	case EventNewMessage:
		return decodePayload[NewMessage](env)
	case EventMessageHistory:
		return decodePayload[MessageHistory](env)
	case EventUserTyping:
		return decodePayload[UserTyping](env)
	case EventUserStoppedTyping:
		return decodePayload[UserStoppedTyping](env)
	case EventGroupJoined:
		return decodePayload[GroupJoined](env)
	case EventGroupCreated:
		return decodePayload[GroupCreated](env)
	case EventGroupUpdated:
		return decodePayload[GroupUpdated](env)
	case EventGroupLeft:
		return decodePayload[GroupLeft](env)
	case EventUserOnline:
		return decodePayload[UserOnline](env)
	case EventUserOffline:
		return decodePayload[UserOffline](env)
	case EventReadReceipt:
		return decodePayload[ReadReceipt](env)
	case EventError:
		return decodePayload[Error](env)
	case EventPong:
		return Pong{}, nil
	default:
		return nil, fmt.Errorf("%w: unknown event type %q", apperrors.ErrValidation, env.Type)
	}
}

// NewError строит событие error из ошибки сервиса
func NewError(err error) Error {
	return Error{
		Message:   apperrors.PublicMessage(err),
		Code:      apperrors.Code(err),
		Retryable: apperrors.Retryable(err),
	}
}
