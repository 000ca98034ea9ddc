package chathub

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"astrochat/backend/internal/apperr"
	"astrochat/backend/internal/models"

	"github.com/go-playground/validator/v10"
)

// Inbound operation names as they appear on the wire.
const (
	OpConversationJoin     = "conversation:join"
	OpConversationLeave    = "conversation:leave"
	OpMessageSend          = "message:send"
	OpMessageRead          = "message:read"
	OpTypingStart          = "typing:start"
	OpTypingStop           = "typing:stop"
	OpConsultationRequest  = "consultation:request"
	OpConsultationAccept   = "consultation:accept"
	OpConsultationDecline  = "consultation:decline"
	OpConsultationCancel   = "consultation:cancel"
	OpConsultationComplete = "consultation:complete"
)

// Op is a decoded inbound operation. The set is closed: decodeOp is the only
// place that maps wire names to types.
type Op interface {
	Name() string
}

type JoinConversation struct {
	UserID string `json:"userId" validate:"required"`
}

type LeaveConversation struct {
	UserID string `json:"userId" validate:"required"`
}

type SendMessage struct {
	ReceiverID string `json:"receiverId" validate:"required"`
	Message    string `json:"message"`
}

type MarkRead struct {
	SenderID string `json:"senderId" validate:"required"`
}

type Typing struct {
	UserID   string `json:"userId" validate:"required"`
	IsTyping bool   `json:"-"`
}

type RequestConsultation struct {
	AstrologerID string `json:"astrologerId" validate:"required"`
	Message      string `json:"message"`
}

type AcceptConsultation struct {
	RequestID string `json:"requestId" validate:"required"`
}

type DeclineConsultation struct {
	RequestID string `json:"requestId" validate:"required"`
	Reason    string `json:"reason"`
}

type CancelConsultation struct {
	RequestID string `json:"requestId" validate:"required"`
}

type CompleteConsultation struct {
	RequestID string `json:"requestId" validate:"required"`
}

func (JoinConversation) Name() string     { return OpConversationJoin }
func (LeaveConversation) Name() string    { return OpConversationLeave }
func (SendMessage) Name() string          { return OpMessageSend }
func (MarkRead) Name() string             { return OpMessageRead }
func (RequestConsultation) Name() string  { return OpConsultationRequest }
func (AcceptConsultation) Name() string   { return OpConsultationAccept }
func (DeclineConsultation) Name() string  { return OpConsultationDecline }
func (CancelConsultation) Name() string   { return OpConsultationCancel }
func (CompleteConsultation) Name() string { return OpConsultationComplete }

func (t Typing) Name() string {
	if t.IsTyping {
		return OpTypingStart
	}
	return OpTypingStop
}

// opUnknown labels frames whose op is not one of the names above.
const opUnknown = "unknown"

var knownOps = map[string]bool{
	OpConversationJoin:     true,
	OpConversationLeave:    true,
	OpMessageSend:          true,
	OpMessageRead:          true,
	OpTypingStart:          true,
	OpTypingStop:           true,
	OpConsultationRequest:  true,
	OpConsultationAccept:   true,
	OpConsultationDecline:  true,
	OpConsultationCancel:   true,
	OpConsultationComplete: true,
}

// opLabel maps a client-supplied op name onto the closed set used for metrics.
func opLabel(name string) string {
	if knownOps[name] {
		return name
	}
	return opUnknown
}

// rateLimited lists the ops that count against the per-identity send budget.
var rateLimited = map[string]bool{
	OpMessageSend:         true,
	OpConsultationRequest: true,
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// decodeOp turns a wire frame into a typed, validated operation.
func decodeOp(frame models.InboundFrame) (Op, error) {
	var op Op
	var err error

	switch frame.Op {
	case OpConversationJoin:
		var p JoinConversation
		p.UserID, err = decodePeer(frame.Payload)
		op = p
	case OpConversationLeave:
		var p LeaveConversation
		p.UserID, err = decodePeer(frame.Payload)
		op = p
	case OpTypingStart, OpTypingStop:
		p := Typing{IsTyping: frame.Op == OpTypingStart}
		p.UserID, err = decodePeer(frame.Payload)
		op = p
	case OpMessageSend:
		op, err = decodeInto[SendMessage](frame.Payload)
	case OpMessageRead:
		op, err = decodeInto[MarkRead](frame.Payload)
	case OpConsultationRequest:
		op, err = decodeInto[RequestConsultation](frame.Payload)
	case OpConsultationAccept:
		op, err = decodeInto[AcceptConsultation](frame.Payload)
	case OpConsultationDecline:
		op, err = decodeInto[DeclineConsultation](frame.Payload)
	case OpConsultationCancel:
		op, err = decodeInto[CancelConsultation](frame.Payload)
	case OpConsultationComplete:
		op, err = decodeInto[CompleteConsultation](frame.Payload)
	default:
		return nil, apperr.Validation(fmt.Sprintf("Unknown operation %q", frame.Op))
	}
	if err != nil {
		return nil, err
	}

	if err := validate.Struct(op); err != nil {
		return nil, validationError(err)
	}
	return op, nil
}

func decodeInto[T Op](raw json.RawMessage) (Op, error) {
	var p T
	if len(bytes.TrimSpace(raw)) == 0 {
		return p, nil
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, apperr.Validation("Malformed payload")
	}
	return p, nil
}

// decodePeer accepts either a bare JSON string or {"userId": "..."}.
func decodePeer(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return "", nil
	}
	if raw[0] == '"' {
		var id string
		if err := json.Unmarshal(raw, &id); err != nil {
			return "", apperr.Validation("Malformed payload")
		}
		return strings.TrimSpace(id), nil
	}
	var p struct {
		UserID string `json:"userId"`
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return "", apperr.Validation("Malformed payload")
	}
	return strings.TrimSpace(p.UserID), nil
}

func validationError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		if fe.Tag() == "required" {
			return apperr.Validation(fmt.Sprintf("%s is required", fe.Field()))
		}
		return apperr.Validation(fmt.Sprintf("%s is invalid", fe.Field()))
	}
	return apperr.Validation("Invalid payload")
}
