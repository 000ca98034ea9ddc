package chathub

import (
	"encoding/json"
	"testing"
	"time"

	"astrochat/backend/internal/apperr"
	"astrochat/backend/internal/models"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeOp(t *testing.T) {
	tests := []struct {
		name    string
		op      string
		payload string
		want    Op
		wantErr string
	}{
		{"join bare string", OpConversationJoin, `" u2 "`, JoinConversation{UserID: "u2"}, ""},
		{"join object", OpConversationJoin, `{"userId":"u2"}`, JoinConversation{UserID: "u2"}, ""},
		{"join empty", OpConversationJoin, ``, nil, "userId is required"},
		{"typing start", OpTypingStart, `"u2"`, Typing{UserID: "u2", IsTyping: true}, ""},
		{"typing stop", OpTypingStop, `{"userId":"u2"}`, Typing{UserID: "u2"}, ""},
		{"send", OpMessageSend, `{"receiverId":"u2","message":"hi"}`, SendMessage{ReceiverID: "u2", Message: "hi"}, ""},
		{"send missing receiver", OpMessageSend, `{"message":"hi"}`, nil, "receiverId is required"},
		{"send malformed", OpMessageSend, `"u2"`, nil, "Malformed payload"},
		{"decline", OpConsultationDecline, `{"requestId":"r1","reason":"busy"}`, DeclineConsultation{RequestID: "r1", Reason: "busy"}, ""},
		{"accept missing id", OpConsultationAccept, `{}`, nil, "requestId is required"},
		{"unknown", "consultation:teleport", `{}`, nil, `Unknown operation "consultation:teleport"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame := models.InboundFrame{Op: tt.op}
			if tt.payload != "" {
				frame.Payload = json.RawMessage(tt.payload)
			}
			got, err := decodeOp(frame)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
				assert.Equal(t, tt.wantErr, apperr.PublicMessage(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.op, got.Name())
		})
	}
}

func TestSendLimiter(t *testing.T) {
	clk := clock.NewMock()
	clk.Set(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))

	t.Run("nil allows everything", func(t *testing.T) {
		l := NewSendLimiter(0, 0, clk)
		assert.Nil(t, l)
		assert.True(t, l.Allow("u1"))
	})

	t.Run("burst then refill per identity", func(t *testing.T) {
		l := NewSendLimiter(2, 2, clk)
		assert.True(t, l.Allow("u1"))
		assert.True(t, l.Allow("u1"))
		assert.False(t, l.Allow("u1"))
		assert.True(t, l.Allow("u2"))

		clk.Add(500 * time.Millisecond)
		assert.True(t, l.Allow("u1"))
	})

	t.Run("sweep drops only refilled budgets", func(t *testing.T) {
		l := NewSendLimiter(1, 5, clk)
		l.Allow("idle")
		assert.Equal(t, 1, l.Len())

		clk.Add(sendBudgetSweepEvery)
		for i := 0; i < 5; i++ {
			l.Allow("busy")
		}
		// idle refilled long ago, busy just spent its whole budget.
		assert.Equal(t, 1, l.Len())
		assert.False(t, l.Allow("busy"))
	})
}
