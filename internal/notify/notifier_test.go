package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockPublisher struct{ mock.Mock }

func (m *mockPublisher) Publish(ctx context.Context, channel string, payload []byte) error {
	return m.Called(ctx, channel, payload).Error(0)
}

func TestPaymentSucceededPublishesOnUserChannel(t *testing.T) {
	id := uuid.MustParse("3f2b8c1e-4d5a-4b6c-8e7f-9a0b1c2d3e4f")
	pub := &mockPublisher{}
	pub.On("Publish", mock.Anything, "user-notifications:"+id.String(), mock.MatchedBy(func(b []byte) bool {
		var m Message
		if json.Unmarshal(b, &m) != nil {
			return false
		}
		return m.Event == EventPaymentSuccess && m.Payload["plan"] == "pro" && m.Payload["amount"] == float64(250000)
	})).Return(nil).Once()

	n := &Notifier{pub: pub}
	require.NoError(t, n.PaymentSucceeded(context.Background(), id, "pro", 250000))
	pub.AssertExpectations(t)
}

func TestPublishErrorIsReturned(t *testing.T) {
	pub := &mockPublisher{}
	pub.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("redis down"))

	n := &Notifier{pub: pub}
	require.EqualError(t, n.PaymentSucceeded(context.Background(), uuid.New(), "pro", 1), "redis down")
}
