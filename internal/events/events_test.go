package events_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"sandwich_hub/internal/events"
	"sandwich_hub/internal/events/mocks"
)

func TestFanout(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	t.Run("should publish to every publisher in order", func(t *testing.T) {
		req := require.New(t)
		ev := events.ForConversation(events.MessageCreated, 7, 11)
		first := mocks.NewMockPublisher(ctrl)
		rec := &events.Recorder{}

		first.EXPECT().Publish(gomock.Any(), ev).Times(1)

		events.Fanout{first, events.Nop{}, rec}.Publish(context.Background(), ev)

		req.Equal([]events.Event{ev}, rec.Events())
		req.Equal([]events.Name{events.MessageCreated}, rec.Names())
	})
}

func TestEventJSON(t *testing.T) {
	req := require.New(t)

	raw, err := json.Marshal(events.ForConversation(events.MessageDeleted, 3, 0))
	req.NoError(err)

	var decoded map[string]any
	req.NoError(json.Unmarshal(raw, &decoded))
	req.Equal("message.deleted", decoded["event"])
	req.EqualValues(3, decoded["conversation_id"])
	req.NotContains(decoded, "message_id")
	req.NotContains(decoded, "task_id")
	req.NotZero(decoded["ts"])
}
