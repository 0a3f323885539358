package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"watchtower/internal/engine/alert"
	"watchtower/pkg/infra"
)

func TestKafkaChannel_SendKeysByCheckKey(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	msg := testMessage()
	writer := infra.NewMockKafkaWriter(ctrl)
	writer.EXPECT().WriteMessages(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, msgs ...kafka.Message) error {
			require.Len(t, msgs, 1)
			assert.Equal(t, []byte(msg.Key), msgs[0].Key)
			var decoded alert.Message
			require.NoError(t, json.Unmarshal(msgs[0].Value, &decoded))
			assert.Equal(t, msg.Severity, decoded.Severity)
			assert.Equal(t, msg.CorrelationID, decoded.CorrelationID)
			return nil
		})

	ch := NewKafkaChannel("kafka", writer)
	assert.Equal(t, "kafka", ch.Name())
	assert.NoError(t, ch.Send(context.Background(), msg))
}

func TestKafkaChannel_WriteFailureIsRetryable(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	writer := infra.NewMockKafkaWriter(ctrl)
	writer.EXPECT().WriteMessages(gomock.Any(), gomock.Any()).Return(errors.New("broker unreachable"))

	ch := NewKafkaChannel("kafka", writer)
	err := ch.Send(context.Background(), testMessage())
	require.Error(t, err)
	var retryable *RetryableError
	assert.True(t, errors.As(err, &retryable))
}
