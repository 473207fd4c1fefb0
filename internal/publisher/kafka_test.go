package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"PennyAI/internal/model"
)

func update(id int64, ticker string, v model.Verdict) model.AnnotationUpdate {
	return model.AnnotationUpdate{
		RowID:      id,
		Ticker:     ticker,
		Symbol:     model.Ptr(ticker + ".TO"),
		Annotation: model.Annotation{Summary: "s", CommentSummary: "c", Verdict: v},
	}
}

func TestKafkaPublisher_PublishesVerdicts(t *testing.T) {
	producer := mocks.NewSyncProducer(t, mocks.NewTestConfig())
	producer.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		var evt VerdictEvent
		if err := json.Unmarshal(val, &evt); err != nil {
			return err
		}
		if evt.EventType != EventTypeVerdict || evt.Data.RowID != 1 || evt.Data.Verdict != "BUY" {
			return errors.New("unexpected event")
		}
		if evt.Data.Symbol == nil || *evt.Data.Symbol != "ABC.TO" {
			return errors.New("unexpected symbol")
		}
		return nil
	})
	producer.ExpectSendMessageAndSucceed()

	pub := NewKafkaPublisherWithProducer(producer, "pennyai.verdicts", arbor.NewLogger())
	pub.now = func() time.Time { return time.Unix(1700000000, 0) }

	sent, err := pub.PublishVerdicts(context.Background(), []model.AnnotationUpdate{
		update(1, "ABC", model.VerdictBuy),
		update(2, "XYZ", model.VerdictUnset),
		update(3, "QRS", model.VerdictHold),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, sent)
	require.NoError(t, pub.Close())
}

func TestKafkaPublisher_FailureContinues(t *testing.T) {
	producer := mocks.NewSyncProducer(t, mocks.NewTestConfig())
	producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)
	producer.ExpectSendMessageAndSucceed()

	pub := NewKafkaPublisherWithProducer(producer, "pennyai.verdicts", arbor.NewLogger())
	sent, err := pub.PublishVerdicts(context.Background(), []model.AnnotationUpdate{
		update(1, "ABC", model.VerdictSell),
		update(2, "XYZ", model.VerdictBuy),
	})
	assert.ErrorIs(t, err, sarama.ErrOutOfBrokers)
	assert.Equal(t, 1, sent)
	require.NoError(t, pub.Close())
}

func TestNewVerdictEvent(t *testing.T) {
	evt := NewVerdictEvent(update(7, "ABC", model.VerdictHold), time.Unix(10, 0))
	assert.Equal(t, EventSource, evt.Source)
	assert.Equal(t, int64(7), evt.Data.RowID)
	assert.Equal(t, "HOLD", evt.Data.Verdict)
	assert.Equal(t, time.UTC, evt.Timestamp.Location())
}

func TestNoopPublisher(t *testing.T) {
	var p Publisher = NewNoopPublisher()
	n, err := p.PublishVerdicts(context.Background(), []model.AnnotationUpdate{update(1, "ABC", model.VerdictBuy)})
	assert.NoError(t, err)
	assert.Zero(t, n)
	assert.NoError(t, p.Close())
}
