//go:build integration

package integration_test

import (
	"context"
	"io"
	"log/slog"
	"net"
	"strconv"
	"testing"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"
)

const sampleCSV = `Case #,Date,Suspect Deceased/Injured/Shoot and Miss,Suspect Weapon,Officer(s),Grand Jury Disposition,AG Forms,Summary URL,GeoLocation
507756T,07/07/2007,Shoot and Miss,Vehicle,"Madison, John W/M",N/A,N/A,https://example.com/507756T.pdf,"1818 N Akard Street
Dallas, Texas
(32.786522, -96.802127)"
100200X,01/02/2015,Injured,Knife,"Doe, Jane (B/F); Roe, Rick (W/M)",No Bill,https://example.com/ag/100200X.pdf,https://example.com/100200X.pdf,"2000 Elm Street
Dallas, Texas
(32.781400, -96.797100)"
208811M,11/14/2016,Deceased,Handgun,"Lee, Ann (A/F)",No Bill,N/A,https://example.com/208811M.pdf,"2300 Ross Avenue
Dallas, Texas
(32.789000, -96.795000)""
311044K,03/09/2017,Shoot and Miss,Unarmed,"Cruz, Mateo (L/M)",N/A,N/A,N/A,"Unknown location
Dallas, Texas"
`

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// startKafka runs a single-node broker and returns its bootstrap address.
func startKafka(ctx context.Context, t *testing.T) string {
	t.Helper()

	container, err := tckafka.Run(ctx, "confluentinc/confluent-local:7.5.0", tckafka.WithClusterID("ois-test"))
	require.NoError(t, err, "start kafka container")
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(container); err != nil {
			t.Logf("terminate kafka container: %v", err)
		}
	})

	brokers, err := container.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)
	return brokers[0]
}

func createTopic(t *testing.T, broker, topic string) {
	t.Helper()

	conn, err := kafkago.Dial("tcp", broker)
	require.NoError(t, err)
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err)

	ctrl, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	require.NoError(t, err)
	defer ctrl.Close()

	require.NoError(t, ctrl.CreateTopics(kafkago.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	}))
}
