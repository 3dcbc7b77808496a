//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strconv"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"

	kafkaadapter "github.com/cordexkit/evaltools/internal/adapter/kafka"
	"github.com/cordexkit/evaltools/internal/assemble"
	"github.com/cordexkit/evaltools/internal/catalog"
	"github.com/cordexkit/evaltools/internal/domain"
	"github.com/cordexkit/evaltools/internal/observability"
)

const testAuditTopic = "test-dataset-audit"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// startKafka runs a single-node Kafka in a container and returns its broker
// address.
func startKafka(ctx context.Context, t *testing.T) string {
	t.Helper()

	container, err := tckafka.Run(ctx, "confluentinc/confluent-local:7.5.0",
		tckafka.WithClusterID("test-cluster"),
	)
	require.NoError(t, err, "start kafka container")
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	brokers, err := container.Brokers(ctx)
	require.NoError(t, err, "resolve kafka brokers")
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

	controllerConn, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	require.NoError(t, err)
	defer controllerConn.Close()

	require.NoError(t, controllerConn.CreateTopics(kafkago.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	}))
}

// memOpener serves in-memory datasets for the assembly under test.
type memOpener struct {
	datasets map[string]*domain.Dataset
}

func (o *memOpener) Open(_ context.Context, entry catalog.Entry) (*domain.Dataset, error) {
	ds, ok := o.datasets[entry.Path]
	if !ok {
		return nil, fmt.Errorf("open %s: no such file", entry.Path)
	}
	return ds.Clone(), nil
}

func gridDataset(varName string, n int) *domain.Dataset {
	axis := make([]float64, n)
	values := make([]float64, n*n)
	for i := range axis {
		axis[i] = float64(i)
	}
	for i := range values {
		values[i] = float64(i)
	}

	ds := domain.NewDataset()
	ds.Coords["rlat"] = domain.Variable{Name: "rlat", Dims: []string{"rlat"}, Shape: []int{n}, Values: axis}
	ds.Coords["rlon"] = domain.Variable{Name: "rlon", Dims: []string{"rlon"}, Shape: []int{n}, Values: axis}
	ds.Coords["crs"] = domain.Variable{
		Name:  "crs",
		Attrs: map[string]string{"grid_mapping_name": "rotated_latitude_longitude"},
	}
	ds.Vars[varName] = domain.Variable{
		Name: varName, Dims: []string{"rlat", "rlon"}, Shape: []int{n, n},
		Values: values,
		Attrs:  map[string]string{"grid_mapping": "crs"},
	}
	return ds
}

func testEntry(source, variable, path string) catalog.Entry {
	return catalog.Entry{
		Project:            "CORDEX-CMIP6",
		Domain:             "EUR-12",
		Institution:        "CLMcom",
		DrivingSource:      "ERA5",
		DrivingExperiment:  "evaluation",
		DrivingVariant:     "r1i1p1f1",
		Source:             source,
		VersionRealization: "v1-r1",
		Frequency:          "mon",
		VariableID:         variable,
		Version:            "v20240529",
		Path:               path,
	}
}

// TestAuditRoundTrip runs an assembly with a real Kafka audit sink and
// verifies every verdict arrives on the topic with its headers intact.
func TestAuditRoundTrip(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testAuditTopic)

	writer := kafkaadapter.NewAuditWriter([]string{broker}, testAuditTopic, discardLogger())
	t.Cleanup(func() { _ = writer.Close() })

	opener := &memOpener{datasets: map[string]*domain.Dataset{
		"/data/tas_good.nc": gridDataset("tas", 2),
	}}
	entries := []catalog.Entry{
		testEntry("ICON-CLM", "tas", "/data/tas_good.nc"),
		testEntry("RACMO23E", "tas", "/data/tas_missing.nc"),
	}

	assembler := assemble.New(opener, nil, discardLogger(), observability.NewMetricsForTesting(), writer)
	result, err := assembler.Assemble(ctx, entries, assemble.Options{})
	require.NoError(t, err)
	require.Len(t, result, 1)

	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       testAuditTopic,
		GroupID:     fmt.Sprintf("test-audit-%d", time.Now().UnixNano()),
		StartOffset: kafkago.FirstOffset,
	})
	t.Cleanup(func() { _ = consumer.Close() })

	byOutcome := make(map[string]domain.Verdict)
	headers := make(map[string]map[string]string)
	for i := 0; i < 2; i++ {
		readCtx, readCancel := context.WithTimeout(ctx, 30*time.Second)
		msg, err := consumer.ReadMessage(readCtx)
		readCancel()
		require.NoError(t, err, "read from audit topic")

		var v domain.Verdict
		require.NoError(t, json.Unmarshal(msg.Value, &v))
		require.Equal(t, v.InstanceID, string(msg.Key))

		h := make(map[string]string, len(msg.Headers))
		for _, hd := range msg.Headers {
			h[hd.Key] = string(hd.Value)
		}
		byOutcome[string(v.Outcome)] = v
		headers[string(v.Outcome)] = h
	}

	rejected, ok := byOutcome["rejected"]
	require.True(t, ok, "expected a rejected verdict")
	assert.Equal(t, domain.StageOpen, rejected.Stage)
	assert.Contains(t, rejected.InstanceID, "RACMO23E")
	assert.Contains(t, rejected.Reason, "no such file")
	assert.Equal(t, "open", headers["rejected"]["stage"])

	passed, ok := byOutcome["pass"]
	require.True(t, ok, "expected a pass verdict")
	assert.Contains(t, passed.InstanceID, "ICON-CLM")
	assert.Equal(t, "pass", headers["pass"]["outcome"])
	_, err = time.Parse(time.RFC3339, headers["pass"]["decided_at"])
	assert.NoError(t, err, "decided_at should be valid RFC3339")

	// No further verdicts were published.
	readCtx, readCancel := context.WithTimeout(ctx, 5*time.Second)
	_, err = consumer.ReadMessage(readCtx)
	readCancel()
	assert.Error(t, err, "expected exactly two verdicts on the audit topic")
}
