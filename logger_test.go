package rxkit_test

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/gokit/rxkit"
	"github.com/gokit/rxkit/internal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestGetLogEvent(t *testing.T) {
	t.Run("basic fields", func(t *testing.T) {
		event := rxkit.LogMsg("My log")
		event.String("name", "thunder")
		event.Int("id", 234)
		assert.Equal(t, "{\"message\": \"My log\", \"name\": \"thunder\", \"id\": 234}", event.Message())
	})

	t.Run("no fields", func(t *testing.T) {
		event := rxkit.LogMsgWithContext("My log", "data", nil)
		assert.Equal(t, "{\"message\": \"My log\", \"data\": {}}", event.Message())
	})

	t.Run("with number fields", func(t *testing.T) {
		event := rxkit.LogMsg("My log")
		event.Int64("demand", 9223372036854775807)
		event.Bool("done", false)
		assert.Equal(t, "{\"message\": \"My log\", \"demand\": 9223372036854775807, \"done\": false}", event.Message())
	})

	t.Run("with quoted strings", func(t *testing.T) {
		event := rxkit.LogMsg("My log")
		event.String("name", "say \"hi\"")
		event.Err("error", errors.New("bad"))
		event.Err("none", nil)
		assert.Equal(t, "{\"message\": \"My log\", \"name\": \"say \\\"hi\\\"\", \"error\": \"bad\", \"none\": null}", event.Message())
	})

	t.Run("with quotes in message", func(t *testing.T) {
		event := rxkit.LogMsg("read \"orders\" failed")
		event.String("topic", "orders")
		message := event.Message()
		assert.True(t, json.Valid([]byte(message)), message)

		var decoded map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(message), &decoded))
		assert.Equal(t, "read \"orders\" failed", decoded["message"])

		nested := rxkit.LogMsgWithContext("say \"hi\"", "data", nil)
		assert.True(t, json.Valid([]byte(nested.Message())))
	})

	t.Run("with JSON fields", func(t *testing.T) {
		event := rxkit.LogMsg("My log")
		event.String("name", "thunder")
		event.Int("id", 234)
		event.ObjectJSON("data", map[string]interface{}{"id": 23})
		assert.Equal(t, "{\"message\": \"My log\", \"name\": \"thunder\", \"id\": 234, \"data\": {\"id\":23}}", event.Message())
	})

	t.Run("with Entry fields", func(t *testing.T) {
		event := rxkit.LogMsg("My log")
		event.String("name", "thunder")
		event.Int("id", 234)
		event.Object("data", func(event *rxkit.LogEvent) {
			event.Int("id", 23)
		})
		assert.Equal(t, "{\"message\": \"My log\", \"name\": \"thunder\", \"id\": 234, \"data\": {\"id\": 23}}", event.Message())
	})

	t.Run("with bytes fields", func(t *testing.T) {
		event := rxkit.LogMsg("My log")
		event.String("name", "thunder")
		event.Int("id", 234)
		event.Bytes("data", []byte("{\"id\": 23}"))
		assert.Equal(t, "{\"message\": \"My log\", \"name\": \"thunder\", \"id\": 234, \"data\": {\"id\": 23}}", event.Message())
	})

	t.Run("using context fields", func(t *testing.T) {
		event := rxkit.LogMsgWithContext("My log", "data", nil)
		event.String("name", "thunder")
		event.Int("id", 234)
		assert.Equal(t, "{\"message\": \"My log\", \"data\": {\"name\": \"thunder\", \"id\": 234}}", event.Message())
	})

	t.Run("using context fields with hook", func(t *testing.T) {
		event := rxkit.LogMsgWithContext("My log", "data", func(event *rxkit.LogEvent) {
			event.Bool("w", true)
		})

		event.String("name", "thunder")
		event.Int("id", 234)
		assert.Equal(t, "{\"message\": \"My log\", \"w\": true, \"data\": {\"name\": \"thunder\", \"id\": 234}}", event.Message())
	})

	t.Run("reuse after message panics", func(t *testing.T) {
		event := rxkit.LogMsg("My log")
		event.Message()
		assert.Panics(t, func() {
			event.String("name", "thunder")
		})
	})
}

func TestZapLogs(t *testing.T) {
	core, recorded := observer.New(zapcore.DebugLevel)
	logs := rxkit.NewZapLogs(zap.New(core))

	rxkit.LogMsg("subscribed").String("subscription", "abc").Write(rxkit.INFO, logs)
	logs.Emit(rxkit.ERROR, rxkit.Message("plain text"))
	logs.Emit(rxkit.DEBUG, rxkit.Message("debugging"))

	entries := recorded.All()
	require.Len(t, entries, 3)

	require.Equal(t, zapcore.InfoLevel, entries[0].Level)
	require.Equal(t, zapcore.ErrorLevel, entries[1].Level)
	require.Equal(t, zapcore.DebugLevel, entries[2].Level)

	require.Equal(t, "plain text", entries[1].ContextMap()["event"])
	require.NotNil(t, entries[0].ContextMap()["event"])
}

func TestSetLogs(t *testing.T) {
	defer rxkit.SetLogs(nil)

	logs := rxkit.DrainLog{}
	rxkit.SetLogs(logs)
	require.Equal(t, rxkit.Logs(logs), rxkit.CurrentLogs())

	rxkit.SetLogs(nil)
	require.IsType(t, &rxkit.ZapLogs{}, rxkit.CurrentLogs())
}

func TestLogWith(t *testing.T) {
	logs := &internal.TLog{}

	items, err := rxkit.CollectList(rxkit.Range(1, 2).LogWith("numbers", logs)).Block()
	require.NoError(t, err)
	require.Equal(t, []int{1, 2}, items)

	messages := logs.Messages()
	require.Len(t, messages, 5)

	for i, signal := range []string{"onSubscribe", "request", "onNext", "onNext", "onComplete"} {
		require.True(t, strings.Contains(messages[i], "\"message\": \""+signal+"\""), messages[i])
		require.True(t, strings.Contains(messages[i], "\"category\": \"numbers\""), messages[i])
	}
	require.True(t, strings.Contains(messages[1], "\"amount\": \"unbounded\""), messages[1])
	require.True(t, strings.Contains(messages[2], "\"value\": 1"), messages[2])

	logs.Reset()
	_, err = rxkit.Failed[int](errors.New("bad")).LogWith("failing", logs).Count().Block()
	require.Error(t, err)
	require.Contains(t, logs.Levels(), rxkit.ERROR)
}

func BenchmarkGetLogEvent(b *testing.B) {
	b.ResetTimer()
	b.ReportAllocs()

	b.Run("basic fields", func(b *testing.B) {
		b.ResetTimer()
		b.ReportAllocs()

		for i := b.N; i > 0; i-- {
			event := rxkit.LogMsg("My log")
			event.String("name", "thunder")
			event.Int("id", 234)
			event.Message()
		}
	})

	b.Run("with JSON fields", func(b *testing.B) {
		b.ResetTimer()
		b.ReportAllocs()

		for i := b.N; i > 0; i-- {
			event := rxkit.LogMsg("My log")
			event.String("name", "thunder")
			event.Int("id", 234)
			event.ObjectJSON("data", map[string]interface{}{"id": 23})
			event.Message()
		}
	})
}
