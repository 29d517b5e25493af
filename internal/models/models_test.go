package models

import (
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerdict_Signals(t *testing.T) {
	assert.Nil(t, Verdict{Kind: VerdictNone}.Signals())
	assert.Equal(t, []EventKind{EventHandDetected}, Verdict{Kind: VerdictHand}.Signals())
	assert.Equal(t, []EventKind{EventFearDetected}, Verdict{Kind: VerdictFear}.Signals())
	assert.Equal(t, []EventKind{EventHandDetected, EventFearDetected}, Verdict{Kind: VerdictBoth}.Signals())
}

func TestObservation_IsFear(t *testing.T) {
	assert.True(t, Observation{EmotionLabel: "FEAR"}.IsFear())
	assert.True(t, Observation{EmotionLabel: "fear"}.IsFear())
	assert.False(t, Observation{EmotionLabel: EmotionError}.IsFear())
	assert.False(t, Observation{EmotionLabel: "fearful"}.IsFear())
}

func TestFormatLocationURL(t *testing.T) {
	lat, lon := 28.6139, 77.209
	assert.Equal(t, "https://maps.google.com/?q=28.6139,77.209", FormatLocationURL(&lat, &lon))
	assert.Equal(t, LocationUnavailable, FormatLocationURL(nil, &lon))
}

func TestAlertContext_Body(t *testing.T) {
	ctx := AlertContext{LocationURL: "https://maps.google.com/?q=1,2", Message: "help"}
	assert.Equal(t, "help\nLocation: https://maps.google.com/?q=1,2", ctx.Body())
	assert.Equal(t, LocationUnavailable, AlertContext{}.Location())
}

func TestStatsOf(t *testing.T) {
	stats := StatsOf(nil)
	assert.Equal(t, 0, stats.Total)
	assert.Equal(t, 0, stats.SOS)

	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	stats = StatsOf([]EventRecord{
		NewEventRecord(at, EventSOS, ""),
		NewEventRecord(at, EventAutoPhoto, "x"),
		NewEventRecord(at, EventHandDetected, "x"),
	})
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 1, stats.SOS)
	assert.Equal(t, 1, stats.HandDetected)
	assert.Equal(t, 1, stats.ByKind[EventAutoPhoto])
}

func TestPersistenceError_Is(t *testing.T) {
	err := error(&PersistenceError{Op: "append event", Err: io.ErrShortWrite})
	assert.True(t, errors.Is(err, ErrPersistence))
	assert.True(t, errors.Is(err, io.ErrShortWrite))
	assert.Equal(t, "append event: short write", err.Error())
}

func TestVerdictKind_TextRoundTrip(t *testing.T) {
	for _, k := range []VerdictKind{VerdictNone, VerdictHand, VerdictFear, VerdictBoth} {
		text, err := k.MarshalText()
		require.NoError(t, err)

		var got VerdictKind
		require.NoError(t, got.UnmarshalText(text))
		assert.Equal(t, k, got)
	}

	var k VerdictKind
	assert.Error(t, k.UnmarshalText([]byte("maybe")))
}
