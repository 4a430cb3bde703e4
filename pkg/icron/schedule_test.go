package icron

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate("@every 30s"))
	assert.NoError(t, Validate("0 */5 * * * *"))
	assert.NoError(t, Validate("*/5 * * * *"))
	assert.Error(t, Validate("not a cron"))
}

func TestGetTriggerInfo_Calendar(t *testing.T) {
	ref := time.Date(2024, 5, 1, 10, 30, 0, 0, time.UTC)
	info, err := GetTriggerInfo("0 0 * * * *", ref)
	require.NoError(t, err)

	assert.Equal(t, time.Date(2024, 5, 1, 11, 0, 0, 0, time.UTC), info.Next)
	assert.Equal(t, time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC), info.Last)
	assert.Equal(t, 30*time.Minute, info.TimeUntilNext)
	assert.Equal(t, 30*time.Minute, info.TimeSinceLast)
}

func TestGetTriggerInfo_ConstantDelay(t *testing.T) {
	ref := time.Date(2024, 5, 1, 10, 30, 0, 0, time.UTC)
	info, err := GetTriggerInfo("@every 30s", ref)
	require.NoError(t, err)
	assert.Equal(t, ref.Add(30*time.Second), info.Next)
	assert.Equal(t, ref, info.Last)
}

func TestGetTriggerInfo_Invalid(t *testing.T) {
	_, err := GetTriggerInfo("bogus", time.Now())
	assert.Error(t, err)
}
