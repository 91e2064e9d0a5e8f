package service

import (
	"errors"
	"testing"
	"time"

	"github.com/pageza/recipeshare/backend/internal/apperror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDuration(t *testing.T) {
	d, err := parseDuration("op", "cook_time", "PT1H30M")
	require.NoError(t, err)
	assert.Equal(t, 90*time.Minute, d)

	d, err = parseDuration("op", "cook_time", "PT0S")
	require.NoError(t, err)
	assert.Zero(t, d)

	for _, bad := range []string{"", "90 minutes", "1H", "-PT5M"} {
		_, err := parseDuration("op", "cook_time", bad)
		assert.True(t, errors.Is(err, apperror.ErrValidation), "input %q", bad)
	}
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "PT0S", formatDuration(0))
	assert.Equal(t, "PT45M", formatDuration(45*time.Minute))
	assert.Equal(t, "PT1H5S", formatDuration(time.Hour+5*time.Second))
	assert.Equal(t, "PT26H", formatDuration(26*time.Hour))
	assert.Equal(t, "PT0.9S", formatDuration(900*time.Millisecond))
	assert.Equal(t, "PT1M2.05S", formatDuration(time.Minute+2050*time.Millisecond))
	assert.Equal(t, "PT1H0.000000001S", formatDuration(time.Hour+time.Nanosecond))
}

func TestTotalTime(t *testing.T) {
	cook, prep := "PT1H", "PT20M"

	total, err := totalTime("op", &cook, &prep)
	require.NoError(t, err)
	assert.Equal(t, "PT1H20M", *total)

	total, err = totalTime("op", nil, &prep)
	require.NoError(t, err)
	assert.Equal(t, "PT20M", *total)

	half, fourTenths := "PT0.5S", "PT0.4S"
	total, err = totalTime("op", &half, &fourTenths)
	require.NoError(t, err)
	assert.Equal(t, "PT0.9S", *total)

	total, err = totalTime("op", nil, nil)
	require.NoError(t, err)
	assert.Nil(t, total)
}
