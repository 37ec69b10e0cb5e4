package logger

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestNewLevels(t *testing.T) {
	assert.Equal(t, logrus.DebugLevel, New("debug", "json").GetLevel())
	assert.Equal(t, logrus.InfoLevel, New("", "json").GetLevel())
	assert.Equal(t, logrus.InfoLevel, New("loud", "json").GetLevel())
}

func TestNewFormat(t *testing.T) {
	_, isJSON := New("info", "json").Formatter.(*logrus.JSONFormatter)
	assert.True(t, isJSON)

	_, isText := New("info", "text").Formatter.(*logrus.TextFormatter)
	assert.True(t, isText)
}
