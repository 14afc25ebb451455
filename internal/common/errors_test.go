package common

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSentinels_MatchThroughWrapping(t *testing.T) {
	wrapped := fmt.Errorf("upload DATALOG/20250601/abc.edf: %w", ErrTransportTransient)

	assert.True(t, errors.Is(wrapped, ErrTransportTransient))
	assert.False(t, errors.Is(wrapped, ErrResourceUnavailable))
}
