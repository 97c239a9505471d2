package wire

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorfWrapsAndClassifies(t *testing.T) {
	base := errors.New("disk full")
	err := Errorf(KindLogging, "session", "insert frame %d: %w", 7, base)

	assert.Equal(t, KindLogging, KindOf(err))
	assert.ErrorIs(t, err, base)
	assert.Contains(t, err.Error(), "session")
	assert.Contains(t, err.Error(), "logging")
	assert.Contains(t, err.Error(), "insert frame 7")
}

func TestKindOfUnwrapsNestedErrors(t *testing.T) {
	inner := Errorf(KindConfiguration, "tuning", "bad roi")
	outer := fmt.Errorf("loading config: %w", inner)

	assert.Equal(t, KindConfiguration, KindOf(outer))
}

func TestKindOfPlainError(t *testing.T) {
	assert.Equal(t, KindUnknown, KindOf(errors.New("anything")))
	assert.Equal(t, KindUnknown, KindOf(nil))
}

func TestKindStrings(t *testing.T) {
	cases := map[Kind]string{
		KindUnknown:       "unknown",
		KindConfiguration: "configuration",
		KindCalibration:   "calibration",
		KindProcessing:    "processing",
		KindRules:         "rules",
		KindLogging:       "logging",
	}
	for k, want := range cases {
		assert.Equal(t, want, k.String())
	}
}
