package stream

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindString(t *testing.T) {
	t.Parallel()

	names := make([]string, 0, 5)
	for _, k := range Kinds() {
		names = append(names, k.String())
	}
	assert.Equal(t, []string{"accelerometer", "gyroscope", "magnetometer", "deviceMotion", "altimeter"}, names)
	assert.Equal(t, "unknown", Kind(42).String())
	assert.Equal(t, "unknown", Kind(-1).String())
}
