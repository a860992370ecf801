package configuration

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClosersRunLastOpenedFirst(t *testing.T) {
	var order []string
	var undo closers
	undo.add(func() { order = append(order, "mongo") })
	undo.add(func() { order = append(order, "kafka") })
	undo.add(func() { order = append(order, "redis") })

	undo.run()
	assert.Equal(t, []string{"redis", "kafka", "mongo"}, order)
}
