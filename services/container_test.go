package services

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type closeRecorder struct {
	name  string
	order *[]string
	err   error
}

func (c *closeRecorder) Close() error {
	*c.order = append(*c.order, c.name)
	return c.err
}

func TestContainer_ClosesProviderClients(t *testing.T) {
	var order []string
	c := &Container{}
	c.track(&closeRecorder{name: "completer", order: &order})
	c.track(&fakeEmbedder{})
	c.track(&closeRecorder{name: "embedder", order: &order, err: errors.New("already closed")})

	assert.Len(t, c.clients, 2)
	c.Close()
	assert.Equal(t, []string{"embedder", "completer"}, order)

	// A second Close is a no-op.
	c.Close()
	assert.Len(t, order, 2)
}
