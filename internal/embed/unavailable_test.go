package embed

import (
	"context"
	"testing"

	"github.com/cortexdesk/cortexrag/internal/cortexerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnavailableEmbedder_EmbedReturnsEmbeddingUnavailableError(t *testing.T) {
	e := NewUnavailableEmbedder(768, "none")
	_, err := e.Embed(context.Background(), "text")
	require.Error(t, err)

	var cerr *cortexerr.Error
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, cortexerr.CodeEmbeddingUnavail, cerr.Code)
}

func TestUnavailableEmbedder_AvailableIsAlwaysFalse(t *testing.T) {
	e := NewUnavailableEmbedder(0, "none")
	assert.False(t, e.Available(context.Background()))
	assert.Equal(t, DefaultDimensions, e.Dimensions())
}
