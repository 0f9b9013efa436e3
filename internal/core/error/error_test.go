package errx

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
)

func TestMessageUnwrapsThroughWrapping(t *testing.T) {
	err := fmt.Errorf("[LocalFunc] failed to invoke tool, toolName=web_search, err=%w", Tool("Tavily API error: %s", "500 Internal Server Error"))

	assert.Equal(t, "Tavily API error: 500 Internal Server Error", Message(err))
	assert.Equal(t, KindTool, KindOf(err))
	assert.Equal(t, http.StatusBadGateway, StatusOf(err))
}

func TestMessageFallsBackToError(t *testing.T) {
	assert.Equal(t, "boom", Message(errors.New("boom")))
	assert.Equal(t, KindInternal, KindOf(errors.New("boom")))
	assert.Equal(t, http.StatusInternalServerError, StatusOf(errors.New("boom")))
	assert.Empty(t, Message(nil))
}

func TestWrapRedis(t *testing.T) {
	assert.Nil(t, WrapRedis(nil))

	nf := WrapRedis(redis.Nil)
	assert.Equal(t, KindNotFound, KindOf(nf))
	assert.True(t, errors.Is(nf, redis.Nil))

	other := WrapRedis(errors.New("conn refused"))
	assert.Equal(t, KindStorage, KindOf(other))
	assert.Equal(t, http.StatusBadGateway, StatusOf(other))
}

func TestWrapToolKeepsCause(t *testing.T) {
	cause := errors.New("dial tcp: timeout")
	err := WrapTool(cause, "Geocoding error: %v", cause)
	assert.True(t, errors.Is(err, cause))
	assert.Equal(t, "Geocoding error: dial tcp: timeout", Message(err))
}
