package advisor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func TestWithTimeout_PassesThrough(t *testing.T) {
	next := &MockSuggester{}
	next.On("Suggest", mock.Anything, "GITHUB").Return("software", true)

	id, ok := WithTimeout(next, time.Second).Suggest(context.Background(), "GITHUB")
	assert.True(t, ok)
	assert.Equal(t, "software", id)
	next.AssertExpectations(t)
}

func TestWithTimeout_SlowSuggesterYieldsNothing(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	slow := Func(func(ctx context.Context, _ string) (string, bool) {
		<-release
		return "software", true
	})

	start := time.Now()
	id, ok := WithTimeout(slow, 20*time.Millisecond).Suggest(context.Background(), "GITHUB")
	assert.False(t, ok)
	assert.Empty(t, id)
	assert.Less(t, time.Since(start), time.Second)
}
