package executor

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/hookroute/internal/model"
)

func testInvocation() Invocation {
	return Invocation{
		ID:            "d-1",
		Handler:       model.HandlerDescriptor{Name: "ci-investigator", Tier: model.Primary, CanSpawn: true},
		Priority:      model.PriorityMedium,
		OperationType: "quality",
		ArtifactPath:  ".github/workflows/ci.yml",
	}
}

func TestNewModes(t *testing.T) {
	e, err := New(Options{})
	require.NoError(t, err)
	assert.IsType(t, Advise{}, e)

	e, err = New(Options{Mode: ModeNone})
	require.NoError(t, err)
	assert.IsType(t, None{}, e)

	_, err = New(Options{Mode: ModeCommand})
	assert.Error(t, err)

	_, err = New(Options{Mode: "bogus"})
	assert.ErrorContains(t, err, "unknown executor mode")
}

func TestAdviseDirective(t *testing.T) {
	res, err := Advise{}.Execute(context.Background(), testInvocation())
	require.NoError(t, err)

	var d Directive
	require.NoError(t, json.Unmarshal([]byte(res.Output), &d))
	assert.Equal(t, "ci-investigator", d.Route)
	assert.Equal(t, model.Primary, d.Tier)
	assert.True(t, d.CanSpawn)
	assert.Equal(t, model.PriorityMedium, d.Priority)
	assert.Equal(t, "d-1", d.DispatchID)

	_, err = Advise{}.Execute(context.Background(), Invocation{})
	assert.Error(t, err)
}

func TestNoneFails(t *testing.T) {
	_, err := None{}.Execute(context.Background(), testInvocation())
	assert.True(t, errors.Is(err, ErrNoExecutor))
}

func TestCommandReadsInvocation(t *testing.T) {
	c, err := NewCommand([]string{"sh", "-c", "cat; echo; echo $HOOKROUTE_HANDLER"}, 5*time.Second, time.Second, nil)
	require.NoError(t, err)

	res, err := c.Execute(context.Background(), testInvocation())
	require.NoError(t, err)
	assert.Contains(t, res.Output, `"name":"ci-investigator"`)
	assert.Contains(t, res.Output, "\nci-investigator")
}

func TestCommandNonZeroExit(t *testing.T) {
	c, err := NewCommand([]string{"sh", "-c", "echo broken >&2; exit 3"}, 5*time.Second, time.Second, nil)
	require.NoError(t, err)

	_, err = c.Execute(context.Background(), testInvocation())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken")
}

func TestCommandTimeoutKills(t *testing.T) {
	c, err := NewCommand([]string{"sh", "-c", `trap "" TERM; exec sleep 10`}, 50*time.Millisecond, 50*time.Millisecond, nil)
	require.NoError(t, err)

	start := time.Now()
	_, err = c.Execute(context.Background(), testInvocation())
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestCommandCancelled(t *testing.T) {
	c, err := NewCommand([]string{"sleep", "10"}, 10*time.Second, 50*time.Millisecond, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = c.Execute(ctx, testInvocation())
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestCommandMissingBinary(t *testing.T) {
	c, err := NewCommand([]string{"/nonexistent/handler-bin"}, time.Second, time.Second, nil)
	require.NoError(t, err)
	_, err = c.Execute(context.Background(), testInvocation())
	assert.ErrorContains(t, err, "start")
}
