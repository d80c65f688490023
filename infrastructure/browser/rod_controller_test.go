package browser

import (
	"context"
	"testing"

	"shopflow/domain/entities"

	"github.com/go-rod/rod/lib/proto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTargetPoint(t *testing.T) {
	center := proto.Point{X: 40, Y: 15}

	assert.Equal(t, proto.Point{X: 45, Y: 13}, targetPoint(center, nil, 5, -2))

	nested := []proto.Point{{X: 100, Y: 200}, {X: 8.5, Y: 12}}
	assert.Equal(t, proto.Point{X: 148.5, Y: 227}, targetPoint(center, nested, 0, 0))
	assert.Equal(t, proto.Point{X: 158.5, Y: 237}, targetPoint(center, nested, 10, 10))
}

func TestRodNode_DerivedNodesKeepFrames(t *testing.T) {
	frames := []entities.Selector{"#promo", "#inner"}
	n := &rodNode{selector: "#close", frames: frames}
	ctx := context.Background()

	parent, err := n.Parent(ctx)
	require.NoError(t, err)
	assert.Equal(t, frames, parent.(*rodNode).frames)

	child, err := n.Find(ctx, "span")
	require.NoError(t, err)
	assert.Equal(t, frames, child.(*rodNode).frames)
}
