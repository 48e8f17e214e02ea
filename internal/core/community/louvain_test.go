package community

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentmem/somnia/internal/core/model"
)

func makeNodes(uuids ...string) []*model.EntityNode {
	out := make([]*model.EntityNode, len(uuids))
	for i, u := range uuids {
		out[i] = &model.EntityNode{UUID: u, Name: u, GroupID: "default"}
	}
	return out
}

func makeEdge(src, tgt string) *model.EntityEdge {
	return &model.EntityEdge{
		UUID:       fmt.Sprintf("%s->%s", src, tgt),
		SourceUUID: src,
		TargetUUID: tgt,
		Name:       "RELATES_TO",
	}
}

func TestDetectEmptyGraph(t *testing.T) {
	assert.Nil(t, NewLouvainDetector().Detect(nil, nil))
}

func TestDetectEdgelessGraphYieldsSingletons(t *testing.T) {
	nodes := makeNodes("a", "b", "c")

	communities := NewLouvainDetector().Detect(nodes, nil)

	require.Len(t, communities, 3)
	for _, c := range communities {
		assert.Len(t, c, 1)
	}
}

func TestDetectSingleClique(t *testing.T) {
	nodes := makeNodes("a", "b", "c", "d")
	var edges []*model.EntityEdge
	for i := 0; i < len(nodes); i++ {
		for j := i + 1; j < len(nodes); j++ {
			edges = append(edges, makeEdge(nodes[i].UUID, nodes[j].UUID))
		}
	}

	communities := NewLouvainDetector().Detect(nodes, edges)

	require.Len(t, communities, 1)
	assert.Len(t, communities[0], 4)
}

func TestDetectTwoCliquesWithBridge(t *testing.T) {
	nodes := makeNodes("a1", "a2", "a3", "a4", "b1", "b2", "b3", "b4")
	var edges []*model.EntityEdge
	clique := func(ids []string) {
		for i := 0; i < len(ids); i++ {
			for j := i + 1; j < len(ids); j++ {
				edges = append(edges, makeEdge(ids[i], ids[j]))
			}
		}
	}
	clique([]string{"a1", "a2", "a3", "a4"})
	clique([]string{"b1", "b2", "b3", "b4"})
	edges = append(edges, makeEdge("a1", "b1"))

	communities := NewLouvainDetector().Detect(nodes, edges)

	require.Len(t, communities, 2)
	for _, c := range communities {
		require.Len(t, c, 4)
		prefix := c[0].UUID[:1]
		for _, n := range c {
			assert.Equal(t, prefix, n.UUID[:1], "cliques must not mix")
		}
	}
}

func TestDetectIgnoresSelfLoopsAndUnknownEndpoints(t *testing.T) {
	nodes := makeNodes("a", "b")
	edges := []*model.EntityEdge{
		makeEdge("a", "a"),
		makeEdge("a", "ghost"),
		makeEdge("ghost", "b"),
	}

	communities := NewLouvainDetector().Detect(nodes, edges)

	// All contributing edges were dropped: singletons remain.
	require.Len(t, communities, 2)
}

func TestDetectDeterministicOrdering(t *testing.T) {
	nodes := makeNodes("c", "a", "b")
	edges := []*model.EntityEdge{makeEdge("a", "b"), makeEdge("b", "c"), makeEdge("a", "c")}

	first := NewLouvainDetector().Detect(nodes, edges)
	second := NewLouvainDetector().Detect(nodes, edges)

	require.Equal(t, len(first), len(second))
	for i := range first {
		require.Equal(t, len(first[i]), len(second[i]))
		for j := range first[i] {
			assert.Equal(t, first[i][j].UUID, second[i][j].UUID)
		}
	}
}
