package core

import (
	"context"
	"fmt"

	"github.com/agentmem/somnia/internal/core/model"
	"github.com/agentmem/somnia/internal/driver"
)

const (
	defaultTraverseHops  = 2
	defaultTraverseLimit = 50
)

// Traverse resolves a start entity by uuid or name and returns the induced
// subgraph reachable within max_hops: the nodes plus every RELATES_TO edge
// among them.
func (e *Engine) Traverse(ctx context.Context, params model.TraverseParams) (*model.TraverseResult, error) {
	if params.StartEntityUUID == "" && params.StartEntityName == "" {
		return nil, fmt.Errorf("traverse requires start_entity_uuid or start_entity_name")
	}
	groupID := params.GroupID
	if groupID == "" {
		groupID = DefaultGroupID
	}
	direction := params.Direction
	if direction == "" {
		direction = model.DirectionBoth
	}
	switch direction {
	case model.DirectionOutgoing, model.DirectionIncoming, model.DirectionBoth:
	default:
		return nil, fmt.Errorf("unknown direction: %s", direction)
	}
	hops := params.MaxHops
	if hops <= 0 {
		hops = defaultTraverseHops
	}
	limit := params.Limit
	if limit <= 0 {
		limit = defaultTraverseLimit
	}

	start, err := e.resolveStart(ctx, params, groupID)
	if err != nil {
		return nil, err
	}

	neighbors, err := e.Store.VariableLengthMatch(ctx, []string{start.UUID}, hops, direction, groupID, limit)
	if err != nil {
		return nil, err
	}

	nodes := append([]*model.EntityNode{start}, neighbors...)
	uuids := make([]string, len(nodes))
	for i, n := range nodes {
		uuids[i] = n.UUID
	}

	edges, err := e.Store.EdgesAmong(ctx, uuids)
	if err != nil {
		return nil, err
	}

	return &model.TraverseResult{Start: start, Nodes: nodes, Edges: edges}, nil
}

func (e *Engine) resolveStart(ctx context.Context, params model.TraverseParams, groupID string) (*model.EntityNode, error) {
	if params.StartEntityUUID != "" {
		node, err := e.Store.GetNode(ctx, params.StartEntityUUID)
		if err != nil {
			return nil, err
		}
		entity, ok := node.(*model.EntityNode)
		if !ok {
			return nil, fmt.Errorf("node %s is not an Entity", params.StartEntityUUID)
		}
		return entity, nil
	}

	entity, err := e.Store.FetchEntityByName(ctx, params.StartEntityName, groupID)
	if err != nil {
		return nil, err
	}
	if entity == nil {
		return nil, driver.ErrNotFound
	}
	return entity, nil
}
