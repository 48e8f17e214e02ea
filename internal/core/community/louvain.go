package community

import (
	"sort"

	"github.com/agentmem/somnia/internal/core/model"
)

// LouvainDetector clusters entities by single-pass local modularity
// optimisation (no multi-level contraction). Sufficient for corpora of a few
// thousand entities; node order is fixed so results are deterministic.
type LouvainDetector struct {
	MaxIterations int
}

func NewLouvainDetector() *LouvainDetector {
	return &LouvainDetector{
		MaxIterations: 50,
	}
}

// Detect groups entities into communities over the undirected RELATES_TO
// graph with uniform edge weight 1. Self-loops and edges with missing
// endpoints are skipped. An edgeless graph yields singletons.
func (d *LouvainDetector) Detect(nodes []*model.EntityNode, edges []*model.EntityEdge) [][]*model.EntityNode {
	if len(nodes) == 0 {
		return nil
	}

	nodeMap := make(map[string]*model.EntityNode, len(nodes))
	adj := make(map[string]map[string]float64, len(nodes))
	for _, n := range nodes {
		nodeMap[n.UUID] = n
		adj[n.UUID] = make(map[string]float64)
	}

	var m float64 // total edge weight
	for _, e := range edges {
		if e.SourceUUID == e.TargetUUID {
			continue
		}
		if _, ok := nodeMap[e.SourceUUID]; !ok {
			continue
		}
		if _, ok := nodeMap[e.TargetUUID]; !ok {
			continue
		}
		adj[e.SourceUUID][e.TargetUUID] += 1
		adj[e.TargetUUID][e.SourceUUID] += 1
		m += 1
	}

	// Every entity starts in its own community, labelled by its uuid.
	labels := make(map[string]string, len(nodes))
	degree := make(map[string]float64, len(nodes))
	sigmaTot := make(map[string]float64, len(nodes))
	for _, n := range nodes {
		labels[n.UUID] = n.UUID
		for _, w := range adj[n.UUID] {
			degree[n.UUID] += w
		}
		sigmaTot[n.UUID] = degree[n.UUID]
	}

	order := make([]string, 0, len(nodes))
	for _, n := range nodes {
		order = append(order, n.UUID)
	}
	sort.Strings(order)

	if m > 0 {
		for iter := 0; iter < d.MaxIterations; iter++ {
			moves := 0
			for _, u := range order {
				if d.moveNode(u, adj, labels, degree, sigmaTot, m) {
					moves++
				}
			}
			if moves == 0 {
				break
			}
		}
	}

	clusters := make(map[string][]*model.EntityNode)
	for uuid, label := range labels {
		clusters[label] = append(clusters[label], nodeMap[uuid])
	}

	// Deterministic output order: by community label, members by uuid.
	labelKeys := make([]string, 0, len(clusters))
	for l := range clusters {
		labelKeys = append(labelKeys, l)
	}
	sort.Strings(labelKeys)

	var communities [][]*model.EntityNode
	for _, l := range labelKeys {
		members := clusters[l]
		sort.Slice(members, func(i, j int) bool { return members[i].UUID < members[j].UUID })
		communities = append(communities, members)
	}
	return communities
}

// moveNode relocates u to the neighbour community with the largest positive
// modularity gain. Returns true when u moved.
func (d *LouvainDetector) moveNode(u string, adj map[string]map[string]float64, labels map[string]string, degree, sigmaTot map[string]float64, m float64) bool {
	cOld := labels[u]
	ki := degree[u]

	// Edge weight from u into each neighbour community, and into its own
	// community excluding itself.
	kNew := make(map[string]float64)
	var kOld float64
	for v, w := range adj[u] {
		c := labels[v]
		kNew[c] += w
		if c == cOld {
			kOld += w
		}
	}

	bestC := cOld
	bestGain := 0.0
	candidates := make([]string, 0, len(kNew))
	for c := range kNew {
		if c != cOld {
			candidates = append(candidates, c)
		}
	}
	sort.Strings(candidates)

	for _, c := range candidates {
		gain := (kNew[c]-kOld)/m - ki*(sigmaTot[c]-sigmaTot[cOld]+ki)/(2*m*m)
		if gain > bestGain {
			bestGain = gain
			bestC = c
		}
	}

	if bestC == cOld {
		return false
	}
	sigmaTot[cOld] -= ki
	sigmaTot[bestC] += ki
	labels[u] = bestC
	return true
}
