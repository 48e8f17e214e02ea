package driver

const (
	SaveEntityNodeQuery = `
		MERGE (n:Entity {uuid: $uuid})
		SET n.name = $name,
			n.group_id = $group_id,
			n.entity_type = $entity_type,
			n.summary = $summary,
			n.embedding = $embedding,
			n.fact_ids = $fact_ids,
			n.created_at = $created_at,
			n.consolidated_at = $consolidated_at
		RETURN n.uuid AS uuid
	`

	SaveEpisodicNodeQuery = `
		MERGE (n:Episodic {uuid: $uuid})
		SET n.name = $name,
			n.group_id = $group_id,
			n.episode_type = $episode_type,
			n.content = $content,
			n.embedding = $embedding,
			n.valid_at = $valid_at,
			n.invalid_at = $invalid_at,
			n.created_at = $created_at,
			n.reference_id = $reference_id,
			n.retroactive_days = $retroactive_days,
			n.disputed_by = $disputed_by,
			n.consolidated_at = $consolidated_at,
			n.metadata = $metadata
		RETURN n.uuid AS uuid
	`

	SaveCommunityNodeQuery = `
		MERGE (n:Community {uuid: $uuid})
		SET n.name = $name,
			n.group_id = $group_id,
			n.community_level = $community_level,
			n.summary = $summary,
			n.embedding = $embedding,
			n.member_entity_ids = $member_entity_ids,
			n.member_count = $member_count,
			n.domain_hints = $domain_hints,
			n.importance_score = $importance_score,
			n.entity_count_at_last_rebuild = $entity_count_at_last_rebuild,
			n.last_full_rebuild = $last_full_rebuild,
			n.created_at = $created_at
		RETURN n.uuid AS uuid
	`

	SaveEntityEdgeQuery = `
		MATCH (source:Entity {uuid: $source_uuid})
		MATCH (target:Entity {uuid: $target_uuid})
		MERGE (source)-[e:RELATES_TO {uuid: $uuid}]->(target)
		SET e.name = $name,
			e.group_id = $group_id,
			e.fact_ids = $fact_ids,
			e.episodes = $episodes,
			e.valid_at = $valid_at,
			e.invalid_at = $invalid_at,
			e.expired_at = $expired_at,
			e.disputed_by = $disputed_by,
			e.created_at = $created_at
		RETURN e.uuid AS uuid
	`

	// Tiered migration upsert: merge by endpoints+name so repeated cycles
	// confirm rather than duplicate. Episode lists concatenate on match;
	// readers take the set union.
	MergeEntityEdgeByTripleQuery = `
		MATCH (source:Entity {uuid: $source_uuid})
		MATCH (target:Entity {uuid: $target_uuid})
		MERGE (source)-[e:RELATES_TO {name: $name, group_id: $group_id}]->(target)
		ON CREATE SET e.uuid = $uuid,
			e.fact_ids = $fact_ids,
			e.episodes = $episodes,
			e.valid_at = $valid_at,
			e.invalid_at = $invalid_at,
			e.expired_at = $expired_at,
			e.disputed_by = $disputed_by,
			e.created_at = $created_at
		ON MATCH SET e.episodes = coalesce(e.episodes, []) + $episodes
		RETURN e.uuid AS uuid
	`

	SaveEpisodicEdgeQuery = `
		MATCH (episode:Episodic {uuid: $source_uuid})
		MATCH (node:Entity {uuid: $target_uuid})
		MERGE (episode)-[e:MENTIONS {uuid: $uuid}]->(node)
		SET e.group_id = $group_id,
			e.created_at = $created_at
		RETURN e.uuid AS uuid
	`

	SaveCommunityEdgeQuery = `
		MATCH (c:Community {uuid: $source_uuid})
		MATCH (m:Entity {uuid: $target_uuid})
		MERGE (c)-[r:HAS_MEMBER {uuid: $uuid}]->(m)
		SET r.group_id = $group_id,
			r.name = $name,
			r.description = $description,
			r.created_at = $created_at
		RETURN r.uuid AS uuid
	`

	GetEntityByNameQuery = `
		MATCH (n:Entity {name: $name, group_id: $group_id})
		RETURN n, labels(n) AS labels
		LIMIT 1
	`

	GetNodeByUUIDQuery = `
		MATCH (n {uuid: $uuid})
		RETURN n, labels(n) AS labels
		LIMIT 1
	`

	GetEdgeByUUIDQuery = `
		MATCH (a)-[e:RELATES_TO {uuid: $uuid}]->(b)
		RETURN e, a.uuid AS source_uuid, b.uuid AS target_uuid
		LIMIT 1
	`

	GetEdgeBetweenQuery = `
		MATCH (a:Entity {uuid: $source_uuid})-[e:RELATES_TO {name: $name}]->(b:Entity {uuid: $target_uuid})
		RETURN e, a.uuid AS source_uuid, b.uuid AS target_uuid
		LIMIT 1
	`

	GetActivePositiveEdgeQuery = `
		MATCH (a:Entity {uuid: $source_uuid})-[e:RELATES_TO {name: $name}]->(b:Entity {uuid: $target_uuid})
		WHERE e.invalid_at IS NULL
		RETURN e, a.uuid AS source_uuid, b.uuid AS target_uuid
		LIMIT 1
	`

	SetEdgeDisputedQuery = `
		MATCH ()-[e:RELATES_TO {uuid: $uuid}]->()
		SET e.disputed_by = $disputed_by
		RETURN e.uuid AS uuid
	`

	SetEpisodeDisputedQuery = `
		MATCH (ep:Episodic {uuid: $uuid})
		SET ep.disputed_by = $disputed_by
		RETURN ep.uuid AS uuid
	`

	DeleteEdgeByUUIDQuery = `
		MATCH ()-[e {uuid: $uuid}]-()
		DELETE e
	`

	DetachDeleteNodeQuery = `
		MATCH (n {uuid: $uuid})
		DETACH DELETE n
	`

	DeleteOrphanEdgesQuery = `
		MATCH (:Entity {group_id: $group_id})-[e:RELATES_TO]->(:Entity)
		WHERE e.episodes IS NULL OR size(e.episodes) = 0
		DELETE e
		RETURN count(*) AS pruned
	`

	CountOrphanEdgesQuery = `
		MATCH (:Entity {group_id: $group_id})-[e:RELATES_TO]->(:Entity)
		WHERE e.episodes IS NULL OR size(e.episodes) = 0
		RETURN count(*) AS pruned
	`

	CommunityMembersQuery = `
		MATCH (c:Community)-[:HAS_MEMBER]->(m:Entity {group_id: $group_id})
		WHERE c.uuid IN $community_uuids
		RETURN DISTINCT m, labels(m) AS labels
	`

	DeleteCommunityMembershipQuery = `
		MATCH (c:Community {uuid: $uuid})-[r:HAS_MEMBER]->()
		DELETE r
	`

	GetRecentEpisodesQuery = `
		MATCH (n:Episodic {group_id: $group_id})
		RETURN n, labels(n) AS labels
		ORDER BY n.created_at DESC
		LIMIT $limit
	`

	GroupEntitiesQuery = `
		MATCH (n:Entity {group_id: $group_id})
		RETURN n, labels(n) AS labels
	`

	GroupEntityEdgesQuery = `
		MATCH (a:Entity {group_id: $group_id})-[e:RELATES_TO]->(b:Entity {group_id: $group_id})
		RETURN e, a.uuid AS source_uuid, b.uuid AS target_uuid
	`

	EdgesAmongQuery = `
		MATCH (a:Entity)-[e:RELATES_TO]->(b:Entity)
		WHERE a.uuid IN $uuids AND b.uuid IN $uuids
		RETURN e, a.uuid AS source_uuid, b.uuid AS target_uuid
	`

	GroupCommunitiesQuery = `
		MATCH (n:Community {group_id: $group_id})
		RETURN n, labels(n) AS labels
	`

	// Phase 1 cluster discovery: entities with enough fresh, unconsolidated
	// evidence, busiest first.
	ConsolidationClustersQuery = `
		MATCH (ep:Episodic {group_id: $group_id})-[:MENTIONS]->(n:Entity {group_id: $group_id})
		WHERE ep.consolidated_at IS NULL AND ep.created_at <= $cutoff
		WITH n, collect(DISTINCT ep) AS eps
		WHERE size(eps) >= $min_episodes
		RETURN n, labels(n) AS labels,
			[ep IN eps | ep.uuid] AS episode_uuids,
			[ep IN eps | ep.content] AS episode_texts,
			size(eps) AS episode_count
		ORDER BY episode_count DESC
		LIMIT $max_entities
	`

	MarkEpisodesConsolidatedQuery = `
		MATCH (ep:Episodic)
		WHERE ep.uuid IN $uuids
		SET ep.consolidated_at = $now
	`

	UpdateEntitySummaryQuery = `
		MATCH (n:Entity {uuid: $uuid})
		SET n.summary = $summary,
			n.embedding = $embedding,
			n.consolidated_at = $now
		RETURN n.uuid AS uuid
	`

	ActiveOutgoingEdgesQuery = `
		MATCH (s:Entity {uuid: $uuid})-[e:RELATES_TO]->(t:Entity)
		WHERE e.invalid_at IS NULL
		RETURN e, s.uuid AS source_uuid, t.uuid AS target_uuid,
			s.name AS source_name, t.name AS target_name
		LIMIT $limit
	`

	ActiveIncomingEdgesQuery = `
		MATCH (s:Entity)-[e:RELATES_TO]->(t:Entity {uuid: $uuid})
		WHERE e.invalid_at IS NULL
		RETURN e, s.uuid AS source_uuid, t.uuid AS target_uuid,
			s.name AS source_name, t.name AS target_name
		LIMIT $limit
	`

	// Phase 2 candidate generation: name containment both ways,
	// case-insensitive, each unordered pair once.
	MergeCandidatePairsQuery = `
		MATCH (a:Entity {group_id: $group_id}), (b:Entity {group_id: $group_id})
		WHERE a.uuid < b.uuid AND a.name <> b.name
			AND (toLower(a.name) CONTAINS toLower(b.name)
				OR toLower(b.name) CONTAINS toLower(a.name))
		RETURN a.uuid AS a_uuid, a.name AS a_name, a.embedding AS a_embedding,
			COUNT { (a)-[:RELATES_TO|MENTIONS]-() } AS a_degree,
			b.uuid AS b_uuid, b.name AS b_name, b.embedding AS b_embedding,
			COUNT { (b)-[:RELATES_TO|MENTIONS]-() } AS b_degree
	`

	RedirectOutgoingEdgesQuery = `
		MATCH (dup:Entity {uuid: $duplicate_uuid})-[r:RELATES_TO]->(o)
		WHERE o.uuid <> $canonical_uuid
		MATCH (canon:Entity {uuid: $canonical_uuid})
		MERGE (canon)-[r2:RELATES_TO {uuid: r.uuid}]->(o)
		SET r2 = properties(r)
	`

	RedirectIncomingEdgesQuery = `
		MATCH (o)-[r:RELATES_TO]->(dup:Entity {uuid: $duplicate_uuid})
		WHERE o.uuid <> $canonical_uuid
		MATCH (canon:Entity {uuid: $canonical_uuid})
		MERGE (o)-[r2:RELATES_TO {uuid: r.uuid}]->(canon)
		SET r2 = properties(r)
	`

	RedirectMentionsQuery = `
		MATCH (ep:Episodic)-[r:MENTIONS]->(dup:Entity {uuid: $duplicate_uuid})
		MATCH (canon:Entity {uuid: $canonical_uuid})
		MERGE (ep)-[r2:MENTIONS {uuid: r.uuid}]->(canon)
		SET r2 = properties(r)
		DELETE r
	`
)

// SimilarityFragment scores $query_embedding against n.embedding in-query.
// $query_norm is precomputed client-side with f64 accumulation.
const SimilarityFragment = `
		WITH n,
			reduce(dot = 0.0, i IN range(0, size(n.embedding) - 1) | dot + n.embedding[i] * $query_embedding[i]) AS dot,
			reduce(nrm = 0.0, x IN n.embedding | nrm + x * x) AS nrm
		WITH n, CASE WHEN nrm = 0.0 OR $query_norm = 0.0 THEN 0.0
			ELSE dot / (sqrt(nrm) * $query_norm) END AS similarity
`
