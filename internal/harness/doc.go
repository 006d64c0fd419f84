// Package harness runs query scenarios against a seeded store.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: descriptor_and
//	description: "Entities must carry every requested descriptor"
//	dataset: ../datasets/two_studies.yaml   # or inline under data:, or omitted for the sample dataset
//	engine:
//	  descriptor_strategy: group_count
//	steps:
//	  - op: search
//	    entity: study
//	    predicate: { descriptor_ids: [1, 2] }
//	    checks: [count_matches_search, pagination_stable]
//	    expect:
//	      ids: [1]
//	  - op: aggregate
//	    entity: study
//	    aggregate: unique_facilities
//	    expect:
//	      groups: ["General Hospital=1"]
//	      absent: ["Boston"]
//
// # Checks
//
// Checks are properties verified on top of the step's own expectations:
//
//   - count_matches_search: count equals the length of the unpaginated search
//   - pagination_stable: pages of checkPageSize concatenate to the full search
//
// # Deterministic Testing
//
// Every scenario runs on a fresh private store with strict plans and fixed
// request IDs, so the step results are stable and can be compared with a
// golden snapshot (RunWithGolden).
package harness
