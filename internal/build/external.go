// External-mode build: import a user-supplied parent-pointer forest of
// centroids (spec.md §4.5 "External" mode), backed by a SQL table read
// through sqlx, mirroring the teacher's PostGIS table-scan access pattern
// (internal/database) for "external collaborator" data sources spec.md §1
// explicitly delegates to the host.
package build

import (
	"context"
	"fmt"
	"sort"

	"github.com/jmoiron/sqlx"

	apperrors "github.com/arx-os/vecindex/pkg/errors"
)

// ExternalRow is one row of the user-supplied centroid table: an id, an
// optional parent id (nil/negative means root-or-isolated), and a vector.
type ExternalRow struct {
	ID     int64
	Parent int64 // -1 means "no parent"
	Vector []float32
}

// MaxTreeDepth is the inclusive upper bound on external tree depth spec.md
// §4.5 requires ("a tree of depth ∈ [1, 8]").
const MaxTreeDepth = 8

// ExternalTree is the validated, leveled result of ValidateExternalTree:
// Levels[0] is the leaf level (isolated vectors or rows with no parent
// reference below them), Levels[len-1] is the root.
type ExternalTree struct {
	RootID int64
	Levels [][]int64 // each level's row ids, leaf-first
	ByID   map[int64]ExternalRow
}

// ValidateExternalTree checks that rows form a single tree of depth in
// [1, MaxTreeDepth] (rejecting cycles and multiple roots per spec.md §4.5
// and the scenario-S6 testable property), then derives each row's level by
// DFS-computed height from the leaves. If every row is a parentless,
// childless singleton (no edges at all), an implicit root is synthesized
// as the mean of all rows.
func ValidateExternalTree(rows []ExternalRow) (ExternalTree, error) {
	if len(rows) == 0 {
		return ExternalTree{}, apperrors.InvalidInput("external tree has no rows", nil)
	}
	byID := make(map[int64]ExternalRow, len(rows))
	children := make(map[int64][]int64)
	var roots []int64
	hasParent := make(map[int64]bool)

	for _, r := range rows {
		if _, dup := byID[r.ID]; dup {
			return ExternalTree{}, apperrors.InvalidInput("duplicate row id", nil).WithDetails("id", r.ID)
		}
		byID[r.ID] = r
	}
	for _, r := range rows {
		if r.Parent < 0 {
			roots = append(roots, r.ID)
			continue
		}
		if _, ok := byID[r.Parent]; !ok {
			return ExternalTree{}, apperrors.InvalidInput("row references unknown parent", nil).
				WithDetails("id", r.ID).WithDetails("parent", r.Parent)
		}
		children[r.Parent] = append(children[r.Parent], r.ID)
		hasParent[r.ID] = true
	}

	allIsolated := len(roots) == len(rows) && len(children) == 0
	if allIsolated && len(rows) > 1 {
		return synthesizeImplicitRoot(rows, byID)
	}

	if len(roots) == 0 {
		return ExternalTree{}, apperrors.InvalidInput("external tree has no root (cycle?)", nil)
	}
	if len(roots) > 1 {
		return ExternalTree{}, apperrors.InvalidInput("external tree has multiple roots", nil).
			WithDetails("roots", roots)
	}
	root := roots[0]

	height := make(map[int64]int)
	visiting := make(map[int64]bool)
	var computeHeight func(id int64) (int, error)
	computeHeight = func(id int64) (int, error) {
		if h, ok := height[id]; ok {
			return h, nil
		}
		if visiting[id] {
			return 0, apperrors.InvalidInput("external tree has a cycle", nil).WithDetails("id", id)
		}
		visiting[id] = true
		h := 0
		for _, c := range children[id] {
			ch, err := computeHeight(c)
			if err != nil {
				return 0, err
			}
			if ch+1 > h {
				h = ch + 1
			}
		}
		visiting[id] = false
		height[id] = h
		return h, nil
	}
	maxHeight := 0
	for _, r := range rows {
		h, err := computeHeight(r.ID)
		if err != nil {
			return ExternalTree{}, err
		}
		if h > maxHeight {
			maxHeight = h
		}
	}
	depth := maxHeight + 1
	if depth < 1 || depth > MaxTreeDepth {
		return ExternalTree{}, apperrors.InvalidInput("external tree depth out of range", nil).
			WithDetails("depth", depth).WithDetails("max", MaxTreeDepth)
	}

	levels := make([][]int64, depth)
	for id, h := range height {
		level := h // leaf-first indexing
		levels[level] = append(levels[level], id)
	}
	for _, lv := range levels {
		sort.Slice(lv, func(i, j int) bool { return lv[i] < lv[j] })
	}

	return ExternalTree{RootID: root, Levels: levels, ByID: byID}, nil
}

// synthesizeImplicitRoot builds a synthetic 2-level tree (all rows as
// leaves, mean-of-children as root) when the table contains only isolated
// vertices, per spec.md §4.5.
func synthesizeImplicitRoot(rows []ExternalRow, byID map[int64]ExternalRow) (ExternalTree, error) {
	dims := len(rows[0].Vector)
	mean := make([]float32, dims)
	for _, r := range rows {
		if len(r.Vector) != dims {
			return ExternalTree{}, apperrors.InvalidInput("inconsistent vector dimensionality", nil)
		}
		for i, v := range r.Vector {
			mean[i] += v
		}
	}
	for i := range mean {
		mean[i] /= float32(len(rows))
	}
	const syntheticRootID = -1
	byID[syntheticRootID] = ExternalRow{ID: syntheticRootID, Parent: -1, Vector: mean}

	leafIDs := make([]int64, 0, len(rows))
	for _, r := range rows {
		leafIDs = append(leafIDs, r.ID)
	}
	sort.Slice(leafIDs, func(i, j int) bool { return leafIDs[i] < leafIDs[j] })

	return ExternalTree{
		RootID: syntheticRootID,
		Levels: [][]int64{leafIDs, {syntheticRootID}},
		ByID:   byID,
	}, nil
}

// LoadExternalRows reads the centroid forest from a SQL table via sqlx,
// expecting columns (id bigint, parent bigint, vector float4[]). table must
// be a trusted, operator-supplied identifier (it is not parameterizable in
// SQL and is interpolated directly into the query).
func LoadExternalRows(ctx context.Context, db *sqlx.DB, table string) ([]ExternalRow, error) {
	type dbRow struct {
		ID     int64     `db:"id"`
		Parent *int64    `db:"parent"`
		Vector []float64 `db:"vector"`
	}
	var rows []dbRow
	query := fmt.Sprintf("SELECT id, parent, vector FROM %s", table) //nolint:gosec // table is an operator-trusted identifier, not user input
	if err := db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("load external centroid table: %w", err)
	}
	out := make([]ExternalRow, len(rows))
	for i, r := range rows {
		parent := int64(-1)
		if r.Parent != nil {
			parent = *r.Parent
		}
		vec := make([]float32, len(r.Vector))
		for j, v := range r.Vector {
			vec[j] = float32(v)
		}
		out[i] = ExternalRow{ID: r.ID, Parent: parent, Vector: vec}
	}
	return out, nil
}
