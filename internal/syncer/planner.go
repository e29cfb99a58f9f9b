package syncer

import (
	"fmt"
	"sort"
)

// OpKind is one planned action.
type OpKind string

const (
	OpCopy   OpKind = "copy"
	OpUpdate OpKind = "update"
	OpDelete OpKind = "delete"
	OpSkip   OpKind = "skip"
)

// Operation pairs an entry with the action the diff decided on. Skip always
// carries a reason.
type Operation struct {
	Kind   OpKind
	Entry  Entry
	Reason string
}

// Plan is the ordered operation sequence for one sync pass: directories
// before the files inside them, deletes last and deepest-first.
type Plan struct {
	Ops []Operation
}

// Changes counts the mutating operations in the plan.
func (p *Plan) Changes() (copies, updates, deletes int) {
	for _, op := range p.Ops {
		switch op.Kind {
		case OpCopy:
			copies++
		case OpUpdate:
			updates++
		case OpDelete:
			deletes++
		}
	}
	return
}

// HasDeletes reports whether the plan would remove anything.
func (p *Plan) HasDeletes() bool {
	_, _, deletes := p.Changes()
	return deletes > 0
}

// PlanOptions tunes the diff.
type PlanOptions struct {
	// Mirror deletes destination entries absent from the source.
	Mirror bool

	// Checksum compares file content hashes instead of trusting
	// size/mtime. Requested by --verify; everything else stays O(1)
	// metadata comparisons per entry.
	Checksum bool
}

// ChecksumFunc computes content hashes on demand during planning. Source
// and destination are hashed by their own endpoint so neither side's bytes
// cross the wire.
type ChecksumFunc func(relPath string) (string, error)

// BuildPlan diffs source entries against destination entries. Both listings
// must already be exclusion-filtered by List, which is what keeps an
// excluded destination-only entry out of mirror deletion.
func BuildPlan(source, dest []Entry, opts PlanOptions, srcSum, dstSum ChecksumFunc) (*Plan, error) {
	destByPath := make(map[string]Entry, len(dest))
	for _, e := range dest {
		destByPath[e.RelPath] = e
	}
	sourcePaths := make(map[string]struct{}, len(source))

	plan := &Plan{}
	for _, src := range source {
		sourcePaths[src.RelPath] = struct{}{}

		dst, exists := destByPath[src.RelPath]
		if !exists {
			plan.Ops = append(plan.Ops, Operation{Kind: OpCopy, Entry: src})
			continue
		}
		if src.Kind == KindDir && dst.Kind == KindDir {
			plan.Ops = append(plan.Ops, Operation{Kind: OpSkip, Entry: src, Reason: "unchanged"})
			continue
		}
		changed, err := diverged(src, dst, opts, srcSum, dstSum)
		if err != nil {
			return nil, err
		}
		if changed {
			plan.Ops = append(plan.Ops, Operation{Kind: OpUpdate, Entry: src})
		} else {
			plan.Ops = append(plan.Ops, Operation{Kind: OpSkip, Entry: src, Reason: "unchanged"})
		}
	}

	if opts.Mirror {
		var deletes []Operation
		for _, dst := range dest {
			if _, kept := sourcePaths[dst.RelPath]; !kept {
				deletes = append(deletes, Operation{Kind: OpDelete, Entry: dst})
			}
		}
		// Children before parents, so directory deletes find them empty.
		sort.Slice(deletes, func(i, j int) bool {
			di, dj := depth(deletes[i].Entry.RelPath), depth(deletes[j].Entry.RelPath)
			if di != dj {
				return di > dj
			}
			return deletes[i].Entry.RelPath < deletes[j].Entry.RelPath
		})
		plan.Ops = append(plan.Ops, deletes...)
	}

	return plan, nil
}

// diverged decides whether a source file needs to replace its destination
// counterpart.
func diverged(src, dst Entry, opts PlanOptions, srcSum, dstSum ChecksumFunc) (bool, error) {
	if src.Kind != dst.Kind {
		return true, nil
	}

	if opts.Checksum && src.Kind == KindFile {
		srcHash, err := srcSum(src.RelPath)
		if err != nil {
			return false, fmt.Errorf("checksum %s: %w", src.RelPath, err)
		}
		dstHash, err := dstSum(dst.RelPath)
		if err != nil {
			return false, fmt.Errorf("checksum %s: %w", dst.RelPath, err)
		}
		return srcHash != dstHash, nil
	}

	if src.Size >= 0 && dst.Size >= 0 && src.Size != dst.Size {
		return true, nil
	}
	// With sizes unknown, mtime is the sole divergence signal; equal
	// mtimes are treated as unchanged rather than re-transferred.
	return !sameTime(src.Mtime, dst.Mtime), nil
}
