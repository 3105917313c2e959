package compute

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/daviszhen/exechash/pkg/util"
)

// BuildAggrPartitions aggregates disjoint partitions in parallel. Each worker
// owns its table and budget; the only shared state is the layout cache, so no
// locking lives inside the table itself. Cancellation is cooperative between
// rows.
func BuildAggrPartitions(
	ctx context.Context,
	cache *LayoutCache,
	keyDefs []FieldDef,
	specs []AggrSpec,
	argDefs []FieldDef,
	parts [][]*Row,
	opts *util.HashTableOptions,
	newBudget func() MemoryBudget,
) ([]*AggrExec, error) {
	execs := make([]*AggrExec, len(parts))
	g, gctx := errgroup.WithContext(ctx)
	for i := range parts {
		i := i
		g.Go(func() error {
			var budget MemoryBudget
			if newBudget != nil {
				budget = newBudget()
			}
			exec := NewAggrExec(cache, keyDefs, specs, argDefs, opts, budget)
			for j, row := range parts[i] {
				if j&127 == 0 {
					if err := gctx.Err(); err != nil {
						return err
					}
				}
				exec.AddRow(row)
			}
			if err := exec.Finish(gctx); err != nil {
				return err
			}
			execs[i] = exec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return execs, nil
}
