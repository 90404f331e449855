package scanner

import (
	"context"
	"fmt"

	"dropwatch/internal/files"
	"dropwatch/internal/logging"
	"dropwatch/internal/tree"
)

const (
	methodReadDir = "readdir"
	methodQuery   = "query"
	methodWalk    = "walk"
)

// enumerate lists the target, keeping only entries the filter accepts.
// Path locators are read directly; handle locators go through the tree's
// batched query and fall back to a per-entry walk.
func (s *Scanner) enumerate(ctx context.Context) (map[string]files.Record, string, error) {
	current := make(map[string]files.Record)
	collect := func(e tree.Entry) {
		if e.IsDir || !s.filter.Match(e.Name) {
			return
		}
		current[e.Name] = files.NewRecord(s.target, e.Name, e.Size, e.ModTime)
	}
	collectBatch := func(batch []tree.Entry) error {
		for _, e := range batch {
			collect(e)
		}
		return nil
	}

	if dir, ok := s.target.Path(); ok {
		if err := tree.ReadDir(ctx, dir, s.batchSize, collectBatch); err != nil {
			return nil, methodReadDir, err
		}
		return current, methodReadDir, nil
	}

	if s.tree == nil {
		t, err := tree.Open(s.target, s.probeInterval, s.logger)
		if err != nil {
			return nil, methodQuery, err
		}
		s.tree = t
	}
	err := s.tree.Query(ctx, s.batchSize, collectBatch)
	if err == nil {
		return current, methodQuery, nil
	}
	if ctx.Err() != nil {
		return nil, methodQuery, ctx.Err()
	}
	s.logger.Info("structured query failed; falling back to walk", logging.Error(err))

	clear(current)
	err = s.tree.Walk(ctx, func(e tree.Entry) error {
		collect(e)
		return nil
	})
	if err != nil {
		return nil, methodWalk, fmt.Errorf("walk after failed query: %w", err)
	}
	return current, methodWalk, nil
}
