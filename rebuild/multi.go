package rebuild

import (
	"context"
	"fmt"

	"github.com/lexandro/buildwatch/changeset"
)

// Multi runs builders in order and stops at the first failure.
type Multi []Builder

func (m Multi) Build(ctx context.Context, snapshot changeset.Snapshot) error {
	for i, b := range m {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := b.Build(ctx, snapshot); err != nil {
			return fmt.Errorf("builder %d: %w", i, err)
		}
	}
	return nil
}
