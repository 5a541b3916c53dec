package source

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
)

// Fixture loads signals from a JSON file (a list of Signal objects).
type Fixture struct {
	path string
}

// NewFixture creates a fixture source reading path.
func NewFixture(path string) *Fixture {
	return &Fixture{path: path}
}

func (f *Fixture) Name() SourceType { return SourceFixture }

func (f *Fixture) Collect(ctx context.Context) ([]Signal, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(f.path)
	if err != nil {
		return nil, fmt.Errorf("read fixture %s: %w", f.path, err)
	}

	var signals []Signal
	if err := json.Unmarshal(data, &signals); err != nil {
		return nil, fmt.Errorf("parse fixture %s: %w", f.path, err)
	}
	return signals, nil
}
