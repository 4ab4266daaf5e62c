// Package contextsource supplies background material for a translation.
// Required sources are gathered once before the first chunk. Passive
// sources are offered to the models as tools they may call while
// translating.
package contextsource

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/GrxyScxr1/vertana-sub000/internal/errs"
	"github.com/GrxyScxr1/vertana-sub000/internal/llm"
	"github.com/GrxyScxr1/vertana-sub000/internal/logger"
)

// Result is gathered context.
type Result struct {
	Content  string
	Metadata map[string]any
}

// Required is gathered unconditionally before translation starts.
type Required interface {
	Name() string
	Gather(ctx context.Context) (Result, error)
}

// Passive is gathered only when a model asks for it.
type Passive interface {
	Name() string
	Description() string
	// Tool exposes the source to a model.
	Tool() (llm.Tool, error)
}

// GatherAll gathers every required source in order and joins their
// non-empty contents into one block of free-text context.
func GatherAll(ctx context.Context, sources []Required) (string, error) {
	var parts []string
	for _, src := range sources {
		if err := errs.CheckContext(ctx); err != nil {
			return "", err
		}
		res, err := src.Gather(ctx)
		if err != nil {
			return "", fmt.Errorf("failed to gather context from %s: %w", src.Name(), err)
		}
		if content := strings.TrimSpace(res.Content); content != "" {
			parts = append(parts, content)
		}
		logger.Debug("gathered %d bytes of context from %s", len(res.Content), src.Name())
	}
	return strings.Join(parts, "\n\n"), nil
}

// AsTools converts passive sources into tools.
func AsTools(sources []Passive) ([]llm.Tool, error) {
	tools := make([]llm.Tool, 0, len(sources))
	for _, src := range sources {
		tool, err := src.Tool()
		if err != nil {
			return nil, err
		}
		tools = append(tools, tool)
	}
	return tools, nil
}

// Static is a required source with fixed content.
type Static struct {
	Label   string
	Content string
}

func (s Static) Name() string {
	if s.Label == "" {
		return "static"
	}
	return s.Label
}

func (s Static) Gather(ctx context.Context) (Result, error) {
	if err := errs.CheckContext(ctx); err != nil {
		return Result{}, err
	}
	return Result{Content: s.Content}, nil
}

// File is a required source that reads a file on every gather.
type File struct {
	Path string
}

func (f File) Name() string { return "file:" + f.Path }

func (f File) Gather(ctx context.Context) (Result, error) {
	if err := errs.CheckContext(ctx); err != nil {
		return Result{}, err
	}
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return Result{}, fmt.Errorf("failed to read context file: %w", err)
	}
	return Result{Content: string(data), Metadata: map[string]any{"path": f.Path}}, nil
}

// Func adapts a function taking typed parameters P into a Passive source.
// The tool's parameter schema is inferred from P.
type Func[P any] struct {
	ToolName        string
	ToolDescription string
	Gather          func(ctx context.Context, params P) (Result, error)
}

func (f Func[P]) Name() string        { return f.ToolName }
func (f Func[P]) Description() string { return f.ToolDescription }

func (f Func[P]) Tool() (llm.Tool, error) {
	return llm.ToolFor(f.ToolName, f.ToolDescription, func(ctx context.Context, params P) (string, error) {
		res, err := f.Gather(ctx, params)
		if err != nil {
			return "", err
		}
		logger.Debug("tool %s returned %d bytes", f.ToolName, len(res.Content))
		return res.Content, nil
	})
}
