package contextsource

import (
	"context"
	"fmt"

	"github.com/GrxyScxr1/vertana-sub000/internal/glossary"
)

// TermSearcher finds stored glossary terms; *store.Store implements it.
type TermSearcher interface {
	SearchTerms(ctx context.Context, sourceLang, targetLang, query string, limit int) (glossary.Glossary, error)
}

// LookupParams are the arguments a model passes to the glossary tool.
type LookupParams struct {
	Term string `json:"term" jsonschema:"the source-language word or phrase to look up"`
}

const lookupLimit = 20

// GlossaryLookup returns a passive source that searches the stored glossary
// of one language pair.
func GlossaryLookup(terms TermSearcher, sourceLang, targetLang string) Func[LookupParams] {
	return Func[LookupParams]{
		ToolName:        "lookup_glossary",
		ToolDescription: "Look up the approved translation of a term in the project glossary.",
		Gather: func(ctx context.Context, p LookupParams) (Result, error) {
			g, err := terms.SearchTerms(ctx, sourceLang, targetLang, p.Term, lookupLimit)
			if err != nil {
				return Result{}, fmt.Errorf("glossary lookup failed: %w", err)
			}
			if len(g) == 0 {
				return Result{Content: fmt.Sprintf("No glossary entry matches %q.", p.Term)}, nil
			}
			return Result{Content: g.Format(), Metadata: map[string]any{"matches": len(g)}}, nil
		},
	}
}
