package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/dhall/internal/imports"
	"github.com/roach88/dhall/internal/parser"
	"github.com/roach88/dhall/internal/printer"
	"github.com/roach88/dhall/internal/typecheck"
)

// explanations describes each diagnostic code for --explain.
var explanations = map[string]string{
	"UNBOUND_VARIABLE":       "A variable is used outside the scope of any binder with that name, or its @index skips past every binder.",
	"INVALID_INPUT_TYPE":     "A value appears where a type is required: a function input annotation, or an if condition that is not a Bool.",
	"INVALID_OUTPUT_TYPE":    "The body of a function type is not a type.",
	"TYPE_MISMATCH":          "An expression's type differs from the type required where it is used.",
	"DUPLICATE_FIELD":        "A record or union repeats a label.",
	"MISSING_FIELD":          "A field or union alternative is selected that the record or union does not have.",
	"NOT_A_FUNCTION":         "Something that is not a function is applied to an argument.",
	"NOT_A_RECORD":           "A record operation is applied to a value that is not a record.",
	"NOT_A_UNION":            "merge is applied to something that is neither a union nor an Optional.",
	"INVALID_LIST_TYPE":      "An empty list is annotated with a type that is not List T.",
	"INVALID_FIELD_TYPE":     "A record or union type has a field whose annotation is not a type.",
	"INVALID_BRANCH":         "The branches of an if expression are not types of a value.",
	"FIELD_COLLISION":        "Combining two records assigns the same non-record field twice.",
	"MISSING_HANDLER":        "merge has no handler for one of the union's alternatives.",
	"UNUSED_HANDLER":         "merge has a handler for an alternative the union does not have.",
	"HANDLER_NOT_A_FUNCTION": "A merge handler for an alternative with a value is not a function.",
	"DEPENDENT_HANDLER":      "A merge handler's result type depends on the handled value.",
	"MISSING_ANNOTATION":     "merge on an empty union, or toMap on an empty record, needs a type annotation.",
	"ASSERTION_FAILED":       "The two sides of an assert are not equal after normalization.",
	"NOT_AN_EQUIVALENCE":     "assert expects an expression of the form a ≡ b.",
	"UNTYPED":                "Sort has no type.",
	"UNRESOLVED_IMPORT":      "An import reached the type checker without being resolved.",

	"IMPORT_CYCLE":              "An import refers back to a document that is still being resolved. The chain shows the path.",
	"HASH_MISMATCH":             "A pinned import's semantic hash differs from the hash written in the source.",
	"IMPORT_SECURITY_VIOLATION": "An import is forbidden by the sandbox policy, by referential transparency, or by the remote server's CORS headers.",
	"IMPORT_FAILURE":            "An import could not be read, fetched, parsed, or type-checked.",

	"PARSE_ERROR":         "The source is not syntactically valid.",
	"INVALID_ENCODING":    "The bytes are not a valid canonical encoding of an expression.",
	"UNSUPPORTED_VERSION": "The encoding carries a version tag this build does not understand.",
	"NON_FINITE_DOUBLE":   "The encoding contains a double that is not finite where one is required.",
	"UNENCODABLE":         "The expression cannot be encoded, for example because it still contains an import.",
	"EXPORT_ERROR":        "The value contains something with no counterpart in the export format, such as a function.",
}

// Explanation is the detailed form of a diagnostic, printed by --explain
// and attached as details to JSON error responses.
type Explanation struct {
	Code        string   `json:"code"`
	Summary     string   `json:"summary,omitempty"`
	Location    string   `json:"location,omitempty"`
	Expression  string   `json:"expression,omitempty"`
	Expected    string   `json:"expected,omitempty"`
	Actual      string   `json:"actual,omitempty"`
	ImportChain []string `json:"import_chain,omitempty"`
}

// Explain builds the explanation for err. The innermost type or parse error
// in the chain supplies positions and types; the outermost import error
// supplies the chain of imports that led to it.
func Explain(err error) *Explanation {
	if err == nil {
		return nil
	}
	code := ErrorCode(err)
	ex := &Explanation{Code: code, Summary: explanations[code]}

	var te *typecheck.TypeError
	if errors.As(err, &te) {
		if !te.Pos.IsZero() {
			ex.Location = te.Pos.String()
		}
		if te.Expr != nil {
			ex.Expression = printer.Print(te.Expr)
		}
		if te.Expected != nil {
			ex.Expected = printer.Print(te.Expected)
		}
		if te.Actual != nil {
			ex.Actual = printer.Print(te.Actual)
		}
	}
	var pe *parser.ParseError
	if errors.As(err, &pe) && ex.Location == "" {
		ex.Location = pe.Pos.String()
	}
	var ie *imports.ImportError
	if errors.As(err, &ie) {
		ex.ImportChain = ie.Chain
	}
	return ex
}

// String renders the explanation as indented text.
func (e *Explanation) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", MutedStyle.Render("Explanation:"), e.Code)
	if e.Summary != "" {
		fmt.Fprintf(&b, "  %s\n", e.Summary)
	}
	row := func(label, value string) {
		if value != "" {
			fmt.Fprintf(&b, "  %-11s %s\n", label+":", value)
		}
	}
	row("location", e.Location)
	row("expression", e.Expression)
	row("expected", e.Expected)
	row("actual", e.Actual)
	if len(e.ImportChain) > 0 {
		row("imports", strings.Join(e.ImportChain, " -> "))
	}
	return b.String()
}
