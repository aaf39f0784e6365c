package layout

import (
	"fmt"

	"github.com/xuri/efp"
)

// ValidateFormula tokenizes a formula and checks that functions and
// subexpressions are balanced.
func ValidateFormula(formula string) error {
	ps := efp.ExcelParser()
	tokens := ps.Parse(formula)

	depth := 0
	for _, tok := range tokens {
		if tok.TType != efp.TokenTypeFunction && tok.TType != efp.TokenTypeSubexpression {
			continue
		}
		switch tok.TSubType {
		case efp.TokenSubTypeStart:
			depth++
		case efp.TokenSubTypeStop:
			depth--
			if depth < 0 {
				return fmt.Errorf("invalid formula %q: unexpected closing parenthesis", formula)
			}
		}
	}
	if depth != 0 {
		return fmt.Errorf("invalid formula %q: unbalanced parentheses", formula)
	}
	return nil
}
