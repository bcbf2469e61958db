package harness

import (
	"fmt"
	"slices"
	"strings"
)

// CheckExpectations compares an outcome with the expected one and returns
// a message for each mismatch.
func CheckExpectations(want Expect, got Outcome) []string {
	var errs []string

	if want.Error != "" {
		if got.Error != want.Error {
			errs = append(errs, fmt.Sprintf("expected error %s, got %s", want.Error, describe(got)))
		}
		return errs
	}
	if got.Error != "" {
		return append(errs, fmt.Sprintf("unexpected error %s: %s", got.Error, got.ErrorMessage))
	}

	check := func(field, want, got string) {
		if want != "" && want != got {
			errs = append(errs, fmt.Sprintf("%s: expected %q, got %q", field, want, got))
		}
	}
	check("type", strings.TrimSpace(want.Type), got.Type)
	check("normal", strings.TrimSpace(want.Normal), got.Normal)
	check("json", strings.TrimSpace(want.JSON), got.JSON)

	if want.Imports != nil && !slices.Equal(want.Imports, got.Imports) {
		errs = append(errs, fmt.Sprintf("imports: expected %v, got %v", want.Imports, got.Imports))
	}
	return errs
}

func describe(o Outcome) string {
	if o.Error != "" {
		return o.Error
	}
	return "success (" + o.Normal + ")"
}
