package detectors

import (
	"fmt"

	"fwhelper/internal/analysis"
)

// New returns the helper for kind.
func New(kind analysis.Kind, layout Layout) (analysis.Helper, error) {
	switch kind {
	case analysis.KindDwordCopy:
		return NewDwordCopy(), nil
	case analysis.KindSwitchCase:
		return NewSwitchCase(layout), nil
	case analysis.KindU32Write:
		return NewU32Write(), nil
	}
	return nil, fmt.Errorf("no helper for kind %q", kind)
}

// ForKinds returns helpers for kinds, in order.
func ForKinds(kinds []analysis.Kind, layout Layout) ([]analysis.Helper, error) {
	helpers := make([]analysis.Helper, 0, len(kinds))
	for _, k := range kinds {
		h, err := New(k, layout)
		if err != nil {
			return nil, err
		}
		helpers = append(helpers, h)
	}
	return helpers, nil
}
