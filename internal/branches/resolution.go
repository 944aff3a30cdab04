package branches

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ResolutionChoice selects which side of a conflicting translation wins.
type ResolutionChoice string

const (
	// ChooseSource takes the source branch's value.
	ChooseSource ResolutionChoice = "source"
	// ChooseTarget keeps the target branch's value untouched.
	ChooseTarget ResolutionChoice = "target"
	// ChooseOverride applies an explicit replacement value.
	ChooseOverride ResolutionChoice = "override"
)

// ErrInvalidResolutionChoice indicates an unknown resolution choice value.
var ErrInvalidResolutionChoice = errors.New("branches: invalid resolution choice")

// ParseResolutionChoice validates a raw choice string.
func ParseResolutionChoice(rawInput string) (ResolutionChoice, error) {
	switch strings.ToLower(strings.TrimSpace(rawInput)) {
	case string(ChooseSource):
		return ChooseSource, nil
	case string(ChooseTarget):
		return ChooseTarget, nil
	case string(ChooseOverride):
		return ChooseOverride, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidResolutionChoice, rawInput)
	}
}

// Resolution is one caller-supplied decision for a conflicting (key, language) pair.
type Resolution struct {
	Identity      KeyIdentity
	Language      LanguageCode
	Choice        ResolutionChoice
	OverrideValue string
}

// ConflictRef names one conflicting (key, language) pair in validation errors.
type ConflictRef struct {
	Identity KeyIdentity
	Language LanguageCode
}

// String renders the pair for error messages.
func (ref ConflictRef) String() string {
	return ref.Identity.String() + "[" + ref.Language.String() + "]"
}

// ValidationError reports that a resolution set does not exactly cover the
// computed conflict set. Missing lists conflicts with no resolution;
// Extraneous lists resolutions targeting no conflict, duplicates, and
// override resolutions carrying no value.
type ValidationError struct {
	Missing    []ConflictRef
	Extraneous []ConflictRef
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, 2)
	if len(e.Missing) > 0 {
		parts = append(parts, fmt.Sprintf("%d unresolved conflicts", len(e.Missing)))
	}
	if len(e.Extraneous) > 0 {
		parts = append(parts, fmt.Sprintf("%d extraneous resolutions", len(e.Extraneous)))
	}
	if len(parts) == 0 {
		return "branches: invalid resolution set"
	}
	return "branches: invalid resolution set: " + strings.Join(parts, ", ")
}

// validateResolutions checks that resolutions form an exact bijection with the
// conflict set. Violations reject the whole merge; there is no partial apply.
func validateResolutions(conflicts []ValueChange, resolutions []Resolution) (map[ConflictRef]Resolution, error) {
	expected := make(map[ConflictRef]bool, len(conflicts))
	for _, conflict := range conflicts {
		expected[ConflictRef{Identity: conflict.Identity, Language: conflict.Language}] = false
	}

	resolved := make(map[ConflictRef]Resolution, len(resolutions))
	var extraneous []ConflictRef
	for _, resolution := range resolutions {
		ref := ConflictRef{Identity: resolution.Identity, Language: resolution.Language}
		seen, isConflict := expected[ref]
		if !isConflict || seen {
			extraneous = append(extraneous, ref)
			continue
		}
		if resolution.Choice == ChooseOverride && resolution.OverrideValue == "" {
			extraneous = append(extraneous, ref)
			continue
		}
		expected[ref] = true
		resolved[ref] = resolution
	}

	var missing []ConflictRef
	for ref, seen := range expected {
		if !seen {
			missing = append(missing, ref)
		}
	}

	if len(missing) > 0 || len(extraneous) > 0 {
		sortConflictRefs(missing)
		sortConflictRefs(extraneous)
		return nil, &ValidationError{Missing: missing, Extraneous: extraneous}
	}
	return resolved, nil
}

func sortConflictRefs(refs []ConflictRef) {
	sort.Slice(refs, func(i, j int) bool {
		if refs[i].Identity.Namespace != refs[j].Identity.Namespace {
			return refs[i].Identity.Namespace < refs[j].Identity.Namespace
		}
		if refs[i].Identity.Name != refs[j].Identity.Name {
			return refs[i].Identity.Name < refs[j].Identity.Name
		}
		return refs[i].Language < refs[j].Language
	})
}
