package branches

import (
	"errors"
	"testing"
)

func conflictFor(namespace, name, language string) ValueChange {
	return ValueChange{
		Identity:    KeyIdentity{Namespace: namespace, Name: name},
		Language:    LanguageCode(language),
		SourceValue: "source",
		TargetValue: "target",
	}
}

func TestValidateResolutionsAcceptsExactCoverage(t *testing.T) {
	conflicts := []ValueChange{
		conflictFor("notice", "banner", "en"),
		conflictFor("notice", "banner", "de"),
	}
	resolutions := []Resolution{
		{Identity: KeyIdentity{Namespace: "notice", Name: "banner"}, Language: "en", Choice: ChooseSource},
		{Identity: KeyIdentity{Namespace: "notice", Name: "banner"}, Language: "de", Choice: ChooseTarget},
	}

	resolved, err := validateResolutions(conflicts, resolutions)
	if err != nil {
		t.Fatalf("unexpected validation error: %v", err)
	}
	if len(resolved) != 2 {
		t.Fatalf("expected 2 resolved pairs, got %d", len(resolved))
	}
}

func TestValidateResolutionsRejectsMissingPairs(t *testing.T) {
	conflicts := []ValueChange{
		conflictFor("notice", "banner", "en"),
		conflictFor("notice", "banner", "de"),
	}
	resolutions := []Resolution{
		{Identity: KeyIdentity{Namespace: "notice", Name: "banner"}, Language: "en", Choice: ChooseSource},
	}

	_, err := validateResolutions(conflicts, resolutions)
	var validation *ValidationError
	if !errors.As(err, &validation) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if len(validation.Missing) != 1 || validation.Missing[0].Language != "de" {
		t.Fatalf("unexpected missing list %#v", validation.Missing)
	}
	if len(validation.Extraneous) != 0 {
		t.Fatalf("unexpected extraneous list %#v", validation.Extraneous)
	}
}

func TestValidateResolutionsRejectsExtraneousPairs(t *testing.T) {
	conflicts := []ValueChange{
		conflictFor("notice", "banner", "en"),
	}
	resolutions := []Resolution{
		{Identity: KeyIdentity{Namespace: "notice", Name: "banner"}, Language: "en", Choice: ChooseSource},
		{Identity: KeyIdentity{Namespace: "common", Name: "greeting"}, Language: "en", Choice: ChooseSource},
	}

	_, err := validateResolutions(conflicts, resolutions)
	var validation *ValidationError
	if !errors.As(err, &validation) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if len(validation.Extraneous) != 1 || validation.Extraneous[0].Identity.Namespace != "common" {
		t.Fatalf("unexpected extraneous list %#v", validation.Extraneous)
	}
	if len(validation.Missing) != 0 {
		t.Fatalf("unexpected missing list %#v", validation.Missing)
	}
}

func TestValidateResolutionsRejectsDuplicates(t *testing.T) {
	conflicts := []ValueChange{
		conflictFor("notice", "banner", "en"),
	}
	resolutions := []Resolution{
		{Identity: KeyIdentity{Namespace: "notice", Name: "banner"}, Language: "en", Choice: ChooseSource},
		{Identity: KeyIdentity{Namespace: "notice", Name: "banner"}, Language: "en", Choice: ChooseTarget},
	}

	_, err := validateResolutions(conflicts, resolutions)
	var validation *ValidationError
	if !errors.As(err, &validation) {
		t.Fatalf("expected ValidationError for duplicate resolution, got %v", err)
	}
	if len(validation.Extraneous) != 1 {
		t.Fatalf("duplicate should report as extraneous, got %#v", validation.Extraneous)
	}
}

func TestValidateResolutionsRejectsEmptyOverrideValue(t *testing.T) {
	conflicts := []ValueChange{
		conflictFor("notice", "banner", "en"),
	}
	resolutions := []Resolution{
		{Identity: KeyIdentity{Namespace: "notice", Name: "banner"}, Language: "en", Choice: ChooseOverride},
	}

	_, err := validateResolutions(conflicts, resolutions)
	var validation *ValidationError
	if !errors.As(err, &validation) {
		t.Fatalf("expected ValidationError for empty override, got %v", err)
	}
}

func TestValidateResolutionsPassesWithNoConflictsAndNoResolutions(t *testing.T) {
	resolved, err := validateResolutions(nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(resolved) != 0 {
		t.Fatalf("expected empty resolution map")
	}
}

func TestParseResolutionChoice(t *testing.T) {
	cases := []struct {
		raw     string
		want    ResolutionChoice
		wantErr bool
	}{
		{raw: "source", want: ChooseSource},
		{raw: " Target ", want: ChooseTarget},
		{raw: "OVERRIDE", want: ChooseOverride},
		{raw: "keep", wantErr: true},
		{raw: "", wantErr: true},
	}
	for _, testCase := range cases {
		choice, err := ParseResolutionChoice(testCase.raw)
		if testCase.wantErr {
			if err == nil {
				t.Fatalf("expected error for %q", testCase.raw)
			}
			continue
		}
		if err != nil {
			t.Fatalf("unexpected error for %q: %v", testCase.raw, err)
		}
		if choice != testCase.want {
			t.Fatalf("parsed %q to %q, want %q", testCase.raw, choice, testCase.want)
		}
	}
}
