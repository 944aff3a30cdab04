package branches

import "sort"

// AddedKey describes a key present in the source branch and absent from the target.
type AddedKey struct {
	Identity     KeyIdentity
	Description  string
	SourcePath   string
	Translations map[LanguageCode]string
}

// DeletedKey describes a key present in the target branch and absent from the
// source. It is informational: the merge has nothing to apply from the source.
type DeletedKey struct {
	Identity              KeyIdentity
	LastKnownTranslations map[LanguageCode]string
}

// ValueChange describes a per-language value divergence between the branches.
// It backs both the modified and the conflict buckets; the bucket it lands in
// encodes whether the target side is safely overwritable.
type ValueChange struct {
	Identity    KeyIdentity
	Language    LanguageCode
	SourceValue string
	TargetValue string
}

// BranchDiffResult is the classified difference between two branch snapshots.
// Every key identity present in either snapshot appears in exactly one bucket.
type BranchDiffResult struct {
	Source    BranchRef
	Target    BranchRef
	Added     []AddedKey
	Modified  []ValueChange
	Deleted   []DeletedKey
	Conflicts []ValueChange
}

// Empty reports whether the two branches agree on every key and language.
func (r BranchDiffResult) Empty() bool {
	return len(r.Added) == 0 && len(r.Modified) == 0 && len(r.Deleted) == 0 && len(r.Conflicts) == 0
}

// computeDiff classifies every divergence between the source and target
// snapshots. It is deterministic and has no side effects: entries within each
// bucket are sorted by (namespace, name, language).
//
// A key only in the source is Added; a key only in the target is Deleted. For
// keys on both sides each source-side language is compared by value: equal
// values produce no entry, a divergence over an APPROVED target translation is
// a Conflict (curated content is never silently overwritten), and any other
// divergence is Modified. Languages present only on the target are left
// untouched because the source has nothing to contribute for them.
func computeDiff(source, target BranchSnapshot) BranchDiffResult {
	result := BranchDiffResult{
		Source: source.Branch,
		Target: target.Branch,
	}

	identities := make([]KeyIdentity, 0, len(source.Keys)+len(target.Keys))
	for identity := range source.Keys {
		identities = append(identities, identity)
	}
	for identity := range target.Keys {
		if _, inSource := source.Keys[identity]; !inSource {
			identities = append(identities, identity)
		}
	}
	sortIdentities(identities)

	for _, identity := range identities {
		sourceKey, inSource := source.Keys[identity]
		targetKey, inTarget := target.Keys[identity]

		switch {
		case inSource && !inTarget:
			result.Added = append(result.Added, AddedKey{
				Identity:     identity,
				Description:  sourceKey.Description,
				SourcePath:   sourceKey.SourcePath,
				Translations: valuesByLanguage(sourceKey.Translations),
			})
		case !inSource && inTarget:
			result.Deleted = append(result.Deleted, DeletedKey{
				Identity:              identity,
				LastKnownTranslations: valuesByLanguage(targetKey.Translations),
			})
		default:
			modified, conflicts := diffLanguages(identity, sourceKey, targetKey)
			result.Modified = append(result.Modified, modified...)
			result.Conflicts = append(result.Conflicts, conflicts...)
		}
	}

	return result
}

func diffLanguages(identity KeyIdentity, sourceKey, targetKey KeySnapshot) (modified, conflicts []ValueChange) {
	languages := make([]LanguageCode, 0, len(sourceKey.Translations))
	for language := range sourceKey.Translations {
		languages = append(languages, language)
	}
	sort.Slice(languages, func(i, j int) bool { return languages[i] < languages[j] })

	for _, language := range languages {
		sourceTranslation := sourceKey.Translations[language]
		targetTranslation, hasTarget := targetKey.Translations[language]
		if hasTarget && sourceTranslation.Value == targetTranslation.Value {
			continue
		}

		change := ValueChange{
			Identity:    identity,
			Language:    language,
			SourceValue: sourceTranslation.Value,
			TargetValue: targetTranslation.Value,
		}
		if hasTarget && targetTranslation.Status == StatusApproved {
			conflicts = append(conflicts, change)
		} else {
			modified = append(modified, change)
		}
	}
	return modified, conflicts
}

func valuesByLanguage(translations map[LanguageCode]TranslationSnapshot) map[LanguageCode]string {
	values := make(map[LanguageCode]string, len(translations))
	for language, translation := range translations {
		values[language] = translation.Value
	}
	return values
}

func sortIdentities(identities []KeyIdentity) {
	sort.Slice(identities, func(i, j int) bool {
		if identities[i].Namespace != identities[j].Namespace {
			return identities[i].Namespace < identities[j].Namespace
		}
		return identities[i].Name < identities[j].Name
	})
}
