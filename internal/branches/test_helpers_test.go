package branches

import "testing"

func mustBranchID(t *testing.T, value string) BranchID {
	t.Helper()
	id, err := NewBranchID(value)
	if err != nil {
		t.Fatalf("unexpected branch id error: %v", err)
	}
	return id
}

func mustUserID(t *testing.T, value string) UserID {
	t.Helper()
	id, err := NewUserID(value)
	if err != nil {
		t.Fatalf("unexpected user id error: %v", err)
	}
	return id
}

type snapshotBuilder struct {
	snapshot BranchSnapshot
}

func newSnapshot(branchID, name string) *snapshotBuilder {
	return &snapshotBuilder{
		snapshot: BranchSnapshot{
			Branch: BranchRef{BranchID: branchID, Name: name},
			Keys:   make(map[KeyIdentity]KeySnapshot),
		},
	}
}

func (b *snapshotBuilder) withKey(namespace, name string, translations map[string]TranslationSnapshot) *snapshotBuilder {
	identity := KeyIdentity{Namespace: namespace, Name: name}
	key := KeySnapshot{
		Identity:     identity,
		Translations: make(map[LanguageCode]TranslationSnapshot, len(translations)),
	}
	for language, translation := range translations {
		key.Translations[LanguageCode(language)] = translation
	}
	b.snapshot.Keys[identity] = key
	return b
}

func (b *snapshotBuilder) build() BranchSnapshot {
	return b.snapshot
}

func pending(value string) TranslationSnapshot {
	return TranslationSnapshot{Value: value, Status: StatusPending}
}

func approved(value string) TranslationSnapshot {
	return TranslationSnapshot{Value: value, Status: StatusApproved}
}

func rejected(value string) TranslationSnapshot {
	return TranslationSnapshot{Value: value, Status: StatusRejected}
}
