package harness

import (
	"fmt"
	"reflect"
	"sort"
)

// checkRevision compares one revision's outcome with its expectations and
// records every mismatch on result.
func checkRevision(result *Result, i int, want Expect, got RevisionResult) {
	fail := func(format string, args ...any) {
		result.AddError(fmt.Sprintf("revisions[%d] (%s): ", i, got.Document) + fmt.Sprintf(format, args...))
	}

	if want.Error != got.Error {
		switch {
		case want.Error == "":
			fail("unexpected %s rejection", got.Error)
		case got.Error == "":
			fail("expected %s rejection, update was applied", want.Error)
		default:
			fail("expected %s rejection, got %s", want.Error, got.Error)
		}
	}

	if want.Diff != nil && *want.Diff != got.Diff {
		fail("diff: expected %+v, got %+v", *want.Diff, got.Diff)
	}
	if want.Levels != nil && !levelsEqual(want.Levels, got.Levels) {
		fail("levels: expected %v, got %v", want.Levels, got.Levels)
	}

	checkKeys(fail, "compiled", want.Compiled, got.Partition.Compiled)
	checkKeys(fail, "cached", want.Cached, got.Partition.Cached)
	checkKeys(fail, "invalid", want.Invalid, got.Partition.Invalid)
	checkKeys(fail, "errored", want.Errored, got.Partition.Errored)

	if want.GeneratorCalls != nil && *want.GeneratorCalls != got.GeneratorCalls {
		fail("generator_calls: expected %d, got %d", *want.GeneratorCalls, got.GeneratorCalls)
	}
}

// checkKeys compares identity key sets ignoring order. A nil want is not
// checked.
func checkKeys(fail func(string, ...any), label string, want, got []string) {
	if want == nil {
		return
	}
	w := sortedCopy(want)
	g := sortedCopy(got)
	if !reflect.DeepEqual(w, g) {
		fail("%s: expected %v, got %v", label, w, g)
	}
}

// levelsEqual compares plans level by level; names within a level are
// unordered.
func levelsEqual(want, got [][]string) bool {
	if len(want) != len(got) {
		return false
	}
	for i := range want {
		if !reflect.DeepEqual(sortedCopy(want[i]), sortedCopy(got[i])) {
			return false
		}
	}
	return true
}

func sortedCopy(s []string) []string {
	out := make([]string, len(s))
	copy(out, s)
	sort.Strings(out)
	return out
}
