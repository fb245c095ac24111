package note

import "github.com/sergi/go-diff/diffmatchpatch"

// contentPatches returns, for each revision, the patch turning the previous
// revision's content into its own. The first revision is diffed against "".
func contentPatches(revs []Revision) []string {
	dmp := diffmatchpatch.New()
	patches := make([]string, len(revs))

	prev := ""
	for i, rev := range revs {
		patches[i] = dmp.PatchToText(dmp.PatchMake(prev, rev.Content))
		prev = rev.Content
	}
	return patches
}
