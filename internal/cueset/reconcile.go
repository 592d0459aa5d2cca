package cueset

import (
	"github.com/webtiming/timingsrc/internal/dataset"
)

// Reconcile makes ds hold exactly the cues in args: every arg is applied
// and every key of ds missing from args is removed, in one batch.
func Reconcile(ds *dataset.Dataset, args []dataset.Arg, opts ...dataset.UpdateOption) (*dataset.Batch, error) {
	keep := make(map[string]struct{}, len(args))
	for _, a := range args {
		keep[a.Key] = struct{}{}
	}
	b := ds.NewBuilder(opts...)
	for _, a := range args {
		b.Add(a)
	}
	for _, key := range ds.Keys() {
		if _, ok := keep[key]; !ok {
			b.RemoveCue(key)
		}
	}
	return b.Submit()
}
