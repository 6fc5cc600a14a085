package rant

import (
	"context"
	"strings"

	"github.com/samber/lo"

	"github.com/ventwave/ventboard/model"
	"github.com/ventwave/ventboard/plugin/hook"
)

// RegisterWordFilter rejects new rants whose text contains any of words,
// matched case-insensitively. It returns the number of words in effect; with
// none, nothing is registered.
func RegisterWordFilter(hc *hook.HookCenter, words []string) int {
	words = lo.Uniq(lo.FilterMap(words, func(w string, _ int) (string, bool) {
		w = strings.ToLower(strings.TrimSpace(w))
		return w, w != ""
	}))
	if len(words) == 0 {
		return 0
	}
	hc.Register(hook.BeforeRantCreate, 0, "word_filter", func(_ context.Context, _ string, data interface{}) (interface{}, error) {
		r, ok := data.(*model.Rant)
		if !ok {
			return data, nil
		}
		text := strings.ToLower(r.Text)
		if lo.ContainsBy(words, func(w string) bool { return strings.Contains(text, w) }) {
			return data, hook.ErrInterrupt
		}
		return data, nil
	})
	return len(words)
}
