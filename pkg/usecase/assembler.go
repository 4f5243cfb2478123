package usecase

import "github.com/secmon-lab/kokoro/pkg/domain/model"

// AssembleInput carries everything a single prompt is built from
type AssembleInput struct {
	Directives []string
	Recent     []*model.Message
	Retrieved  []*model.Message
	Emotion    string
	// Note is injected as one system entry when not empty
	Note string
	Text string
}

// Assemble builds the ordered prompt: directives, the recent window with
// roles preserved, retrieved excerpts, the emotion note, the optional note
// and finally the new user message.
func Assemble(in AssembleInput) []model.ContextEntry {
	entries := make([]model.ContextEntry, 0, len(in.Directives)+len(in.Recent)+len(in.Retrieved)+3)

	for _, d := range in.Directives {
		entries = append(entries, model.SystemEntry(d))
	}
	for _, m := range in.Recent {
		entries = append(entries, model.ContextEntry{Role: m.Role, Content: m.Text})
	}
	for _, m := range in.Retrieved {
		entries = append(entries, model.SystemEntry(buildExcerptNote(m)))
	}
	entries = append(entries, model.SystemEntry(buildEmotionNote(in.Emotion)))
	if in.Note != "" {
		entries = append(entries, model.SystemEntry(in.Note))
	}
	entries = append(entries, model.UserEntry(in.Text))

	return entries
}
