package extract

import (
	"sort"

	"github.com/novatra/novabot/internal/tasks"
)

// PrepareTasks normalizes raw model output into store candidates, resolving
// provenance from the permalink index, and orders them by priority rank and
// then source timestamp. The sort is stable.
func PrepareTasks(raw []RawTask, index map[string]MessageRef, userID int64) []tasks.Candidate {
	out := make([]tasks.Candidate, 0, len(raw))
	for _, r := range raw {
		text := tasks.CleanText(r.Description)
		if text == "" {
			continue
		}

		link := tasks.ExtractMessageLink(r.MessageLink)
		var sourceID, sourceTS int64
		if link != "" {
			if ref, ok := index[link]; ok {
				sourceID, sourceTS = ref.ID, ref.Unix
			} else if id, ok := tasks.ExtractMessageID(link); ok {
				sourceID = id
			}
		}

		out = append(out, tasks.Candidate{
			Text:              text,
			Priority:          tasks.NormalizePriority(r.Priority),
			SourceMessageID:   sourceID,
			SourceMessageLink: link,
			SourceMessageTS:   sourceTS,
			DedupeKey:         tasks.DedupeKey(userID, sourceID, text),
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		ri, rj := out[i].Priority.Rank(), out[j].Priority.Rank()
		if ri != rj {
			return ri < rj
		}
		return out[i].SourceMessageTS < out[j].SourceMessageTS
	})
	return out
}
