package fulltext

import "sort"

// Highlight wraps every byte range in offsets with before/after markers,
// merging overlapping or adjacent ranges so a marker pair is never
// nested inside another. content must be the exact string the offsets
// were recorded against.
func Highlight(content string, offsets []Offset, before, after string) string {
	if len(offsets) == 0 {
		return content
	}
	merged := mergeOffsets(offsets)

	var out []byte
	prev := 0
	for _, o := range merged {
		start, end := o.Start, o.End
		if start < prev {
			start = prev
		}
		if start >= end || start < 0 || end > len(content) {
			continue
		}
		out = append(out, content[prev:start]...)
		out = append(out, before...)
		out = append(out, content[start:end]...)
		out = append(out, after...)
		prev = end
	}
	out = append(out, content[prev:]...)
	return string(out)
}

func mergeOffsets(offsets []Offset) []Offset {
	sorted := append([]Offset(nil), offsets...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })

	var merged []Offset
	for _, o := range sorted {
		if len(merged) > 0 && o.Start <= merged[len(merged)-1].End {
			if o.End > merged[len(merged)-1].End {
				merged[len(merged)-1].End = o.End
			}
			continue
		}
		merged = append(merged, o)
	}
	return merged
}
