package objectdetection

import "sort"

// NMS runs greedy non-maximum suppression: detections are visited by descending score, ties
// keeping input order, and one is kept only if its IoU with every already kept detection is at
// most threshold. The result is in selection order, which is the per-frame index identity used
// downstream. NMS is deterministic, so applying it to its own output is a no-op.
func NMS(dets []Detection, threshold float64) []Detection {
	if len(dets) == 0 {
		return []Detection{}
	}

	order := make([]int, len(dets))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		return dets[order[i]].Score() > dets[order[j]].Score()
	})

	kept := make([]Detection, 0, len(dets))
	for _, idx := range order {
		candidate := dets[idx]
		box := *candidate.BoundingBox()
		suppressed := false
		for _, k := range kept {
			if IoU(box, *k.BoundingBox()) > threshold {
				suppressed = true
				break
			}
		}
		if !suppressed {
			kept = append(kept, candidate)
		}
	}
	return kept
}

// NewNMSFilter returns NMS as a Postprocessor.
func NewNMSFilter(threshold float64) Postprocessor {
	return func(in []Detection) []Detection {
		return NMS(in, threshold)
	}
}
