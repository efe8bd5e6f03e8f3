package spot

import (
	"encoding/json"
	"fmt"
	"sort"
)

// ValidateDescriptors cross-checks submitted descriptor values against a
// category's required descriptor set.
//
// required is the category's descriptor set (every entry is required).
// known holds every submitted descriptor that exists at all, keyed by
// ID; submitted IDs absent from known do not exist anywhere.
//
// Per submitted (id, value):
//   - the descriptor does not exist: error under "Descriptors"
//   - exists but is not required by the category: silently dropped
//   - required but the value is not allowed: error under "Descriptors"
//   - otherwise accepted into the validated map
//
// After the pass, every required descriptor missing from the validated
// map is reported by name in one "Missing Descriptors" entry. All
// applicable errors are collected; validation never stops at the first.
func ValidateDescriptors(submitted map[int64]string, required []Descriptor, known map[int64]Descriptor) (map[int64]string, Bag) {
	bag := NewBag()
	validated := make(map[int64]string, len(submitted))

	requiredByID := make(map[int64]Descriptor, len(required))
	for _, d := range required {
		requiredByID[d.ID] = d
	}

	// Walk submissions in ID order so repeated validations report
	// errors identically.
	ids := make([]int64, 0, len(submitted))
	for id := range submitted {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		value := submitted[id]
		if _, exists := known[id]; !exists {
			bag.Add(KeyDescriptors, fmt.Sprintf("Descriptor %d does not exist", id))
			continue
		}
		descriptor, isRequired := requiredByID[id]
		if !isRequired {
			continue
		}
		if !descriptor.Allows(value) {
			bag.Add(KeyDescriptors, fmt.Sprintf("Invalid value, %s, supplied for descriptor %d", value, id))
			continue
		}
		validated[id] = value
	}

	var missing []string
	for _, d := range required {
		if _, ok := validated[d.ID]; !ok {
			missing = append(missing, d.Name)
		}
	}
	if len(missing) > 0 {
		names, err := json.Marshal(missing)
		if err != nil {
			// Marshalling a []string cannot fail; fall back to a plain count.
			bag.Add(KeyMissingDescriptors, fmt.Sprintf("%d required descriptors missing", len(missing)))
		} else {
			bag.Add(KeyMissingDescriptors, string(names))
		}
	}

	return validated, bag
}
