package archive

import (
	"sort"
	"time"
)

// ProtectedTag marks an archive that retention never removes
const ProtectedTag = "protected"

// RetentionPlan splits archives into those kept and those to delete
type RetentionPlan struct {
	Keep   []*Metadata `json:"keep"`
	Delete []*Metadata `json:"delete"`
}

// PlanRetention applies config to archives. An archive is deleted when it
// falls outside the newest MaxArchives or is older than MaxAge. The newest
// archive and archives tagged "protected" are always kept.
func PlanRetention(archives []*Metadata, config RetentionConfig, now time.Time) RetentionPlan {
	sorted := make([]*Metadata, len(archives))
	copy(sorted, archives)
	sortNewestFirst(sorted)

	plan := RetentionPlan{Keep: []*Metadata{}, Delete: []*Metadata{}}
	for i, m := range sorted {
		if i == 0 || isProtected(m) || !expired(i, m, config, now) {
			plan.Keep = append(plan.Keep, m)
			continue
		}
		plan.Delete = append(plan.Delete, m)
	}
	return plan
}

func expired(rank int, m *Metadata, config RetentionConfig, now time.Time) bool {
	if config.MaxArchives > 0 && rank >= config.MaxArchives {
		return true
	}
	if config.MaxAge > 0 && now.Sub(m.CreatedAt) > config.MaxAge {
		return true
	}
	return false
}

func isProtected(m *Metadata) bool {
	for _, tag := range m.Tags {
		if tag == ProtectedTag {
			return true
		}
	}
	return false
}

func sortNewestFirst(list []*Metadata) {
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].ID > list[j].ID
		}
		return list[i].CreatedAt.After(list[j].CreatedAt)
	})
}
