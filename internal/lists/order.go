package lists

import (
	"cmp"
	"math"
	"slices"
	"strings"

	"github.com/starford/folio/internal/models"
)

// SortSpec names the table column and direction used for display.
type SortSpec struct {
	Column string `json:"column"`
	Desc   bool   `json:"desc"`
}

// DefaultSort is newest-modified first.
var DefaultSort = SortSpec{Column: "modified_date", Desc: true}

// SortForDisplay returns a sorted copy of items. With pinFirst (an active
// project) pinned items come first in pinned_order, then the rest by order.
// String columns compare case-insensitively.
func SortForDisplay(items []models.FileRecord, order SortSpec, pinFirst bool) []models.FileRecord {
	if order.Column == "" {
		order = DefaultSort
	}
	out := make([]models.FileRecord, len(items))
	copy(out, items)

	slices.SortStableFunc(out, func(a, b models.FileRecord) int {
		if pinFirst {
			if a.IsPinned != b.IsPinned {
				if a.IsPinned {
					return -1
				}
				return 1
			}
			if a.IsPinned {
				if c := cmp.Compare(pinnedOrder(a), pinnedOrder(b)); c != 0 {
					return c
				}
			}
		}
		c := compareColumn(a, b, order.Column)
		if order.Desc {
			c = -c
		}
		return c
	})
	return out
}

// pinnedOrder ranks a pin without an order after every ordered pin.
func pinnedOrder(f models.FileRecord) int {
	if f.PinnedOrder == nil {
		return math.MaxInt
	}
	return *f.PinnedOrder
}

func compareColumn(a, b models.FileRecord, column string) int {
	if column == "size" {
		return cmp.Compare(a.Size, b.Size)
	}
	av, _ := a.Field(column)
	bv, _ := b.Field(column)
	return strings.Compare(strings.ToLower(av), strings.ToLower(bv))
}
