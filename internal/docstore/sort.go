package docstore

import (
	"sort"
	"strings"
	"time"
)

// SortDocuments orders docs in place by q. Documents missing the field sort
// last in either direction; ties break on id so snapshots are deterministic.
func SortDocuments(docs []Document, q Query) {
	if q.OrderBy == "" {
		sort.SliceStable(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
		return
	}
	sort.SliceStable(docs, func(i, j int) bool {
		a, aok := docs[i].Fields[q.OrderBy]
		b, bok := docs[j].Fields[q.OrderBy]
		aok = aok && a != nil
		bok = bok && b != nil
		switch {
		case !aok && !bok:
			return docs[i].ID < docs[j].ID
		case !aok:
			return false
		case !bok:
			return true
		}
		c := compareValues(a, b)
		if c == 0 {
			return docs[i].ID < docs[j].ID
		}
		if q.Direction == Desc {
			return c > 0
		}
		return c < 0
	})
}

// compareValues orders values of the same kind; mixed kinds order by kind.
func compareValues(a, b any) int {
	ka, kb := kind(a), kind(b)
	if ka != kb {
		return ka - kb
	}
	switch x := a.(type) {
	case time.Time:
		return x.Compare(b.(time.Time))
	case float64:
		y := b.(float64)
		switch {
		case x < y:
			return -1
		case x > y:
			return 1
		}
		return 0
	case string:
		return strings.Compare(x, b.(string))
	case bool:
		y := b.(bool)
		switch {
		case x == y:
			return 0
		case !x:
			return -1
		}
		return 1
	}
	return 0
}

func kind(v any) int {
	switch v.(type) {
	case bool:
		return 1
	case float64:
		return 2
	case string:
		return 3
	case time.Time:
		return 4
	}
	return 5
}
