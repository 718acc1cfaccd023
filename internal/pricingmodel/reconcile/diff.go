// Package reconcile computes the minimal add/update/expire sets between
// a desired pricing-model structure and a stored one. Everything here
// is pure: two immutable snapshots and a policy in, a diff out. Writes
// happen in the service's apply step.
package reconcile

// Plan is the diff result for one entity kind.
type Plan[T any] struct {
	ToAdd    []T
	ToUpdate []T
	ToExpire []T
}

// IsNoop reports whether applying the plan would change nothing.
func (p Plan[T]) IsNoop() bool {
	return len(p.ToAdd) == 0 && len(p.ToUpdate) == 0 && len(p.ToExpire) == 0
}

// Counts returns the add, update and expire row counts.
func (p Plan[T]) Counts() (int, int, int) {
	return len(p.ToAdd), len(p.ToUpdate), len(p.ToExpire)
}

// Policy adjusts expiry behavior for one entity kind.
type Policy struct {
	// PreserveUnreferenced keeps rows absent from the desired set
	// untouched instead of expiring them. Used for usage meters when a
	// test structure is promoted onto a live one, so live meters the
	// test source never knew about survive.
	PreserveUnreferenced bool
}

// Hooks adapts one entity kind to the slug diff.
type Hooks[D any, T any] struct {
	DesiredSlug func(D) string
	RowSlug     func(T) string
	// Create builds a fresh row from a desired entry.
	Create func(D) T
	// Merge overwrites the row's fields from the desired entry while
	// preserving the row's identity.
	Merge func(D, T) T
	// Expire marks the row inactive without deleting it.
	Expire func(T) T
	// IsExpired reports whether the row is already expired; such rows
	// are never re-expired and reappear via Merge with expiry cleared.
	IsExpired func(T) bool
}

// BySlug diffs desired entries against existing rows by slug.
// A slug in both sets is always an update, never an add+expire pair.
func BySlug[D any, T any](desired []D, existing []T, policy Policy, hooks Hooks[D, T]) Plan[T] {
	var plan Plan[T]

	rowsBySlug := make(map[string]T, len(existing))
	for _, row := range existing {
		rowsBySlug[hooks.RowSlug(row)] = row
	}

	seen := make(map[string]struct{}, len(desired))
	for _, want := range desired {
		slug := hooks.DesiredSlug(want)
		seen[slug] = struct{}{}

		row, ok := rowsBySlug[slug]
		if !ok {
			plan.ToAdd = append(plan.ToAdd, hooks.Create(want))
			continue
		}
		plan.ToUpdate = append(plan.ToUpdate, hooks.Merge(want, row))
	}

	if policy.PreserveUnreferenced {
		return plan
	}

	for _, row := range existing {
		if _, ok := seen[hooks.RowSlug(row)]; ok {
			continue
		}
		if hooks.IsExpired != nil && hooks.IsExpired(row) {
			continue
		}
		plan.ToExpire = append(plan.ToExpire, hooks.Expire(row))
	}

	return plan
}
